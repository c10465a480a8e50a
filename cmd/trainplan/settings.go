package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"trainplan/internal/cache"
	"trainplan/internal/diag"
	"trainplan/internal/diagfmt"
	"trainplan/internal/pipeline"
	"trainplan/internal/plan"
	"trainplan/internal/schema"
	"trainplan/internal/source"
	"trainplan/internal/topology"
)

const appName = "trainplan"

// settings are the global flags merged over trainplan.toml.
type settings struct {
	devices        int64
	strict         bool
	schemaVersion  string
	schemaExt      []string
	maxDiagnostics int
	timings        bool
	color          bool
	diagFormat     string
	useCache       bool
	logger         *logrus.Logger
	manifest       *projectManifest
}

func loadSettings(cmd *cobra.Command) (*settings, error) {
	flags := cmd.Root().PersistentFlags()
	s := &settings{}

	colorMode, err := flags.GetString("color")
	if err != nil {
		return nil, fmt.Errorf("failed to get color flag: %w", err)
	}
	if s.color, err = readColorMode(colorMode, os.Stderr); err != nil {
		return nil, err
	}
	color.NoColor = !s.color

	level, err := flags.GetString("log-level")
	if err != nil {
		return nil, fmt.Errorf("failed to get log-level flag: %w", err)
	}
	if s.logger, err = newLogger(level, cmd.ErrOrStderr()); err != nil {
		return nil, err
	}
	if s.diagFormat, err = flags.GetString("diagnostics"); err != nil {
		return nil, fmt.Errorf("failed to get diagnostics flag: %w", err)
	}
	switch s.diagFormat {
	case "pretty", "json", "short":
	default:
		return nil, fmt.Errorf("unknown diagnostics format %q (must be pretty, json or short)", s.diagFormat)
	}
	if s.maxDiagnostics, err = flags.GetInt("max-diagnostics"); err != nil {
		return nil, fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	if s.timings, err = flags.GetBool("timings"); err != nil {
		return nil, fmt.Errorf("failed to get timings flag: %w", err)
	}
	if s.devices, err = flags.GetInt64("devices"); err != nil {
		return nil, fmt.Errorf("failed to get devices flag: %w", err)
	}
	if s.strict, err = flags.GetBool("strict"); err != nil {
		return nil, fmt.Errorf("failed to get strict flag: %w", err)
	}
	if s.schemaVersion, err = flags.GetString("schema-version"); err != nil {
		return nil, fmt.Errorf("failed to get schema-version flag: %w", err)
	}
	if s.schemaExt, err = flags.GetStringSlice("schema-ext"); err != nil {
		return nil, fmt.Errorf("failed to get schema-ext flag: %w", err)
	}
	if s.useCache, err = flags.GetBool("cache"); err != nil {
		return nil, fmt.Errorf("failed to get cache flag: %w", err)
	}

	m, ok, err := loadManifest(".")
	if err != nil {
		return nil, err
	}
	if ok {
		s.manifest = m
		s.logger.WithField("path", m.Path).Debug("manifest loaded")
		s.applyManifest(flags.Changed)
	}
	return s, nil
}

// applyManifest fills settings the user did not pass as flags.
func (s *settings) applyManifest(changed func(string) bool) {
	m := s.manifest
	if !changed("devices") && m.has("cluster", "devices") {
		s.devices = m.Config.Cluster.Devices
	}
	if !changed("strict") && m.has("validate", "strict") {
		s.strict = m.Config.Validate.Strict
	}
	if !changed("schema-version") && m.has("validate", "schema-version") {
		s.schemaVersion = m.Config.Validate.SchemaVersion
	}
	if !changed("schema-ext") && m.has("validate", "schema-extensions") {
		s.schemaExt = s.schemaExt[:0]
		for _, p := range m.Config.Validate.SchemaExtensions {
			s.schemaExt = append(s.schemaExt, m.resolvePath(p))
		}
	}
}

func (s *settings) schema() (*schema.Schema, error) {
	base, err := schema.Builtin(s.schemaVersion)
	if err != nil {
		return nil, err
	}
	if len(s.schemaExt) == 0 {
		return base, nil
	}
	exts := make([]*schema.Extension, 0, len(s.schemaExt))
	for _, p := range s.schemaExt {
		ext, err := schema.LoadExtension(p)
		if err != nil {
			return nil, err
		}
		exts = append(exts, ext)
	}
	return base.Extend(exts...)
}

// options builds pipeline options. withCache is false for commands that
// need provenance, which cached plans do not carry.
func (s *settings) options(format plan.Format, withCache bool) (pipeline.Options, error) {
	if s.devices <= 0 {
		return pipeline.Options{}, fmt.Errorf("%w: pass --devices or set [cluster].devices in %s", topology.ErrNoDevices, manifestName)
	}
	sch, err := s.schema()
	if err != nil {
		return pipeline.Options{}, err
	}
	opts := pipeline.Options{
		Schema:         sch,
		Topology:       topology.Topology{Devices: s.devices},
		Strict:         s.strict,
		MaxDiagnostics: s.maxDiagnostics,
		Format:         format,
		EnableTimings:  s.timings,
		Logger:         s.logger,
	}
	if withCache && s.useCache {
		c, err := cache.Open(appName)
		if err != nil {
			s.logger.WithError(err).Warn("cache disabled")
		} else {
			opts.Cache = c
		}
	}
	return opts, nil
}

// printDiagnostics writes the bag in the configured format.
func (s *settings) printDiagnostics(w io.Writer, bag *diag.Bag, fs *source.FileSet) error {
	switch s.diagFormat {
	case "json":
		return diagfmt.JSON(w, bag, fs, diagfmt.JSONOpts{IncludePositions: true, IncludeNotes: true, PathMode: diagfmt.PathModeRelative})
	case "short":
		return diagfmt.Short(w, bag, fs, true)
	}
	if bag.Len() == 0 {
		return nil
	}
	if err := diagfmt.Pretty(w, bag, fs, diagfmt.PrettyOpts{
		Color:      s.color,
		PathMode:   diagfmt.PathModeRelative,
		ShowNotes:  true,
		GroupByKey: true,
	}); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, diagfmt.Summary(bag))
	return err
}

func (s *settings) printTimings(w io.Writer, res *pipeline.Result) {
	if !s.timings || res == nil || res.Timer.Len() == 0 {
		return
	}
	fmt.Fprint(w, res.Timer.Summary())
}

// statusError turns a diagnostic status into the process exit status.
func statusError(st diag.Status) error {
	if st == diag.StatusClean {
		return nil
	}
	return &exitError{code: st.ExitCode()}
}
