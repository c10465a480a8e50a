package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"trainplan/internal/pipeline"
	"trainplan/internal/plan"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [fragment...]",
	Short: "Resolve fragments into an execution plan",
	Long: `Resolve merges the fragments in the given order (later ones win), validates
the result and writes the plan. Without arguments the fragments listed in
trainplan.toml are used.`,
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringP("output", "o", "", "write the plan to this file instead of stdout")
	resolveCmd.Flags().String("format", "", "plan format (json|yaml|msgpack)")
	resolveCmd.Flags().StringArray("set", nil, "override a key, e.g. --set optimizer.params.lr=3e-4 (repeatable)")
	resolveCmd.Flags().String("provenance", "", "also write the provenance report to this file")
}

func runResolve(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return fmt.Errorf("failed to get output flag: %w", err)
	}
	formatStr, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	sets, err := cmd.Flags().GetStringArray("set")
	if err != nil {
		return fmt.Errorf("failed to get set flag: %w", err)
	}
	provPath, err := cmd.Flags().GetString("provenance")
	if err != nil {
		return fmt.Errorf("failed to get provenance flag: %w", err)
	}

	paths := args
	if len(paths) == 0 {
		if s.manifest == nil || len(s.manifest.Config.Plan.Fragments) == 0 {
			return fmt.Errorf("no fragments given and no [plan].fragments in %s", manifestName)
		}
		paths = s.manifest.fragments()
		if output == "" && s.manifest.Config.Plan.Output != "" {
			output = s.manifest.resolvePath(s.manifest.Config.Plan.Output)
		}
		if formatStr == "" {
			formatStr = s.manifest.Config.Plan.Format
		}
	}
	if formatStr == "" && output != "" {
		formatStr = formatFromExt(output)
	}
	format, err := plan.ParseFormat(formatStr)
	if err != nil {
		return err
	}

	req := pipeline.Request{Paths: paths}
	if len(sets) > 0 {
		src, err := overridesFragment(sets)
		if err != nil {
			return err
		}
		req.Sources = append(req.Sources, src)
	}

	opts, err := s.options(format, provPath == "")
	if err != nil {
		return err
	}
	res, err := pipeline.ResolveRequest(req, opts)
	var rejected *pipeline.RejectedError
	if err != nil && !errors.As(err, &rejected) {
		return err
	}

	stderr := cmd.ErrOrStderr()
	if perr := s.printDiagnostics(stderr, res.Bag, res.FileSet); perr != nil {
		return perr
	}
	s.printTimings(stderr, res)
	if rejected != nil {
		return &exitError{code: 1, err: rejected}
	}

	if err := writeOutput(cmd, output, res.Output); err != nil {
		return err
	}
	if provPath != "" {
		if err := writeFileAtomic(provPath, []byte(res.Plan.ProvenanceReport(res.FileSet))); err != nil {
			return fmt.Errorf("failed to write provenance: %w", err)
		}
	}
	if res.Cached {
		s.logger.WithField("digest", res.Plan.Digest).Info("plan served from cache")
	}
	return statusError(res.Status)
}

func formatFromExt(path string) string {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return "yaml"
	case ".mp", ".msgpack":
		return "msgpack"
	}
	return "json"
}

func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("failed to write plan: %w", err)
	}
	return nil
}

// writeFileAtomic replaces path through a temp file in the same directory.
func writeFileAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".trainplan-*")
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return err
	}
	if err := os.Rename(f.Name(), path); err != nil {
		os.Remove(f.Name())
		return err
	}
	return nil
}
