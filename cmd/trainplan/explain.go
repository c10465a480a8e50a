package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"trainplan/internal/pipeline"
	"trainplan/internal/plan"
	"trainplan/internal/provenance"
	"trainplan/internal/source"
	"trainplan/internal/value"
)

var explainCmd = &cobra.Command{
	Use:   "explain <key> [fragment...]",
	Short: "Show where a key's value comes from",
	Long: `Explain resolves the fragments and prints every definition of key, oldest
first, ending with the one that won. Defaults and derived values are shown
with their origin. For blocks every nested key is listed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExplain,
}

func runExplain(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	key, paths := args[0], args[1:]
	if len(paths) == 0 {
		if s.manifest == nil || len(s.manifest.Config.Plan.Fragments) == 0 {
			return fmt.Errorf("no fragments given and no [plan].fragments in %s", manifestName)
		}
		paths = s.manifest.fragments()
	}

	opts, err := s.options(plan.FormatJSON, false)
	if err != nil {
		return err
	}
	res, err := pipeline.ResolveFiles(paths, opts)
	var rejected *pipeline.RejectedError
	if err != nil && !errors.As(err, &rejected) {
		return err
	}

	out := cmd.OutOrStdout()
	if rejected != nil {
		fmt.Fprintf(out, "note: %s; showing the configuration as of state %s\n", rejected, rejected.State)
	}
	cfg := res.Config
	if cfg == nil {
		_ = s.printDiagnostics(cmd.ErrOrStderr(), res.Bag, res.FileSet)
		return &exitError{code: 1, err: rejected}
	}
	path := value.ParsePath(key)
	v, ok := cfg.Root.Lookup(path)
	if !ok {
		if rejected != nil {
			_ = s.printDiagnostics(cmd.ErrOrStderr(), res.Bag, res.FileSet)
		}
		return &exitError{code: 1, err: fmt.Errorf("key %q is not set", key)}
	}

	keys := []string{path.String()}
	if v.IsBlock() || len(v.Items()) > 0 {
		keys = append(keys, cfg.Origins.Under(path.String())...)
	}
	for _, k := range keys {
		explainKey(out, cfg.Origins, res.FileSet, k)
	}
	return nil
}

func explainKey(w io.Writer, origins *provenance.Map, fs *source.FileSet, key string) {
	chain := origins.Chain(key)
	if len(chain) == 0 {
		return
	}
	winner := chain[len(chain)-1]
	fmt.Fprintf(w, "%s = %s\n", key, winner.Value)
	for i, o := range chain {
		marker := "overridden"
		if i == len(chain)-1 {
			marker = "wins"
		}
		line := fmt.Sprintf("  %d. %-28s %s", i+1, o.Describe(fs), o.Value)
		if o.Note != "" && o.Kind == provenance.FromFragment {
			line += "  (" + o.Note + ")"
		}
		fmt.Fprintf(w, "%s  [%s]\n", line, marker)
	}
}
