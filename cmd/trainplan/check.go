package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"trainplan/internal/diag"
	"trainplan/internal/diagfmt"
	"trainplan/internal/pipeline"
	"trainplan/internal/plan"
)

var checkCmd = &cobra.Command{
	Use:   "check [flags] candidate...",
	Short: "Validate several candidate configs concurrently",
	Long: `Check resolves every candidate on top of the --base fragments, in parallel,
and prints a verdict per candidate. Candidates do not share state.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringArray("base", nil, "fragment applied below every candidate (repeatable, in order)")
	checkCmd.Flags().Int("jobs", 0, "max parallel workers (0=auto)")
	checkCmd.Flags().String("ui", "auto", "progress UI (auto|on|off)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	base, err := cmd.Flags().GetStringArray("base")
	if err != nil {
		return fmt.Errorf("failed to get base flag: %w", err)
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return fmt.Errorf("failed to get jobs flag: %w", err)
	}
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return fmt.Errorf("failed to get ui flag: %w", err)
	}
	mode, err := readUIMode(uiValue)
	if err != nil {
		return err
	}

	opts, err := s.options(plan.FormatJSON, true)
	if err != nil {
		return err
	}
	reqs := make([]pipeline.Request, len(args))
	for i, cand := range args {
		paths := append(append([]string(nil), base...), cand)
		reqs[i] = pipeline.Request{Name: cand, Paths: paths}
	}

	var results []*pipeline.Result
	if shouldUseTUI(mode) {
		results, err = runBatchWithUI(cmd.Context(), "checking candidates", reqs, opts, jobs)
	} else {
		results, err = pipeline.ResolveBatch(cmd.Context(), reqs, opts, jobs, nil)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	worst := diag.StatusClean
	for _, res := range results {
		if res == nil {
			continue
		}
		worst = max(worst, res.Status)
		printVerdict(out, res)
	}
	stderr := cmd.ErrOrStderr()
	for _, res := range results {
		if res == nil || res.Bag.Len() == 0 {
			continue
		}
		fmt.Fprintf(stderr, "\n== %s\n", res.Name)
		if err := s.printDiagnostics(stderr, res.Bag, res.FileSet); err != nil {
			return err
		}
		s.printTimings(stderr, res)
	}
	return statusError(worst)
}

func printVerdict(w io.Writer, res *pipeline.Result) {
	switch {
	case res.State == pipeline.StateRejected:
		fmt.Fprintf(w, "rejected  %s  (%s)\n", res.Name, diagfmt.Summary(res.Bag))
	case res.Status == diag.StatusWarnings:
		fmt.Fprintf(w, "accepted  %s  %s  (%s)\n", res.Name, shortDigest(res), diagfmt.Summary(res.Bag))
	default:
		fmt.Fprintf(w, "accepted  %s  %s\n", res.Name, shortDigest(res))
	}
}

func shortDigest(res *pipeline.Result) string {
	if res.Plan == nil || len(res.Plan.Digest) < 12 {
		return ""
	}
	return res.Plan.Digest[:12]
}
