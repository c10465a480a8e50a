package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"trainplan/internal/schema"
	"trainplan/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "trainplan",
	Short: "Resolve and validate LLM pretraining configurations",
	Long: `trainplan merges layered configuration fragments, validates them against
the schema and the cluster topology, derives implied quantities and emits a
single resolved execution plan.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: startProfiling,
}

// exitError carries a process exit status; err may be nil when the
// diagnostics have already been printed.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(versionCmd)

	// Глобальные флаги
	pf := rootCmd.PersistentFlags()
	pf.String("color", "auto", "colorize output (auto|on|off)")
	pf.String("log-level", "warn", "log level (debug|info|warn|error)")
	pf.String("diagnostics", "pretty", "diagnostics format (pretty|json|short)")
	pf.Int("max-diagnostics", 100, "maximum number of diagnostics to keep (0 = all)")
	pf.Bool("timings", false, "show stage timings")
	pf.Int64("devices", 0, "total device count of the target cluster")
	pf.Bool("strict", false, "treat unknown keys as errors")
	pf.String("schema-version", schema.LatestVersion, "schema version to validate against")
	pf.StringSlice("schema-ext", nil, "YAML schema extension files")
	pf.Bool("cache", false, "serve and store clean plans in the on-disk cache")
	pf.String("cpu-profile", "", "write a CPU profile to file")
	pf.String("mem-profile", "", "write a heap profile to file")
	pf.String("runtime-trace", "", "write a Go runtime trace to file")

	err := rootCmd.Execute()
	// профили пишем и при ошибке команды
	if perr := stopProfiling(); perr != nil {
		fmt.Fprintln(os.Stderr, "warning: profiling:", perr)
	}
	if err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			if ee.err != nil {
				fmt.Fprintln(os.Stderr, "error:", ee.err)
			}
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// isTerminal проверяет, является ли файл терминалом
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
