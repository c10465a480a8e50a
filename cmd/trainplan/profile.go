package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"trainplan/internal/observ"
)

var activeProfiler *observ.Profiler

func startProfiling(cmd *cobra.Command, _ []string) error {
	var cfg observ.ProfileConfig
	var err error
	flags := cmd.Root().PersistentFlags()
	if cfg.CPU, err = flags.GetString("cpu-profile"); err != nil {
		return fmt.Errorf("failed to get cpu-profile flag: %w", err)
	}
	if cfg.Mem, err = flags.GetString("mem-profile"); err != nil {
		return fmt.Errorf("failed to get mem-profile flag: %w", err)
	}
	if cfg.Trace, err = flags.GetString("runtime-trace"); err != nil {
		return fmt.Errorf("failed to get runtime-trace flag: %w", err)
	}
	if !cfg.Enabled() {
		return nil
	}
	activeProfiler, err = observ.StartProfiling(cfg)
	return err
}

func stopProfiling() error {
	err := activeProfiler.Stop()
	activeProfiler = nil
	return err
}
