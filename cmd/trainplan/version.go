package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"trainplan/internal/schema"
	"trainplan/internal/version"
)

var (
	versionFormat   string
	versionShowFull bool
)

func init() {
	versionCmd.Flags().StringVar(&versionFormat, "format", "pretty", "output format (pretty|json)")
	versionCmd.Flags().BoolVar(&versionShowFull, "full", false, "include commit, build date and schema versions")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show trainplan build information",
	RunE: func(cmd *cobra.Command, _ []string) error {
		info := version.Current()
		info.Schemas = schema.Versions()
		switch strings.ToLower(versionFormat) {
		case "json":
			return renderVersionJSON(cmd.OutOrStdout(), info)
		case "pretty":
			renderVersionPretty(cmd.OutOrStdout(), info, versionShowFull)
			return nil
		default:
			return fmt.Errorf("unsupported format %q (must be pretty or json)", versionFormat)
		}
	},
}

func renderVersionPretty(w io.Writer, info version.Info, full bool) {
	fmt.Fprintf(w, "trainplan %s\n", version.Colored())
	if !full {
		return
	}
	if info.Commit != "" {
		fmt.Fprintf(w, "  commit:  %s\n", info.Commit)
	}
	if info.BuildDate != "" {
		fmt.Fprintf(w, "  built:   %s\n", info.BuildDate)
	}
	fmt.Fprintf(w, "  schemas: %s (latest %s)\n", strings.Join(info.Schemas, ", "), schema.LatestVersion)
}

func renderVersionJSON(w io.Writer, info version.Info) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}
