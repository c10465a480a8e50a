package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"trainplan/internal/schema"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the active schema",
	RunE:  runSchema,
}

func init() {
	schemaCmd.Flags().String("format", "table", "output format (table|yaml)")
}

func runSchema(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	sch, err := s.schema()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch strings.ToLower(format) {
	case "yaml":
		data, err := sch.YAML()
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	case "table":
		fmt.Fprintln(out, schemaTable(sch))
		return nil
	default:
		return fmt.Errorf("unsupported format %q (must be table or yaml)", format)
	}
}

func schemaTable(sch *schema.Schema) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("KEY", "TYPE", "DEFAULT", "NOTES")
	sch.Walk(func(path string, f *schema.FieldSpec) {
		def := ""
		switch {
		case f.Required:
			def = "required"
		case f.Derived:
			def = "derived"
		case f.HasDefault:
			def = f.Default.Render()
		}
		notes := f.Doc
		if len(f.Enum) > 0 {
			notes = strings.TrimSpace("one of " + strings.Join(f.Enum, ", ") + ". " + notes)
		}
		if len(f.Aliases) > 0 {
			notes = strings.TrimSpace(notes + " (was " + strings.Join(f.Aliases, ", ") + ")")
		}
		t.Row(path, f.Type.String(), def, notes)
	})
	title := fmt.Sprintf("schema %s", sch.Version())
	if exts := sch.Extensions(); len(exts) > 0 {
		title += " + " + strings.Join(exts, ", ")
	}
	return lipgloss.NewStyle().Bold(true).Render(title) + "\n" + t.Render()
}
