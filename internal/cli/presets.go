package cli

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/forPelevin/hlshorts/internal/config"
)

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List caption style presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			title := cases.Title(language.English)
			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Name", "Label", "Size", "Color", "Outline"})
			for _, name := range config.Presets() {
				p, _ := config.LookupPreset(name)
				outline := "-"
				if p.Outline {
					outline = "#" + p.OutlineColor
				}
				label := title.String(strings.ReplaceAll(name, "_", " "))
				t.AppendRow(table.Row{name, label, p.FontSize, "#" + p.TextColor, outline})
			}
			t.Render()
			return nil
		},
	}
}
