package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/metron/pkg/rules"
)

// NewRulesCommand creates the rules command.
func NewRulesCommand() *cobra.Command {
	var rulesPath string
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the rules in the configured rule document",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := ConfigFrom(cmd.Context())
			path := rulesPath
			if path == "" {
				path = cfg.RulesFile
			}
			engine, err := rules.FromFile(path)
			if err != nil {
				return err
			}
			return renderRules(cmd, engine)
		},
	}
	cmd.Flags().StringVar(&rulesPath, "rules", "", "rule document path")
	return cmd
}

func renderRules(cmd *cobra.Command, engine *rules.Engine) error {
	w := cmd.OutOrStdout()

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Kind", "Pattern", "Op", "Limit", "Description"})
	for _, rule := range engine.Alerts() {
		t.AppendRow(table.Row{"alert", rule.Pattern(), rule.Operation().String(), rule.Limit(), rule.Description()})
	}
	for _, rule := range engine.Validations() {
		t.AppendRow(table.Row{"validation", rule.Pattern(), rule.Operation().String(), rule.Limit(), rule.Description()})
	}
	t.Render()

	if exclusions := engine.Exclusions(); len(exclusions) > 0 {
		fmt.Fprintln(w, "Exclusions:")
		for _, pattern := range exclusions {
			fmt.Fprintf(w, "  %s\n", pattern)
		}
	}
	return nil
}
