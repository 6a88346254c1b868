package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/leapstack-labs/metron/pkg/rules"
)

var (
	alertStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	fileStyle    = lipgloss.NewStyle().Bold(true)
)

// renderCheckResults writes check output in the selected format.
func renderCheckResults(w io.Writer, results []checkResult, format string) error {
	if format == "json" {
		return renderCheckJSON(w, results)
	}
	return renderCheckText(w, results)
}

func renderCheckText(w io.Writer, results []checkResult) error {
	for _, result := range results {
		fmt.Fprintln(w, fileStyle.Render(result.File))
		if len(result.Statuses) == 0 {
			fmt.Fprintf(w, "  %s\n", okStyle.Render("all rules passed"))
			continue
		}
		for _, status := range result.Statuses {
			style := alertStyle
			if status.Level == rules.LevelFailure {
				style = failureStyle
			}
			fmt.Fprintf(w, "  %s%s\n", style.Render(status.Level.String()), status.Text)
		}
	}
	return nil
}

func renderCheckJSON(w io.Writer, results []checkResult) error {
	type statusJSON struct {
		Level     string   `json:"level"`
		Metric    string   `json:"metric"`
		Text      string   `json:"text"`
		Offending []string `json:"offending_elements"`
	}
	type resultJSON struct {
		File     string       `json:"file"`
		Statuses []statusJSON `json:"statuses"`
	}

	out := make([]resultJSON, 0, len(results))
	for _, result := range results {
		statuses := make([]statusJSON, 0, len(result.Statuses))
		for _, status := range result.Statuses {
			statuses = append(statuses, statusJSON{
				Level:     status.Level.String(),
				Metric:    status.Parent.Name(),
				Text:      status.Text,
				Offending: sortedOffending(status),
			})
		}
		out = append(out, resultJSON{File: result.File, Statuses: statuses})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}
