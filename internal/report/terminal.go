package report

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	bestStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// Terminal prints a compact summary of the run.
type Terminal struct {
	W io.Writer
}

func (t Terminal) Write(_ context.Context, r *Report) error {
	_, err := io.WriteString(t.W, RenderTerminal(r)+"\n")
	return err
}

// RenderTerminal renders the ranking and warnings for a terminal.
func RenderTerminal(r *Report) string {
	var lines []string
	lines = append(lines, titleStyle.Render("Run "+r.RunID))
	lines = append(lines, dimStyle.Render(fmt.Sprintf("references: %s  baseline: %s", orNone(r.References), orNone(r.Baseline))))
	lines = append(lines, "")

	width := 0
	for _, v := range r.Variants {
		width = max(width, len(v.Name))
	}
	for i, v := range r.Variants {
		name := fmt.Sprintf("%-*s", width, v.Name)
		var score string
		if v.Metrics != nil {
			score = fmt.Sprintf("%s  (%+.4f)", v.Metrics.String(), v.DeltaMean*100)
		} else {
			score = fmt.Sprintf("quality %.1f", v.Diagnostics.MeanQuality)
		}
		line := fmt.Sprintf("%2d. %s  %s", i+1, name, score)
		if v.Name == r.Best {
			line = bestStyle.Render(line + "  *")
		}
		lines = append(lines, line)
		if v.Projected != nil {
			lines = append(lines, dimStyle.Render(fmt.Sprintf("    projected %.4f", *v.Projected)))
		}
	}

	if r.OutputPath != "" {
		lines = append(lines, "", "output: "+r.OutputPath)
	}
	if n := len(r.Warnings); n > 0 {
		lines = append(lines, warnStyle.Render(fmt.Sprintf("%d warning(s)", n)))
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}
