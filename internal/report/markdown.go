package report

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// Markdown writes the report as a markdown file and, when HTML is set, a
// sibling .html file.
type Markdown struct {
	Path string
	HTML bool
}

func (m Markdown) Write(_ context.Context, r *Report) error {
	if err := os.MkdirAll(filepath.Dir(m.Path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	body := RenderMarkdown(r)
	if err := os.WriteFile(m.Path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("writing markdown report: %w", err)
	}
	if !m.HTML {
		return nil
	}

	html, err := RenderHTML(body)
	if err != nil {
		return err
	}
	htmlPath := strings.TrimSuffix(m.Path, filepath.Ext(m.Path)) + ".html"
	if err := os.WriteFile(htmlPath, []byte(html), 0o644); err != nil {
		return fmt.Errorf("writing html report: %w", err)
	}
	return nil
}

// RenderHTML converts markdown to an HTML fragment.
func RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return buf.String(), nil
}

// RenderMarkdown renders the full report.
func RenderMarkdown(r *Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Comparison run %s\n\n", r.RunID)
	if !r.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "- Created: %s\n", r.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(&b, "- References: %s\n", orNone(r.References))
	fmt.Fprintf(&b, "- Baseline: %s\n", orNone(r.Baseline))
	fmt.Fprintf(&b, "- Selected: **%s**\n", orNone(r.Best))
	if r.OutputPath != "" {
		fmt.Fprintf(&b, "- Output: `%s`\n", r.OutputPath)
	}

	b.WriteString("\n## Variant ranking\n\n")
	writeRanking(&b, r)

	if hasProjection(r) {
		b.WriteString("\n## Leaderboard projection\n\n")
		b.WriteString("Estimated by scaling a known baseline score. Treat as a rough guide.\n\n")
		for _, v := range r.Variants {
			if v.Projected != nil {
				fmt.Fprintf(&b, "- %s: %.4f\n", v.Name, *v.Projected)
			}
		}
	}

	b.WriteString("\n## Diagnostics\n\n")
	writeDiagnostics(&b, r)

	if len(r.Suspicious) > 0 {
		b.WriteString("\n## Most suspicious summaries\n\n")
		b.WriteString("Quality scores are heuristic ranking signals, not ground truth.\n")
		for _, d := range r.Suspicious {
			fmt.Fprintf(&b, "\n### %s / %s (quality %d)\n\n", d.Variant, d.ID, d.Score)
			fmt.Fprintf(&b, "> %s\n", oneLine(d.Text))
			if len(d.Triggered) > 0 {
				names := make([]string, len(d.Triggered))
				for i, c := range d.Triggered {
					names[i] = string(c)
				}
				fmt.Fprintf(&b, "\n- Defects: %s\n", strings.Join(names, ", "))
			}
			if len(d.Matches) > 0 {
				fmt.Fprintf(&b, "- Hedges: %s\n", strings.Join(d.Matches, ", "))
			}
		}
	}

	if len(r.Changes) > 0 {
		b.WriteString("\n## Largest changes\n")
		for _, c := range r.Changes {
			fmt.Fprintf(&b, "\n### %s / %s (%+d words)\n\n", c.Variant, c.ID, c.WordDelta)
			fmt.Fprintf(&b, "- Before: %s\n", oneLine(c.Before))
			fmt.Fprintf(&b, "- After: %s\n", oneLine(c.After))
			if len(c.Stages) > 0 {
				fmt.Fprintf(&b, "- Stages: %s\n", strings.Join(c.Stages, ", "))
			}
		}
	}

	if len(r.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, w := range r.Warnings {
			line := w.Kind
			if w.Variant != "" {
				line += " [" + w.Variant + "]"
			}
			if w.ID != "" {
				line += " " + w.ID
			}
			if w.Message != "" {
				line += ": " + w.Message
			}
			fmt.Fprintf(&b, "- %s\n", line)
		}
	}
	return b.String()
}

func writeRanking(b *strings.Builder, r *Report) {
	b.WriteString("| # | Variant | Profile | R1 | R2 | RL | Mean | Delta | Density | Words | Changed |\n")
	b.WriteString("|---|---|---|---|---|---|---|---|---|---|---|\n")
	for i, v := range r.Variants {
		r1, r2, rl, mean, delta := "-", "-", "-", "-", "-"
		if v.Metrics != nil {
			p := v.Metrics.Percent()
			r1 = fmt.Sprintf("%.2f", p.Unigram)
			r2 = fmt.Sprintf("%.2f", p.Bigram)
			rl = fmt.Sprintf("%.2f", p.LCS)
			mean = fmt.Sprintf("%.4f", p.Mean)
			delta = fmt.Sprintf("%+.4f", v.DeltaMean*100)
		}
		fmt.Fprintf(b, "| %d | %s | %s | %s | %s | %s | %s | %s | %.4f | %.1f | %d/%d |\n",
			i+1, v.Name, orNone(v.Profile), r1, r2, rl, mean, delta, v.Density, v.MeanWords, v.Changed, v.Rows)
	}
}

func writeDiagnostics(b *strings.Builder, r *Report) {
	b.WriteString("| Variant | Mean words | Median | Std | Range | Sentences | Diversity | Repeated bigrams | Quality | Hedged | Detail |\n")
	b.WriteString("|---|---|---|---|---|---|---|---|---|---|---|\n")
	for _, v := range r.Variants {
		d := v.Diagnostics
		fmt.Fprintf(b, "| %s | %.1f | %.0f | %.1f | %d-%d | %.2f | %.4f | %d | %.1f | %s | %s |\n",
			v.Name, d.MeanWords, d.MedianWords, d.StdWords, d.MinWords, d.MaxWords, d.MeanSentences,
			d.LexicalDiversity, d.RepeatedBigrams, d.MeanQuality,
			share(d.WithSpeculation, d.Count), share(d.WithExcessiveDetail, d.Count))
	}
}

func hasProjection(r *Report) bool {
	for _, v := range r.Variants {
		if v.Projected != nil {
			return true
		}
	}
	return false
}

func share(n, total int) string {
	if total == 0 {
		return "0"
	}
	return fmt.Sprintf("%d (%.1f%%)", n, 100*float64(n)/float64(total))
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
