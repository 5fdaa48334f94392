package report

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/summaryqc/internal/overlap"
	"github.com/TobiSchelling/summaryqc/internal/quality"
)

func sampleReport() *Report {
	base := overlap.Metrics{Unigram: 0.5, Bigram: 0.3, LCS: 0.4, Mean: 0.4}
	best := overlap.Metrics{Unigram: 0.55, Bigram: 0.32, LCS: 0.45, Mean: 0.44}
	projected := 47.3
	return &Report{
		RunID:      "run-1",
		CreatedAt:  time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
		References: "dev",
		Baseline:   "raw",
		Best:       "moderate",
		OutputPath: "out/submission.csv",
		Variants: []Variant{
			{Name: "moderate", Profile: "moderate", Rows: 2, Changed: 1, Metrics: &best, DeltaMean: 0.04, Projected: &projected,
				Diagnostics: quality.Diagnostics{Count: 2, MeanWords: 12, WithSpeculation: 1}},
			{Name: "raw", Rows: 2, Metrics: &base, Diagnostics: quality.Diagnostics{Count: 2, MeanWords: 15}},
		},
		Suspicious: []Defect{{Variant: "raw", ID: "test_1", Score: 85, Triggered: []quality.Category{quality.Speculation}, Matches: []string{"것으로 보입니다"}, Text: "그가 올 것으로\n보입니다."}},
		Changes:    []Change{{Variant: "moderate", ID: "test_1", Before: "그가 올 것으로 보입니다.", After: "그가 올 것입니다.", Stages: []string{"speculation"}, WordDelta: -1}},
		Warnings:   []Warning{{Kind: "missing_reference", Variant: "raw", ID: "test_9"}},
	}
}

func TestVariantLookup(t *testing.T) {
	r := sampleReport()
	v, ok := r.Variant("raw")
	assert.True(t, ok)
	assert.Equal(t, 2, v.Rows)

	_, ok = r.Variant("missing")
	assert.False(t, ok)
}

func TestRenderMarkdown(t *testing.T) {
	out := RenderMarkdown(sampleReport())

	assert.Contains(t, out, "# Comparison run run-1")
	assert.Contains(t, out, "- Selected: **moderate**")
	assert.Contains(t, out, "| 1 | moderate | moderate | 55.00 | 32.00 | 45.00 | 44.0000 | +4.0000 |")
	assert.Contains(t, out, "| 2 | raw | none |")
	assert.Contains(t, out, "- moderate: 47.3000")
	assert.Contains(t, out, "1 (50.0%)")
	assert.Contains(t, out, "### raw / test_1 (quality 85)")
	assert.Contains(t, out, "> 그가 올 것으로 보입니다.")
	assert.Contains(t, out, "- Defects: speculation")
	assert.Contains(t, out, "### moderate / test_1 (-1 words)")
	assert.Contains(t, out, "- missing_reference [raw] test_9")
	assert.NotContains(t, out, "\u2014")
}

func TestRenderMarkdownWithoutReferences(t *testing.T) {
	r := &Report{RunID: "r", Variants: []Variant{{Name: "v", Rows: 1}}}
	out := RenderMarkdown(r)
	assert.Contains(t, out, "- References: none")
	assert.Contains(t, out, "| 1 | v | none | - | - | - | - | - |")
	assert.NotContains(t, out, "Leaderboard projection")
	assert.NotContains(t, out, "## Warnings")
}

func TestRenderHTML(t *testing.T) {
	html, err := RenderHTML(RenderMarkdown(sampleReport()))
	require.NoError(t, err)
	assert.Contains(t, html, "<h1>Comparison run run-1</h1>")
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "<strong>moderate</strong>")
}

func TestMarkdownSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "run-1.md")
	require.NoError(t, Markdown{Path: path, HTML: true}.Write(context.Background(), sampleReport()))

	md, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(md), "# Comparison run run-1"))

	html, err := os.ReadFile(strings.TrimSuffix(path, ".md") + ".html")
	require.NoError(t, err)
	assert.Contains(t, string(html), "<h1>")
}

func TestTerminalSink(t *testing.T) {
	var b strings.Builder
	require.NoError(t, Terminal{W: &b}.Write(context.Background(), sampleReport()))
	out := b.String()
	assert.Contains(t, out, "Run run-1")
	assert.Contains(t, out, "R1 55.00")
	assert.Contains(t, out, "projected 47.3000")
	assert.Contains(t, out, "1 warning(s)")
}

type failingSink struct{ err error }

func (f failingSink) Write(context.Context, *Report) error { return f.err }

func TestMultiJoinsErrors(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")
	var b strings.Builder
	err := Multi{failingSink{errA}, Terminal{W: &b}, failingSink{errB}}.Write(context.Background(), sampleReport())
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.NotEmpty(t, b.String())

	assert.NoError(t, Multi{}.Write(context.Background(), sampleReport()))
}

func TestSinkFunc(t *testing.T) {
	var got string
	s := SinkFunc(func(_ context.Context, r *Report) error {
		got = r.RunID
		return nil
	})
	require.NoError(t, Multi{s}.Write(context.Background(), sampleReport()))
	assert.Equal(t, "run-1", got)
}
