package quality

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/summaryqc/internal/rules"
)

// words repeats w n times, space separated.
func words(w string, n int) string {
	return strings.TrimSpace(strings.Repeat(w+" ", n))
}

func TestScore(t *testing.T) {
	s := Default()

	tests := []struct {
		name      string
		text      string
		score     int
		triggered []Category
	}{
		{"clean", "그는 학교에 갔다.", 100, nil},
		{"empty", "", 100, nil},
		{"one hedge", "그가 올 것으로 보입니다.", 85, []Category{Speculation}},
		{"five numerals", "1 2 3 4 5", 100, nil},
		{"six numerals", "1일 2일 3일 4일 5일 6일", 90, []Category{Numerals}},
		{"long sentence", words("단어", 31) + ".", 90, []Category{LongSentences}},
		{"two long sentences", words("단어", 31) + ". " + words("낱말", 31) + ".", 90, []Category{LongSentences}},
		{"three connectives", "그리고 왔다. 또한 갔다. 하지만 쉬었다.", 100, nil},
		{"four connectives", "그리고 왔다. 또한 갔다. 하지만 쉬었다. 그래서 잤다.", 90, []Category{ConnectiveOverload}},
		{
			"combined",
			"1 2 3 4 5 6. " + words("단어", 31) + ". 아마도 그리고 또한 하지만 그러나.",
			55,
			[]Category{Numerals, LongSentences, Speculation, ConnectiveOverload},
		},
		{"floor", strings.Repeat("아마도 ", 7), 0, []Category{Speculation}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := s.Score(tt.text)
			assert.Equal(t, tt.score, r.Score)
			assert.Equal(t, tt.triggered, r.Triggered)
		})
	}
}

func TestScoreCounts(t *testing.T) {
	r := Default().Score(words("단어", 31) + ". " + words("낱말", 31) + ". 아마도 추측일 것으로 보입니다.")

	assert.Equal(t, 2, r.Counts[LongSentences])
	assert.Equal(t, 3, r.Counts[Speculation])
	assert.Zero(t, r.Counts[Numerals])
	assert.ElementsMatch(t, []string{"것으로 보입니다", "아마도", "추측"}, r.Matches)
	assert.True(t, r.ExcessiveDetail())
	assert.True(t, r.Has(Speculation))
	assert.False(t, r.Has(ConnectiveOverload))
}

func TestScoreMonotonicInSpeculation(t *testing.T) {
	s := Default()
	bases := []string{
		"그는 학교에 갔다.",
		"그는 아마도 학교에 갔다.",
		"1 2 3 4 5 6 7. 그리고 또한 하지만 그러나.",
		words("단어", 40) + ".",
		strings.Repeat("아마도 ", 6),
	}
	for _, base := range bases {
		before := s.Score(base).Score
		after := s.Score(base + " 추측이다.").Score
		if before >= speculationPenalty {
			assert.Equal(t, before-speculationPenalty, after, "base %q", base)
		} else {
			assert.Equal(t, 0, after, "base %q", base)
		}
	}
}

func TestCustomConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumeralLimit = 1
	cfg.Hedges = []rules.Entry{{Name: "maybe", Pattern: `maybe`}}
	cfg.Connectives = []string{"and"}
	cfg.ConnectiveLimit = 0

	s, err := New(cfg)
	require.NoError(t, err)

	r := s.Score("maybe 1 and 2.")
	assert.Equal(t, []Category{Numerals, Speculation, ConnectiveOverload}, r.Triggered)
	assert.Equal(t, 65, r.Score)
}

func TestNewRejectsBadHedge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Hedges = []rules.Entry{{Name: "bad", Pattern: `[`}}
	_, err := New(cfg)
	assert.ErrorContains(t, err, "bad")
}

func TestLowest(t *testing.T) {
	results := []Result{{Score: 90}, {Score: 40}, {Score: 100}, {Score: 40}}
	assert.Equal(t, []int{1, 3}, Lowest(results, 2))
	assert.Equal(t, []int{1, 3, 0, 2}, Lowest(results, 10))
	assert.Empty(t, Lowest(nil, 3))
}

func TestSummarize(t *testing.T) {
	d := Summarize([]string{"가 나 다", "가 나 가 나"})

	assert.Equal(t, 2, d.Count)
	assert.InDelta(t, 3.5, d.MeanWords, 1e-9)
	assert.InDelta(t, 3.5, d.MedianWords, 1e-9)
	assert.InDelta(t, 0.7071, d.StdWords, 1e-4)
	assert.Equal(t, 3, d.MinWords)
	assert.Equal(t, 4, d.MaxWords)
	assert.InDelta(t, 1.0, d.MeanSentences, 1e-9)
	assert.InDelta(t, 3.0/7.0, d.LexicalDiversity, 1e-9)
	assert.Equal(t, 1, d.RepeatedBigrams)
	assert.InDelta(t, 100.0, d.MeanQuality, 1e-9)
	assert.Zero(t, d.WithSpeculation)
	assert.Zero(t, d.WithExcessiveDetail)
}

func TestSummarizeEmpty(t *testing.T) {
	d := Summarize(nil)
	assert.Equal(t, Diagnostics{}, d)
}

func TestSummarizeCountsDefects(t *testing.T) {
	d := Summarize([]string{"아마도 왔다.", words("단어", 31) + ".", "좋다."})
	assert.Equal(t, 1, d.WithSpeculation)
	assert.Equal(t, 1, d.WithExcessiveDetail)
	assert.InDelta(t, 2.0, d.MedianWords, 1e-9)
}

func TestTopRepeatedBigrams(t *testing.T) {
	got := TopRepeatedBigrams([]string{"가 나 가 나 가 나", "다 라 다 라", "마 바"}, 5)
	assert.Equal(t, []BigramCount{
		{Bigram: "가 나", Count: 3},
		{Bigram: "나 가", Count: 2},
		{Bigram: "다 라", Count: 2},
	}, got)
}
