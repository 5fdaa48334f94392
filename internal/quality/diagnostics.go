package quality

import (
	"math"
	"sort"
	"strings"

	"github.com/TobiSchelling/summaryqc/internal/segment"
)

// Diagnostics are corpus-level statistics over a set of summaries.
type Diagnostics struct {
	Count         int
	MeanWords     float64
	MedianWords   float64
	StdWords      float64
	MinWords      int
	MaxWords      int
	MeanSentences float64
	// LexicalDiversity is distinct words over total words across the corpus.
	LexicalDiversity float64
	// RepeatedBigrams counts, per text, the distinct word bigrams that occur
	// more than once, summed over the corpus.
	RepeatedBigrams     int
	MeanQuality         float64
	WithSpeculation     int
	WithExcessiveDetail int
}

// Summarize computes Diagnostics for texts using the default scorer.
func Summarize(texts []string) Diagnostics {
	return Default().Summarize(texts)
}

// Summarize computes Diagnostics for texts.
func (s *Scorer) Summarize(texts []string) Diagnostics {
	d := Diagnostics{Count: len(texts)}
	if len(texts) == 0 {
		return d
	}

	lengths := make([]int, len(texts))
	vocab := make(map[string]struct{})
	var totalWords, totalSentences, totalScore int
	for i, text := range texts {
		words := segment.Words(text)
		lengths[i] = len(words)
		totalWords += len(words)
		totalSentences += len(segment.Segment(text))
		for _, w := range words {
			vocab[w] = struct{}{}
		}
		d.RepeatedBigrams += repeatedBigrams(words)

		r := s.Score(text)
		totalScore += r.Score
		if r.Has(Speculation) {
			d.WithSpeculation++
		}
		if r.ExcessiveDetail() {
			d.WithExcessiveDetail++
		}
	}

	n := float64(len(texts))
	d.MeanWords = float64(totalWords) / n
	d.MeanSentences = float64(totalSentences) / n
	d.MeanQuality = float64(totalScore) / n
	if totalWords > 0 {
		d.LexicalDiversity = float64(len(vocab)) / float64(totalWords)
	}

	sorted := append([]int(nil), lengths...)
	sort.Ints(sorted)
	d.MinWords = sorted[0]
	d.MaxWords = sorted[len(sorted)-1]
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		d.MedianWords = float64(sorted[mid])
	} else {
		d.MedianWords = float64(sorted[mid-1]+sorted[mid]) / 2
	}

	// Sample standard deviation.
	if len(lengths) > 1 {
		var ss float64
		for _, l := range lengths {
			diff := float64(l) - d.MeanWords
			ss += diff * diff
		}
		d.StdWords = math.Sqrt(ss / (n - 1))
	}
	return d
}

func repeatedBigrams(words []string) int {
	if len(words) < 2 {
		return 0
	}
	counts := make(map[string]int, len(words)-1)
	for i := 0; i+1 < len(words); i++ {
		counts[words[i]+" "+words[i+1]]++
	}
	var n int
	for _, c := range counts {
		if c > 1 {
			n++
		}
	}
	return n
}

// TopRepeatedBigrams returns the n most frequent bigrams that occur more than
// once within a single text, with their counts, most frequent first.
func TopRepeatedBigrams(texts []string, n int) []BigramCount {
	var out []BigramCount
	for _, text := range texts {
		words := segment.Words(text)
		counts := make(map[string]int)
		for i := 0; i+1 < len(words); i++ {
			counts[words[i]+" "+words[i+1]]++
		}
		for bigram, c := range counts {
			if c > 1 {
				out = append(out, BigramCount{Bigram: bigram, Count: c})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return strings.Compare(out[i].Bigram, out[j].Bigram) < 0
	})
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// BigramCount is a bigram and how often it occurred within one text.
type BigramCount struct {
	Bigram string
	Count  int
}
