package overlap

import (
	"context"
	"strings"
	"unicode"
)

// ROUGE is the built-in Scorer. It computes ROUGE-1 and ROUGE-2 F1 over
// clipped n-gram counts and ROUGE-L F1 over the longest common subsequence,
// averaged across pairs. Tokens are lower-cased whitespace-delimited words
// with leading and trailing punctuation removed.
type ROUGE struct{}

// Score implements Scorer.
func (ROUGE) Score(ctx context.Context, predictions, references []string) (Scores, error) {
	if len(predictions) != len(references) {
		return Scores{}, &InputShapeError{Candidates: len(predictions), References: len(references)}
	}
	if len(predictions) == 0 {
		return Scores{}, nil
	}

	var sum Scores
	for i := range predictions {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return Scores{}, err
			}
		}
		s := PairScores(predictions[i], references[i])
		sum.Unigram += s.Unigram
		sum.Bigram += s.Bigram
		sum.LCS += s.LCS
	}
	n := float64(len(predictions))
	return Scores{Unigram: sum.Unigram / n, Bigram: sum.Bigram / n, LCS: sum.LCS / n}, nil
}

// PairScores returns the F1 scores for one prediction against one reference.
// Either side being empty scores zero.
func PairScores(prediction, reference string) Scores {
	pred := Tokenize(prediction)
	ref := Tokenize(reference)
	return Scores{
		Unigram: ngramF1(pred, ref, 1),
		Bigram:  ngramF1(pred, ref, 2),
		LCS:     f1(lcsLen(pred, ref), len(pred), len(ref)),
	}
}

// Tokenize lower-cases s, splits it on whitespace and trims punctuation and
// symbols from each token. Tokens that are empty after trimming are dropped.
func Tokenize(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	out := fields[:0]
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		})
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func ngrams(tokens []string, n int) map[string]int {
	counts := make(map[string]int)
	for i := 0; i+n <= len(tokens); i++ {
		counts[strings.Join(tokens[i:i+n], "\x00")]++
	}
	return counts
}

func ngramF1(pred, ref []string, n int) float64 {
	p := ngrams(pred, n)
	r := ngrams(ref, n)
	var overlap, predTotal, refTotal int
	for g, c := range p {
		predTotal += c
		overlap += min(c, r[g])
	}
	for _, c := range r {
		refTotal += c
	}
	return f1(overlap, predTotal, refTotal)
}

func f1(overlap, predTotal, refTotal int) float64 {
	if overlap == 0 || predTotal == 0 || refTotal == 0 {
		return 0
	}
	precision := float64(overlap) / float64(predTotal)
	recall := float64(overlap) / float64(refTotal)
	return 2 * precision * recall / (precision + recall)
}

func lcsLen(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else {
				curr[j] = max(prev[j], curr[j-1])
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
