package bench

import (
	"math"
	"strings"
	"unicode"
)

// Tokenize lowercases text and splits it into word and number tokens.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func ngrams(tokens []string, n int) map[string]int {
	counts := make(map[string]int)
	for i := 0; i+n <= len(tokens); i++ {
		counts[strings.Join(tokens[i:i+n], " ")]++
	}
	return counts
}

// BLEU is sentence-level BLEU-4 with uniform weights and a brevity penalty.
// Like the unsmoothed reference implementation, it is 0 when any n-gram
// order has no match.
func BLEU(reference, candidate string) float64 {
	ref, cand := Tokenize(reference), Tokenize(candidate)
	if len(cand) == 0 || len(ref) == 0 {
		return 0
	}

	const maxOrder = 4
	var logSum float64
	for n := 1; n <= maxOrder; n++ {
		candGrams := ngrams(cand, n)
		refGrams := ngrams(ref, n)
		var matched, total int
		for g, c := range candGrams {
			total += c
			matched += min(c, refGrams[g])
		}
		if total == 0 || matched == 0 {
			return 0
		}
		logSum += math.Log(float64(matched) / float64(total))
	}

	bp := 1.0
	if len(cand) < len(ref) {
		bp = math.Exp(1 - float64(len(ref))/float64(len(cand)))
	}
	return bp * math.Exp(logSum/maxOrder)
}

// RougeN is the ROUGE-N F-measure.
func RougeN(reference, candidate string, n int) float64 {
	refGrams := ngrams(Tokenize(reference), n)
	candGrams := ngrams(Tokenize(candidate), n)
	var overlap, refTotal, candTotal int
	for g, c := range refGrams {
		refTotal += c
		overlap += min(c, candGrams[g])
	}
	for _, c := range candGrams {
		candTotal += c
	}
	return fMeasure(overlap, refTotal, candTotal)
}

// RougeL is the ROUGE-L F-measure over the longest common subsequence.
func RougeL(reference, candidate string) float64 {
	ref, cand := Tokenize(reference), Tokenize(candidate)
	return fMeasure(lcs(ref, cand), len(ref), len(cand))
}

func fMeasure(overlap, refTotal, candTotal int) float64 {
	if overlap == 0 || refTotal == 0 || candTotal == 0 {
		return 0
	}
	precision := float64(overlap) / float64(candTotal)
	recall := float64(overlap) / float64(refTotal)
	return 2 * precision * recall / (precision + recall)
}

func lcs(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
			} else {
				cur[j] = max(prev[j], cur[j-1])
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
