package rules

import (
	"math"
	"strings"
	"unicode"

	"github.com/kailas-cloud/rankdex/internal/domain"
)

// BM25 default parameters.
const (
	defaultK1 = 1.5
	defaultB  = 0.75
)

// bm25 scores candidates against a query using the candidate set itself
// as the corpus. The index is rebuilt per call; sets at this depth are
// small enough that this stays cheap.
type bm25 struct {
	k1 float64
	b  float64
}

// Score returns one BM25 score per document, in input order.
func (r bm25) Score(query string, docs domain.CandidateSet) []float64 {
	queryTokens := tokenize(query)
	scores := make([]float64, len(docs))
	if len(docs) == 0 || len(queryTokens) == 0 {
		return scores
	}

	termFreqs := make([]map[string]int, len(docs))
	docFreqs := make(map[string]int)
	docLengths := make([]int, len(docs))
	totalLength := 0

	for i, d := range docs {
		tokens := tokenize(d.Content)
		docLengths[i] = len(tokens)
		totalLength += len(tokens)

		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
			docFreqs[tok]++
		}
		termFreqs[i] = tf
	}

	avgLength := float64(totalLength) / float64(len(docs))
	total := float64(len(docs))

	for i := range docs {
		var score float64
		for _, tok := range queryTokens {
			tf, ok := termFreqs[i][tok]
			if !ok {
				continue
			}
			df := float64(docFreqs[tok])
			idf := math.Log((total-df+0.5)/(df+0.5) + 1.0)

			num := float64(tf) * (r.k1 + 1)
			den := float64(tf) + r.k1*(1-r.b+r.b*float64(docLengths[i])/avgLength)
			score += idf * num / math.Max(den, 1e-9)
		}
		scores[i] = score
	}
	return scores
}

// tokenize lowercases and splits on non-letter, non-digit runes.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
