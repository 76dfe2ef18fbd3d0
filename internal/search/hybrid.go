package search

import (
	"math"
	"strings"
)

// BM25 parameters. k1 controls term-frequency saturation, b controls length
// normalization.
const (
	bm25K1 = 1.5
	bm25B  = 0.75

	// hybridAlpha weights the vector score against the lexical score.
	hybridAlpha = 0.7
)

// tokenize folds to lower case and splits on whitespace.
func tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// bm25Scores computes a BM25 score per document text for the query terms.
// Document frequency is computed over the given texts.
func bm25Scores(query string, texts []string) []float64 {
	terms := tokenize(query)
	scores := make([]float64, len(texts))
	if len(terms) == 0 || len(texts) == 0 {
		return scores
	}

	docTerms := make([]map[string]int, len(texts))
	lengths := make([]float64, len(texts))
	var totalLen float64
	for i, text := range texts {
		freq := make(map[string]int)
		tokens := tokenize(text)
		for _, tok := range tokens {
			freq[tok]++
		}
		docTerms[i] = freq
		lengths[i] = float64(len(tokens))
		totalLen += lengths[i]
	}
	avgLen := totalLen / float64(len(texts))
	if avgLen == 0 {
		return scores
	}

	n := float64(len(texts))
	for _, term := range terms {
		df := 0
		for _, freq := range docTerms {
			if freq[term] > 0 {
				df++
			}
		}
		if df == 0 {
			continue
		}
		idf := math.Log((n-float64(df)+0.5)/(float64(df)+0.5) + 1)

		for i, freq := range docTerms {
			tf := float64(freq[term])
			if tf == 0 {
				continue
			}
			denom := tf + bm25K1*(1-bm25B+bm25B*lengths[i]/avgLen)
			scores[i] += idf * tf * (bm25K1 + 1) / denom
		}
	}
	return scores
}

// minMaxNormalize rescales scores to [0, 1] over the candidate set. A flat
// set maps to all ones when positive, otherwise all zeros.
func minMaxNormalize(scores []float64) []float64 {
	if len(scores) == 0 {
		return scores
	}
	min, max := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}

	out := make([]float64, len(scores))
	if max == min {
		if max > 0 {
			for i := range out {
				out[i] = 1
			}
		}
		return out
	}
	for i, s := range scores {
		out[i] = (s - min) / (max - min)
	}
	return out
}

// hybridScores blends normalized cosine and BM25 scores with hybridAlpha.
func hybridScores(cosine []float64, query string, texts []string) []float64 {
	vec := minMaxNormalize(cosine)
	lex := minMaxNormalize(bm25Scores(query, texts))

	out := make([]float64, len(cosine))
	for i := range out {
		out[i] = hybridAlpha*vec[i] + (1-hybridAlpha)*lex[i]
	}
	return out
}
