// Package relevance scores candidate documents against a task with TF-IDF
// cosine similarity. The vector space is rebuilt per call from the live
// candidate set.
package relevance

import (
	"math"
	"strings"
	"unicode"
)

// Tokenize lowercases s and splits it into alphanumeric runs.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Document joins the searchable fields of a candidate into one text.
func Document(name, description string, capabilities []string) string {
	parts := make([]string, 0, 2+len(capabilities))
	parts = append(parts, name, description)
	parts = append(parts, capabilities...)
	return strings.Join(parts, " ")
}

// Score returns the cosine similarity between task and each document, in
// document order. Each score lies in [0,1]; an empty task or document
// scores 0.
func Score(task string, docs []string) []float64 {
	scores := make([]float64, len(docs))
	if len(docs) == 0 {
		return scores
	}

	corpus := make([][]string, 0, len(docs)+1)
	corpus = append(corpus, Tokenize(task))
	for _, d := range docs {
		corpus = append(corpus, Tokenize(d))
	}

	idf := inverseDocumentFrequency(corpus)
	taskVec := weigh(corpus[0], idf)
	if len(taskVec) == 0 {
		return scores
	}
	for i := range docs {
		scores[i] = cosine(taskVec, weigh(corpus[i+1], idf))
	}
	return scores
}

// inverseDocumentFrequency uses the smoothed form ln((N+1)/(df+1)) + 1.
func inverseDocumentFrequency(corpus [][]string) map[string]float64 {
	df := make(map[string]int)
	for _, tokens := range corpus {
		seen := make(map[string]struct{}, len(tokens))
		for _, tok := range tokens {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	n := float64(len(corpus))
	idf := make(map[string]float64, len(df))
	for tok, count := range df {
		idf[tok] = math.Log((n+1)/(float64(count)+1)) + 1
	}
	return idf
}

func weigh(tokens []string, idf map[string]float64) map[string]float64 {
	vec := make(map[string]float64, len(tokens))
	for _, tok := range tokens {
		vec[tok]++
	}
	for tok, tf := range vec {
		vec[tok] = tf * idf[tok]
	}
	return vec
}

func cosine(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, na, nb float64
	for tok, wa := range a {
		na += wa * wa
		if wb, ok := b[tok]; ok {
			dot += wa * wb
		}
	}
	for _, wb := range b {
		nb += wb * wb
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
