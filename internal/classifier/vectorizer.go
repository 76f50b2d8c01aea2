// Package classifier implements the priority classifier: a TF-IDF vectorizer
// paired with a multinomial logistic regression model, owned as one versioned
// unit behind an atomic swap.
package classifier

import (
	"math"
	"sort"

	"github.com/sortdesk/mailtriage/internal/feature"
)

// Vectorizer maps tokenized text onto a fixed-size TF-IDF vector. The
// vocabulary is fitted once per training run; fitting the same documents in
// any order yields the same vocabulary and IDF weights.
type Vectorizer struct {
	Vocabulary map[string]int
	IDF        []float64
}

// FitVectorizer builds a vectorizer from the given document texts.
func FitVectorizer(docs []string) *Vectorizer {
	docFreq := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]bool)
		for _, tok := range feature.Tokenize(doc) {
			if !seen[tok] {
				seen[tok] = true
				docFreq[tok]++
			}
		}
	}

	terms := make([]string, 0, len(docFreq))
	for term := range docFreq {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	v := &Vectorizer{
		Vocabulary: make(map[string]int, len(terms)),
		IDF:        make([]float64, len(terms)),
	}

	n := float64(len(docs))
	for i, term := range terms {
		v.Vocabulary[term] = i
		// Smoothed IDF so unseen-in-training terms never divide by zero.
		v.IDF[i] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}

	return v
}

// Dim returns the vector dimensionality.
func (v *Vectorizer) Dim() int {
	return len(v.IDF)
}

// Transform converts text into an L2-normalized TF-IDF vector. Terms outside
// the fitted vocabulary are ignored.
func (v *Vectorizer) Transform(text string) []float64 {
	vec := make([]float64, v.Dim())
	for _, tok := range feature.Tokenize(text) {
		if idx, ok := v.Vocabulary[tok]; ok {
			vec[idx]++
		}
	}

	var norm float64
	for i := range vec {
		vec[i] *= v.IDF[i]
		norm += vec[i] * vec[i]
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}

	return vec
}
