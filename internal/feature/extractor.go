// Package feature turns raw messages into the normalized text and token
// representations the classifier consumes. Everything here is a pure
// function: the same input always produces the same output, which keeps
// training reproducible.
package feature

import (
	"regexp"
	"strings"

	"github.com/sortdesk/mailtriage/internal/model"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	tokenRe      = regexp.MustCompile(`[a-z0-9']+`)
)

// Clean lowercases text and collapses all whitespace runs to single spaces.
func Clean(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(strings.ToLower(text), " "))
}

// Summarize returns the first maxSentences sentences of the text. Newlines
// are treated as spaces so multi-line bodies summarize the same as flat ones.
func Summarize(text string, maxSentences int) string {
	if maxSentences <= 0 {
		return ""
	}
	flat := strings.ReplaceAll(text, "\n", " ")
	sentences := strings.SplitN(flat, ". ", maxSentences+1)
	if len(sentences) > maxSentences {
		sentences = sentences[:maxSentences]
	}
	return strings.TrimSpace(strings.Join(sentences, ". "))
}

// Text combines a message's subject and body into the cleaned text used for
// classification. Missing subject or body contribute nothing rather than
// failing.
func Text(m *model.Message) string {
	return Clean(m.Subject + " " + m.Body)
}

// Tokenize splits cleaned text into lowercase word tokens, dropping
// single-character tokens and common English stop words.
func Tokenize(text string) []string {
	words := tokenRe.FindAllString(strings.ToLower(text), -1)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) < 2 {
			continue
		}
		if stopWords[w] {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}
