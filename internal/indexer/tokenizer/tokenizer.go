// Package tokenizer extracts index terms from a line of document text.
// A term is a run of word characters, a percent sign followed by digits,
// or a dollar sign followed by digits, lower-cased.
package tokenizer

import (
	"regexp"
	"strings"
)

var termPattern = regexp.MustCompile(`\w+|%\d+|\$\d+`)

// Token represents a single normalised term and its position in the
// original text.
type Token struct {
	Term     string
	Position int
}

// Tokenize returns the terms of text in order of appearance. Repeated terms
// are kept; merging happens per document in the emitter.
func Tokenize(text string) []Token {
	matches := termPattern.FindAllString(text, -1)
	tokens := make([]Token, 0, len(matches))
	for pos, m := range matches {
		tokens = append(tokens, Token{
			Term:     strings.ToLower(m),
			Position: pos,
		})
	}
	return tokens
}
