// internal/embedding/preprocessor.go
package embedding

import (
	"regexp"
	"strings"
)

// Embedding input gets a heavier cleanup than stored text: lowercasing
// and punctuation stripping help the sentence model, but the stored
// record keeps its original form. Medical notation like "10mg/day" or
// "bp: 120/80" must survive both paths.
var (
	// RE2 has no backreferences, so repeated punctuation is matched per
	// character and collapsed to the first rune of the run.
	repeatedPunct = regexp.MustCompile(`\.{2,}|!{2,}|\?{2,}|,{2,}|;{2,}|:{2,}`)
	specialChars  = regexp.MustCompile("[#@$%^&*_+=\\[\\]{}|\\\\<>~`]+")
	multiSpace    = regexp.MustCompile(` +`)
)

// NormalizeWhitespace collapses tabs, newlines, and runs of spaces to
// single spaces. This is the only transformation applied to stored text.
func NormalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// ForEmbedding prepares text for the embedding model: whitespace
// normalization, lowercasing, and punctuation cleanup that keeps
// periods, commas, colons, hyphens, slashes, and parentheses.
func ForEmbedding(text string) string {
	if text == "" {
		return ""
	}
	text = NormalizeWhitespace(text)
	text = strings.ToLower(text)
	text = repeatedPunct.ReplaceAllStringFunc(text, func(run string) string {
		return run[:1]
	})
	text = specialChars.ReplaceAllString(text, " ")
	text = multiSpace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
