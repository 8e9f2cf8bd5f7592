// internal/chunker/chunker.go
package chunker

import (
	"regexp"
	"strings"
)

// Default word limits for chunking. Chunks target 200-300 words so each
// embedding covers one coherent topic from a note or document.
const (
	DefaultTargetWords  = 250
	DefaultMinWords     = 50
	DefaultMaxWords     = 350
	DefaultOverlapWords = 30
)

// sentenceBoundary matches end-of-sentence punctuation followed by
// whitespace and a capital letter. Avoids splitting on abbreviations
// like "Dr." or "mg." that are followed by lowercase text.
var (
	sentenceBoundary = regexp.MustCompile(`([.!?])\s+([A-Z])`)
	looseBoundary    = regexp.MustCompile(`[.!?]+\s*`)
)

// Chunker splits text into word-bounded chunks with sentence-boundary
// preservation and overlap between consecutive chunks. It is stateless:
// the same input always produces the same chunks.
type Chunker struct {
	TargetWords  int
	MinWords     int
	MaxWords     int
	OverlapWords int
}

// New returns a chunker with the default word limits.
func New() *Chunker {
	return &Chunker{
		TargetWords:  DefaultTargetWords,
		MinWords:     DefaultMinWords,
		MaxWords:     DefaultMaxWords,
		OverlapWords: DefaultOverlapWords,
	}
}

// Chunk splits text into ordered, non-empty chunks. Empty or
// whitespace-only input yields nil.
func (c *Chunker) Chunk(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	sentences := c.splitSentences(text)
	if len(sentences) == 0 {
		return []string{strings.TrimSpace(text)}
	}

	var chunks []string
	var current []string
	currentWords := 0

	for _, sentence := range sentences {
		sentenceWords := wordCount(sentence)

		// A single oversized sentence bypasses sentence logic entirely.
		if sentenceWords > c.MaxWords {
			if len(current) > 0 {
				chunks = append(chunks, strings.Join(current, " "))
				current = nil
				currentWords = 0
			}
			chunks = append(chunks, c.splitLongSentence(sentence)...)
			continue
		}

		if currentWords+sentenceWords > c.TargetWords {
			if currentWords >= c.MinWords {
				chunks = append(chunks, strings.Join(current, " "))

				// Seed the next chunk with trailing sentences for context.
				overlap := c.overlapSentences(current)
				current = append(overlap, sentence)
				currentWords = 0
				for _, s := range current {
					currentWords += wordCount(s)
				}
			} else {
				current = append(current, sentence)
				currentWords += sentenceWords
			}
		} else {
			current = append(current, sentence)
			currentWords += sentenceWords
		}
	}

	// A short trailing chunk is merged into the previous one rather than
	// emitted alone, unless it is the only chunk.
	switch {
	case len(current) > 0 && currentWords >= c.MinWords:
		chunks = append(chunks, strings.Join(current, " "))
	case len(current) > 0 && len(chunks) > 0:
		chunks[len(chunks)-1] = chunks[len(chunks)-1] + " " + strings.Join(current, " ")
	case len(current) > 0:
		chunks = append(chunks, strings.Join(current, " "))
	}

	out := chunks[:0]
	for _, ch := range chunks {
		ch = strings.TrimSpace(ch)
		if ch != "" {
			out = append(out, ch)
		}
	}
	return out
}

// splitSentences splits text on sentence boundaries. If the text has no
// boundaries but is longer than MaxWords, a looser split is attempted so
// unpunctuated transcripts still chunk.
func (c *Chunker) splitSentences(text string) []string {
	marked := sentenceBoundary.ReplaceAllString(text, "$1\x00$2")
	parts := strings.Split(marked, "\x00")

	if len(parts) == 1 && wordCount(text) > c.MaxWords {
		parts = looseBoundary.Split(text, -1)
	}

	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			sentences = append(sentences, p)
		}
	}
	return sentences
}

// splitLongSentence force-splits by raw word count into target-sized pieces.
func (c *Chunker) splitLongSentence(sentence string) []string {
	words := strings.Fields(sentence)
	var chunks []string
	for i := 0; i < len(words); i += c.TargetWords {
		end := i + c.TargetWords
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[i:end], " "))
	}
	return chunks
}

// overlapSentences returns trailing sentences totalling up to OverlapWords.
func (c *Chunker) overlapSentences(sentences []string) []string {
	var overlap []string
	words := 0
	for i := len(sentences) - 1; i >= 0; i-- {
		n := wordCount(sentences[i])
		if words+n > c.OverlapWords {
			break
		}
		overlap = append([]string{sentences[i]}, overlap...)
		words += n
	}
	return overlap
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
