// Package text splits long input into synthesis-sized chunks.
//
// Chunks are built from whole sentences where possible, then whole words,
// and only as a last resort from a hard rune split, so every chunk respects
// the backend's per-request character ceiling.
package text

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const whitespaceRegexPattern = `\s+`

// Punctuation and formatting constants.
const (
	emDash     = "—"
	enDash     = "–"
	figureDash = "‒"
	space      = " "
)

// sentenceTerminators end a sentence in Latin and CJK text.
var sentenceTerminators = map[rune]struct{}{
	'.': {}, '!': {}, '?': {}, ';': {},
	'。': {}, '！': {}, '？': {}, '；': {}, '…': {},
}

// closingMarks may trail a terminator and belong to the same sentence.
var closingMarks = map[rune]struct{}{
	'"': {}, '\'': {}, ')': {}, ']': {},
	'”': {}, '’': {}, '」': {}, '』': {}, '）': {},
}

// Chunker splits text into chunks of at most MaxRunes runes.
type Chunker struct {
	whitespacePattern *regexp.Regexp
	dashReplacer      *strings.Replacer
	maxRunes          int
}

// NewChunker creates a chunker with the given rune ceiling. Values below one
// are treated as one.
func NewChunker(maxRunes int) *Chunker {
	if maxRunes < 1 {
		maxRunes = 1
	}

	return &Chunker{
		maxRunes:          maxRunes,
		whitespacePattern: regexp.MustCompile(whitespaceRegexPattern),
		dashReplacer:      strings.NewReplacer(emDash, " - ", enDash, "-", figureDash, "-"),
	}
}

// MaxRunes returns the chunk ceiling.
func (c *Chunker) MaxRunes() int {
	return c.maxRunes
}

// Normalize collapses whitespace and normalizes dashes.
func (c *Chunker) Normalize(text string) string {
	text = c.dashReplacer.Replace(text)
	text = c.whitespacePattern.ReplaceAllString(text, space)

	return strings.TrimSpace(text)
}

// Split normalizes text and packs it into chunks. Empty input yields no chunks.
func (c *Chunker) Split(text string) []string {
	normalized := c.Normalize(text)
	if normalized == "" {
		return nil
	}

	var (
		chunks  []string
		current strings.Builder
		size    int
	)

	flush := func() {
		if size > 0 {
			chunks = append(chunks, current.String())
			current.Reset()

			size = 0
		}
	}

	for _, piece := range c.pieces(normalized) {
		pieceSize := utf8.RuneCountInString(piece)

		joiner := 0
		if size > 0 {
			joiner = 1
		}

		if size+joiner+pieceSize > c.maxRunes {
			flush()

			joiner = 0
		}

		if joiner == 1 {
			current.WriteString(space)
		}

		current.WriteString(piece)
		size += joiner + pieceSize
	}

	flush()

	return chunks
}

// pieces breaks text into sentences, and oversized sentences into words or
// rune slices, so that every piece fits the ceiling on its own.
func (c *Chunker) pieces(text string) []string {
	var result []string

	for _, sentence := range splitSentences(text) {
		if utf8.RuneCountInString(sentence) <= c.maxRunes {
			result = append(result, sentence)

			continue
		}

		for _, word := range strings.Fields(sentence) {
			result = append(result, hardSplit(word, c.maxRunes)...)
		}
	}

	return result
}

func splitSentences(text string) []string {
	runes := []rune(text)

	var (
		sentences []string
		start     int
	)

	for i := 0; i < len(runes); i++ {
		if _, ok := sentenceTerminators[runes[i]]; !ok {
			continue
		}

		end := i + 1
		for end < len(runes) && isTrailing(runes[end]) {
			end++
		}

		if end < len(runes) && !unicode.IsSpace(runes[end]) && !isCJK(runes[i]) {
			continue
		}

		if sentence := strings.TrimSpace(string(runes[start:end])); sentence != "" {
			sentences = append(sentences, sentence)
		}

		start = end
		i = end - 1
	}

	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		sentences = append(sentences, tail)
	}

	return sentences
}

func isTrailing(r rune) bool {
	if _, ok := sentenceTerminators[r]; ok {
		return true
	}

	_, ok := closingMarks[r]

	return ok
}

func isCJK(r rune) bool {
	return r >= 0x3000 && r <= 0x303F || r >= 0xFF00 && r <= 0xFFEF || r == '…'
}

func hardSplit(word string, maxRunes int) []string {
	runes := []rune(word)
	if len(runes) <= maxRunes {
		return []string{word}
	}

	parts := make([]string, 0, len(runes)/maxRunes+1)
	for start := 0; start < len(runes); start += maxRunes {
		end := min(start+maxRunes, len(runes))
		parts = append(parts, string(runes[start:end]))
	}

	return parts
}
