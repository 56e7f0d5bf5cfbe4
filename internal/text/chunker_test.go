package text_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/book-expert/voice-client/internal/text"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertWithinLimit(t *testing.T, chunks []string, limit int) {
	t.Helper()

	for i, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), limit, "chunk %d too long", i)
		assert.NotEmpty(t, strings.TrimSpace(chunk), "chunk %d empty", i)
	}
}

func TestChunker_Split(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected []string
		limit    int
	}{
		{
			name:     "empty",
			input:    "  \n\t ",
			limit:    100,
			expected: nil,
		},
		{
			name:     "fits in one chunk",
			input:    "Hello world. How are you?",
			limit:    100,
			expected: []string{"Hello world. How are you?"},
		},
		{
			name:     "packs sentences greedily",
			input:    "One two. Three four. Five six.",
			limit:    20,
			expected: []string{"One two. Three four.", "Five six."},
		},
		{
			name:     "collapses whitespace",
			input:    "Line one.\r\n\r\nLine\ttwo.",
			limit:    100,
			expected: []string{"Line one. Line two."},
		},
		{
			name:     "decimal point is not a boundary",
			input:    "Pi is 3.14 today. Yes.",
			limit:    17,
			expected: []string{"Pi is 3.14 today.", "Yes."},
		},
		{
			name:     "cjk sentences",
			input:    "你好。今天天氣很好！我們去散步吧？",
			limit:    6,
			expected: []string{"你好。", "今天天氣很好！", "我們去散步吧？"},
		},
		{
			name:     "long sentence falls back to words",
			input:    "alpha beta gamma delta epsilon",
			limit:    12,
			expected: []string{"alpha beta", "gamma delta", "epsilon"},
		},
		{
			name:     "long word is hard split",
			input:    "abcdefghij",
			limit:    4,
			expected: []string{"abcd", "efgh", "ij"},
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			chunks := text.NewChunker(testCase.limit).Split(testCase.input)
			assert.Equal(t, testCase.expected, chunks)
			assertWithinLimit(t, chunks, testCase.limit)
		})
	}
}

func TestChunker_LargeInputRespectsCeiling(t *testing.T) {
	t.Parallel()

	input := strings.Repeat("This sentence is filler for a long document. ", 200)
	chunker := text.NewChunker(1000)

	chunks := chunker.Split(input)
	require.NotEmpty(t, chunks)
	assertWithinLimit(t, chunks, chunker.MaxRunes())

	assert.Equal(t, chunker.Normalize(input), strings.Join(chunks, " "))
}

func TestChunker_Normalize(t *testing.T) {
	t.Parallel()

	chunker := text.NewChunker(10)
	assert.Equal(t, "a - b c-d", chunker.Normalize("  a—b\n\nc–d "))
	assert.Equal(t, 1, text.NewChunker(0).MaxRunes())
}
