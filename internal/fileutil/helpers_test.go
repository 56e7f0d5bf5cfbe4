package fileutil_test

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/book-expert/voice-client/internal/fileutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		expected string
		seconds  float64
	}{
		{name: "seconds", seconds: 5.2, expected: "5.2s"},
		{name: "zero", seconds: 0, expected: "0.0s"},
		{name: "minutes", seconds: 330.5, expected: "5m 30.5s"},
		{name: "hours", seconds: 4500, expected: "1h 15m"},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, testCase.expected, fileutil.FormatDuration(testCase.seconds))
		})
	}
}

func TestFormatClock(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		expected string
		seconds  float64
	}{
		{name: "zero", seconds: 0, expected: "0:00"},
		{name: "sub minute", seconds: 5.9, expected: "0:05"},
		{name: "over a minute", seconds: 75, expected: "1:15"},
		{name: "long", seconds: 3600, expected: "60:00"},
		{name: "nan", seconds: math.NaN(), expected: "0:00"},
		{name: "infinite", seconds: math.Inf(1), expected: "0:00"},
		{name: "negative", seconds: -3, expected: "0:00"},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, testCase.expected, fileutil.FormatClock(testCase.seconds))
		})
	}
}

func TestFormatFileSize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "512 B", fileutil.FormatFileSize(512))
	assert.Equal(t, "1.5 KB", fileutil.FormatFileSize(1536))
	assert.Equal(t, "50.0 MB", fileutil.FormatFileSize(50*1024*1024))
	assert.Equal(t, "2.0 GB", fileutil.FormatFileSize(2*1024*1024*1024))
}

func TestSanitizeFilename(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a_b_c.wav", fileutil.SanitizeFilename("a/b:c.wav"))
	assert.Equal(t, "audio", fileutil.SanitizeFilename("  "))
	assert.Equal(t, "audio", fileutil.SanitizeFilename(".."))
	assert.Equal(t, "clean.mp3", fileutil.SanitizeFilename("clean.mp3"))
}

func TestFilenameFromLocator(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "tts_1.wav", fileutil.FilenameFromLocator("/outputs/tts_1.wav", "x.wav"))
	assert.Equal(t, "vc.mp3", fileutil.FilenameFromLocator("https://cdn.example/a/vc.mp3?sig=abc", "x.wav"))
	assert.Equal(t, "fallback.wav", fileutil.FilenameFromLocator("/", "fallback.wav"))
}

func TestGetFileExtension(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "wav", fileutil.GetFileExtension("speech.WAV"))
	assert.Empty(t, fileutil.GetFileExtension("README"))
}

func TestEnsureDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, fileutil.EnsureDir(dir))
	assert.DirExists(t, dir)
	require.NoError(t, fileutil.EnsureDir(dir))
}
