// Package fileutil provides file and path helpers shared by the voice client:
// directory creation, filename sanitizing and human-readable formatting of
// durations and sizes.
package fileutil

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// Common path constants.
const (
	defaultDirPermissions  = 0o750
	dot                    = "."
	invalidCharReplacement = "_"
	fallbackFilename       = "audio"
)

// Data size constants.
const (
	byteUnit = 1
	kilobyte = byteUnit * 1024
	megabyte = kilobyte * 1024
	gigabyte = megabyte * 1024
)

// Time and size formatting constants.
const (
	secondsInMinute = 60
	secondsInHour   = 3600
	formatSeconds   = "%.1fs"
	formatMinutes   = "%dm %.1fs"
	formatHours     = "%dh %dm"
	formatClock     = "%d:%02d"
	zeroClock       = "0:00"
	formatGB        = "%.1f GB"
	formatMB        = "%.1f MB"
	formatKB        = "%.1f KB"
	formatBytes     = "%d B"
)

const errFmtFailedToCreateDir = "failed to create directory %s: %w"

// EnsureDir ensures a directory exists at the given path, creating it if it doesn't.
func EnsureDir(path string) error {
	_, statErr := os.Stat(path)
	if os.IsNotExist(statErr) {
		mkdirErr := os.MkdirAll(path, defaultDirPermissions)
		if mkdirErr != nil {
			return fmt.Errorf(errFmtFailedToCreateDir, path, mkdirErr)
		}
	}

	return nil
}

// FormatDuration formats seconds for result summaries (e.g. "5.2s", "5m 30.5s", "1h 15m").
func FormatDuration(seconds float64) string {
	if seconds < secondsInMinute {
		return fmt.Sprintf(formatSeconds, seconds)
	}

	if seconds < secondsInHour {
		minutes := int(seconds / secondsInMinute)
		remainingSeconds := seconds - float64(minutes*secondsInMinute)

		return fmt.Sprintf(formatMinutes, minutes, remainingSeconds)
	}

	hours := int(seconds / secondsInHour)
	remainingSeconds := seconds - float64(hours*secondsInHour)
	remainingMinutes := int(remainingSeconds / secondsInMinute)

	return fmt.Sprintf(formatHours, hours, remainingMinutes)
}

// FormatClock formats seconds as M:SS for a player time display. NaN, infinite
// and negative values render as "0:00".
func FormatClock(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return zeroClock
	}

	total := int(math.Floor(seconds))

	return fmt.Sprintf(formatClock, total/secondsInMinute, total%secondsInMinute)
}

// FormatFileSize formats a file size in a human-readable string (e.g. "1.2 GB", "500.5 MB").
func FormatFileSize(bytes int64) string {
	switch {
	case bytes >= gigabyte:
		return fmt.Sprintf(formatGB, float64(bytes)/gigabyte)
	case bytes >= megabyte:
		return fmt.Sprintf(formatMB, float64(bytes)/megabyte)
	case bytes >= kilobyte:
		return fmt.Sprintf(formatKB, float64(bytes)/kilobyte)
	default:
		return fmt.Sprintf(formatBytes, bytes)
	}
}

// GetFileExtension returns the lower-cased file extension without the leading dot.
func GetFileExtension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), dot))
}

// SanitizeFilename replaces characters that are invalid in most filesystems and
// strips any directory components, so the result is always a bare file name.
func SanitizeFilename(filename string) string {
	replacer := strings.NewReplacer(
		"<", invalidCharReplacement,
		">", invalidCharReplacement,
		":", invalidCharReplacement,
		"\"", invalidCharReplacement,
		"/", invalidCharReplacement,
		"\\", invalidCharReplacement,
		"|", invalidCharReplacement,
		"?", invalidCharReplacement,
		"*", invalidCharReplacement,
	)

	cleaned := strings.TrimSpace(replacer.Replace(filename))
	if cleaned == "" || cleaned == dot || cleaned == ".." {
		return fallbackFilename
	}

	return cleaned
}

// FilenameFromLocator derives a download file name from an audio locator such
// as "/outputs/tts_1.wav" or "https://cdn/x.mp3?sig=1".
func FilenameFromLocator(locator, fallback string) string {
	trimmed := locator
	if idx := strings.IndexAny(trimmed, "?#"); idx >= 0 {
		trimmed = trimmed[:idx]
	}

	base := filepath.Base(filepath.ToSlash(trimmed))
	if base == "" || base == dot || base == "/" {
		return SanitizeFilename(fallback)
	}

	return SanitizeFilename(base)
}
