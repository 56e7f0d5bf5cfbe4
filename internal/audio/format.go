// Package audio provides client-side handling of audio files for upload:
// format identification, validation against the accepted formats and size
// limit, and lossless text-safe encoding of audio bytes.
package audio

import "strings"

// Format represents a supported audio format.
type Format string

// Supported formats.
const (
	FormatWAV  Format = "wav"
	FormatMP3  Format = "mp3"
	FormatOGG  Format = "ogg"
	FormatM4A  Format = "m4a"
	FormatFLAC Format = "flac"
)

// SupportedFormats lists formats in display order.
var SupportedFormats = []Format{FormatWAV, FormatMP3, FormatOGG, FormatM4A, FormatFLAC}

// mimeFormats maps every accepted MIME type, including common aliases, to its format.
var mimeFormats = map[string]Format{
	"audio/wav":      FormatWAV,
	"audio/wave":     FormatWAV,
	"audio/x-wav":    FormatWAV,
	"audio/vnd.wave": FormatWAV,
	"audio/mpeg":     FormatMP3,
	"audio/mp3":      FormatMP3,
	"audio/ogg":      FormatOGG,
	"audio/vorbis":   FormatOGG,
	"audio/opus":     FormatOGG,
	"audio/mp4":      FormatM4A,
	"audio/m4a":      FormatM4A,
	"audio/x-m4a":    FormatM4A,
	"audio/flac":     FormatFLAC,
	"audio/x-flac":   FormatFLAC,
}

// canonicalMIME is the MIME type reported for a format identified by extension.
var canonicalMIME = map[Format]string{
	FormatWAV:  "audio/wav",
	FormatMP3:  "audio/mpeg",
	FormatOGG:  "audio/ogg",
	FormatM4A:  "audio/mp4",
	FormatFLAC: "audio/flac",
}

// FormatForMIME returns the format for an accepted MIME type. Parameters such
// as "; codecs=opus" are ignored.
func FormatForMIME(mimeType string) (Format, bool) {
	base, _, _ := strings.Cut(mimeType, ";")

	format, ok := mimeFormats[strings.ToLower(strings.TrimSpace(base))]

	return format, ok
}

// FormatForExtension returns the format for a file extension with or without the dot.
func FormatForExtension(ext string) (Format, bool) {
	format := Format(strings.ToLower(strings.TrimPrefix(ext, ".")))
	_, ok := canonicalMIME[format]

	return format, ok
}

// MIMEType returns the canonical MIME type of the format.
func (f Format) MIMEType() string {
	return canonicalMIME[f]
}

// Extension returns the file extension including the leading dot.
func (f Format) Extension() string {
	return "." + string(f)
}
