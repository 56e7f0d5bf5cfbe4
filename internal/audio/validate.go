package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/book-expert/voice-client/internal/fileutil"
)

// MaxFileSize is the largest accepted upload, in bytes.
const MaxFileSize int64 = 50 * 1024 * 1024

// Error messages.
const (
	errFmtUnsupported  = "%w: %q is not an accepted audio type (supported: %s)"
	errFmtTooLarge     = "%w: file is %s, max size is %s"
	errFmtStatFile     = "failed to stat %s: %w"
	errFmtNotRegular   = "%w: %s"
	errFmtDetectFormat = "failed to detect content type of %s: %w"
)

// Validation errors.
var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrFileTooLarge      = errors.New("file too large")
	ErrNotRegularFile    = errors.New("not a regular file")
)

// genericMIME are sniffing results too vague to contradict the file extension.
var genericMIME = map[string]struct{}{
	"application/octet-stream": {},
	"application/ogg":          {},
}

// File describes an audio file selected for upload.
type File struct {
	Name     string
	Path     string
	MIMEType string
	Size     int64
}

// Format returns the file's audio format, if accepted.
func (f File) Format() (Format, bool) {
	return FormatForMIME(f.MIMEType)
}

// Validate checks the file's MIME type against the accepted formats and its
// size against MaxFileSize. The returned error message is meant for users.
func Validate(file File) error {
	if _, ok := FormatForMIME(file.MIMEType); !ok {
		return fmt.Errorf(errFmtUnsupported, ErrUnsupportedFormat, file.MIMEType, supportedList())
	}

	if file.Size > MaxFileSize {
		return fmt.Errorf(errFmtTooLarge, ErrFileTooLarge,
			fileutil.FormatFileSize(file.Size), fileutil.FormatFileSize(MaxFileSize))
	}

	return nil
}

// Inspect builds a File from disk. The MIME type is sniffed from content;
// when sniffing is inconclusive the extension decides.
func Inspect(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf(errFmtStatFile, path, err)
	}

	if !info.Mode().IsRegular() {
		return File{}, fmt.Errorf(errFmtNotRegular, ErrNotRegularFile, path)
	}

	detected, err := mimetype.DetectFile(path)
	if err != nil {
		return File{}, fmt.Errorf(errFmtDetectFormat, path, err)
	}

	return File{
		Name:     filepath.Base(path),
		Path:     path,
		MIMEType: resolveMIME(detected, path),
		Size:     info.Size(),
	}, nil
}

func resolveMIME(detected *mimetype.MIME, path string) string {
	for current := detected; current != nil; current = current.Parent() {
		if format, ok := acceptedFormat(current); ok {
			if _, exact := FormatForMIME(current.String()); exact {
				return current.String()
			}

			return format.MIMEType()
		}
	}

	sniffed := detected.String()
	base, _, _ := strings.Cut(sniffed, ";")

	if _, generic := genericMIME[base]; generic {
		if format, ok := FormatForExtension(filepath.Ext(path)); ok {
			return format.MIMEType()
		}
	}

	return sniffed
}

// acceptedFormat matches a detected type, or one of its aliases, against the
// accepted MIME types.
func acceptedFormat(detected *mimetype.MIME) (Format, bool) {
	for mimeType, format := range mimeFormats {
		if detected.Is(mimeType) {
			return format, true
		}
	}

	return "", false
}

func supportedList() string {
	names := make([]string, len(SupportedFormats))
	for i, format := range SupportedFormats {
		names[i] = string(format)
	}

	return strings.Join(names, ", ")
}
