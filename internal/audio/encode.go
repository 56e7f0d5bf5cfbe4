package audio

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/book-expert/voice-client/internal/fileutil"
)

const (
	errFmtReadAudio = "failed to read audio: %w"
	errFmtOpenAudio = "failed to open %s: %w"
	errFmtDecode    = "failed to decode audio payload: %w"
)

// Encoded is the outcome of an asynchronous encode.
type Encoded struct {
	Err     error
	Payload string
	Size    int64
}

// Encode represents arbitrary bytes as standard padded base64.
func Encode(data []byte) string {
	var builder strings.Builder

	builder.Grow(base64.StdEncoding.EncodedLen(len(data)))

	encoder := base64.NewEncoder(base64.StdEncoding, &builder)
	_, _ = encoder.Write(data)
	_ = encoder.Close()

	return builder.String()
}

// Decode reverses Encode.
func Decode(payload string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf(errFmtDecode, err)
	}

	return data, nil
}

// EncodeAsync reads r to the end and encodes it in the background. The
// returned channel yields exactly one value. Reads are never interrupted, but
// if ctx is done by the time encoding finishes the payload is discarded and
// the value carries ctx.Err(). Input larger than MaxFileSize is rejected.
func EncodeAsync(ctx context.Context, r io.Reader) <-chan Encoded {
	out := make(chan Encoded, 1)

	go func() {
		defer close(out)

		out <- settle(ctx, encodeReader(r))
	}()

	return out
}

// EncodeFile is EncodeAsync over the file at path.
func EncodeFile(ctx context.Context, path string) <-chan Encoded {
	out := make(chan Encoded, 1)

	go func() {
		defer close(out)

		// #nosec G304 -- the caller selected this file for upload
		file, err := os.Open(path)
		if err != nil {
			out <- Encoded{Err: fmt.Errorf(errFmtOpenAudio, path, err)}

			return
		}

		result := encodeReader(file)
		_ = file.Close()

		out <- settle(ctx, result)
	}()

	return out
}

func encodeReader(r io.Reader) Encoded {
	data, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return Encoded{Err: fmt.Errorf(errFmtReadAudio, err)}
	}

	if int64(len(data)) > MaxFileSize {
		return Encoded{Err: fmt.Errorf(errFmtTooLarge, ErrFileTooLarge,
			"over "+fileutil.FormatFileSize(MaxFileSize), fileutil.FormatFileSize(MaxFileSize))}
	}

	return Encoded{Payload: Encode(data), Size: int64(len(data))}
}

func settle(ctx context.Context, result Encoded) Encoded {
	if err := ctx.Err(); err != nil {
		return Encoded{Err: err}
	}

	return result
}
