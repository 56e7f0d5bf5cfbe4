// Package core defines the collaborator interfaces shared by the worker and
// its commands.
package core

import (
	"context"
	"io"

	"github.com/book-expert/voice-client/internal/voiceapi"
)

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}

// SpeechService synthesizes speech and fetches the produced audio.
// *voiceapi.Client satisfies it.
type SpeechService interface {
	Synthesize(ctx context.Context, req voiceapi.TTSRequest) voiceapi.Result[voiceapi.OperationResult]
	Download(ctx context.Context, locator string, dst io.Writer) voiceapi.Result[int64]
}
