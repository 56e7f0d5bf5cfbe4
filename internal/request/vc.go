package request

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/book-expert/voice-client/internal/audio"
	"github.com/book-expert/voice-client/internal/voiceapi"
)

const errFmtUnknownSpeaker = "%w: %q"

// VC errors.
var (
	ErrNoFile         = errors.New("please select an audio file")
	ErrUnknownSpeaker = errors.New("unknown target speaker")
)

// Source is the audio selected for conversion. When Reader is nil the file
// at File.Path is read.
type Source struct {
	Reader io.Reader
	File   audio.File
}

// VCOptions tune a VC request. A nil PreservePitch means true.
type VCOptions struct {
	PreservePitch *bool
	KnownSpeakers []string
}

// CheckVC checks, in order, that a file was selected, that a target speaker
// was chosen, that the target is known when KnownSpeakers is set and that the
// file passes audio validation.
func CheckVC(src *Source, targetSpeaker string, opts VCOptions) error {
	if src == nil {
		return voiceapi.Validation(ErrNoFile)
	}

	if strings.TrimSpace(targetSpeaker) == "" {
		return voiceapi.Validation(voiceapi.ErrNoTarget)
	}

	if opts.KnownSpeakers != nil && !slices.Contains(opts.KnownSpeakers, targetSpeaker) {
		return voiceapi.Validation(fmt.Errorf(errFmtUnknownSpeaker, ErrUnknownSpeaker, targetSpeaker))
	}

	err := audio.Validate(src.File)
	if err != nil {
		return voiceapi.Validation(err)
	}

	return nil
}

// BuildVC runs CheckVC and then waits for the source to be encoded.
// Cancelling ctx abandons the encoding.
func BuildVC(ctx context.Context, src *Source, targetSpeaker string, opts VCOptions) (voiceapi.VCRequest, error) {
	err := CheckVC(src, targetSpeaker, opts)
	if err != nil {
		return voiceapi.VCRequest{}, err
	}

	var pending <-chan audio.Encoded
	if src.Reader != nil {
		pending = audio.EncodeAsync(ctx, src.Reader)
	} else {
		pending = audio.EncodeFile(ctx, src.File.Path)
	}

	var encoded audio.Encoded

	select {
	case encoded = <-pending:
	case <-ctx.Done():
		return voiceapi.VCRequest{}, voiceapi.Validation(ctx.Err())
	}

	if encoded.Err != nil {
		return voiceapi.VCRequest{}, voiceapi.Validation(encoded.Err)
	}

	return voiceapi.VCRequest{
		SourceAudio:   encoded.Payload,
		TargetSpeaker: targetSpeaker,
		PreservePitch: opts.Preserve(),
	}, nil
}

// Preserve resolves PreservePitch, defaulting to true.
func (o VCOptions) Preserve() bool {
	if o.PreservePitch == nil {
		return true
	}

	return *o.PreservePitch
}
