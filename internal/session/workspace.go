package session

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/book-expert/voice-client/internal/player"
	"github.com/book-expert/voice-client/internal/profiles"
	"github.com/book-expert/voice-client/internal/request"
	"github.com/book-expert/voice-client/internal/voiceapi"
)

const errFmtOpenSource = "failed to open %s: %w"

// API is the part of the voice client a Workspace drives.
type API interface {
	Synthesize(ctx context.Context, req voiceapi.TTSRequest) voiceapi.Result[voiceapi.OperationResult]
	Convert(ctx context.Context, req voiceapi.VCRequest) voiceapi.Result[voiceapi.OperationResult]
	UploadVC(ctx context.Context, upload voiceapi.VCUpload) voiceapi.Result[voiceapi.OperationResult]
	ResolveURL(locator string) string
}

// Workspace is one interactive client session: independent TTS and VC slots,
// a player for each and a profile snapshot. Nothing is shared between
// workspaces.
type Workspace struct {
	api       API
	directory *profiles.Directory
	TTSPlayer *player.Player
	VCPlayer  *player.Player
	TTS       Slot[voiceapi.OperationResult]
	VC        Slot[voiceapi.OperationResult]
	profiles  []voiceapi.SpeakerProfile
	mu        sync.Mutex
}

// NewWorkspace creates a workspace. directory may be nil, in which case
// only the default profile is offered.
func NewWorkspace(api API, directory *profiles.Directory) *Workspace {
	return &Workspace{
		api:       api,
		directory: directory,
		TTSPlayer: player.New(nil),
		VCPlayer:  player.New(nil),
		profiles:  profiles.WithDefault(nil),
	}
}

// RefreshProfiles replaces the profile snapshot with a fresh listing.
func (w *Workspace) RefreshProfiles(ctx context.Context) []voiceapi.SpeakerProfile {
	var listed []voiceapi.SpeakerProfile
	if w.directory != nil {
		listed = w.directory.List(ctx)
	}

	snapshot := profiles.WithDefault(listed)

	w.mu.Lock()
	w.profiles = snapshot
	w.mu.Unlock()

	return slices.Clone(snapshot)
}

// Profiles returns the current profile snapshot.
func (w *Workspace) Profiles() []voiceapi.SpeakerProfile {
	w.mu.Lock()
	defer w.mu.Unlock()

	return slices.Clone(w.profiles)
}

// Synthesize validates and submits a TTS request through the TTS slot and
// loads the produced audio into the TTS player.
func (w *Workspace) Synthesize(
	ctx context.Context,
	text string,
	opts request.TTSOptions,
) voiceapi.Result[voiceapi.OperationResult] {
	return w.TTS.SubmitThen(ctx, func(ctx context.Context) voiceapi.Result[voiceapi.OperationResult] {
		req, err := request.BuildTTS(text, opts)
		if err != nil {
			return voiceapi.Fail[voiceapi.OperationResult](voiceapi.AsError(err))
		}

		return w.api.Synthesize(ctx, req)
	}, w.loader(w.TTSPlayer))
}

// Convert validates, encodes and submits a VC request through the VC slot
// and loads the converted audio into the VC player.
func (w *Workspace) Convert(
	ctx context.Context,
	src *request.Source,
	targetSpeaker string,
	opts request.VCOptions,
) voiceapi.Result[voiceapi.OperationResult] {
	return w.VC.SubmitThen(ctx, func(ctx context.Context) voiceapi.Result[voiceapi.OperationResult] {
		req, err := request.BuildVC(ctx, src, targetSpeaker, opts)
		if err != nil {
			return voiceapi.Fail[voiceapi.OperationResult](voiceapi.AsError(err))
		}

		return w.api.Convert(ctx, req)
	}, w.loader(w.VCPlayer))
}

// Upload is Convert with the source sent as a multipart file rather than
// encoded into the request body. It shares the VC slot and player.
func (w *Workspace) Upload(
	ctx context.Context,
	src *request.Source,
	targetSpeaker string,
	opts request.VCOptions,
) voiceapi.Result[voiceapi.OperationResult] {
	return w.VC.SubmitThen(ctx, func(ctx context.Context) voiceapi.Result[voiceapi.OperationResult] {
		err := request.CheckVC(src, targetSpeaker, opts)
		if err != nil {
			return voiceapi.Fail[voiceapi.OperationResult](voiceapi.AsError(err))
		}

		reader := src.Reader
		if reader == nil {
			// #nosec G304 -- the caller selected this file for upload
			file, openErr := os.Open(src.File.Path)
			if openErr != nil {
				return voiceapi.Fail[voiceapi.OperationResult](
					voiceapi.Validation(fmt.Errorf(errFmtOpenSource, src.File.Path, openErr)))
			}
			defer file.Close()

			reader = file
		}

		return w.api.UploadVC(ctx, voiceapi.VCUpload{
			Audio:         reader,
			FileName:      src.File.Name,
			MIMEType:      src.File.MIMEType,
			TargetSpeaker: targetSpeaker,
			PreservePitch: opts.Preserve(),
		})
	}, w.loader(w.VCPlayer))
}

// loader returns the slot callback that loads a kept result into p.
func (w *Workspace) loader(p *player.Player) func(voiceapi.OperationResult) {
	return func(value voiceapi.OperationResult) {
		var duration time.Duration
		if value.Duration != nil {
			duration = time.Duration(*value.Duration * float64(time.Second))
		}

		p.Load(w.api.ResolveURL(value.AudioURL), duration)
	}
}
