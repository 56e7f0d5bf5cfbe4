// Package worker provides a NATS worker that turns processed text into speech
// through the voice backend.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/voice-client/internal/audio"
	"github.com/book-expert/voice-client/internal/core"
	"github.com/book-expert/voice-client/internal/fileutil"
	"github.com/book-expert/voice-client/internal/request"
	"github.com/book-expert/voice-client/internal/text"
)

const handleMessageTimeout = 2 * time.Minute

// Log and error formats.
const (
	errFmtSubscribe      = "failed to subscribe to subject %s: %w"
	errFmtDrain          = "failed to drain subscription: %w"
	errFmtUnmarshalEvent = "failed to unmarshal event: %w"
	errFmtDownloadText   = "failed to download text data for key '%s': %w"
	errFmtBuildRequest   = "failed to build TTS request: %w"
	errFmtSynthesize     = "failed to synthesize speech: %w"
	errFmtFetchAudio     = "failed to fetch audio from %s: %w"
	errFmtUploadAudio    = "failed to upload audio data for key '%s': %w"
	errFmtChunk          = "chunk %d of %d: %w"
	errFmtJoinAudio      = "failed to join %d audio chunks: %w"
	errFmtMarshalReply   = "failed to marshal reply event: %w"
	errFmtPublishReply   = "failed to publish reply event: %w"
	logFmtListening      = "Listening for text events on %s"
	logFmtParseFailed    = "Failed to parse event: %v"
	logFmtJobFailed      = "Failed to process TTS job for workflow %s (page %d): %v"
	logFmtReplyFailed    = "Failed to publish reply event for workflow %s: %v"
	logFmtJobDone        = "Stored audio %s for workflow %s page %d/%d"
	logFmtSplitPage      = "Page %d of workflow %s split into %d chunks"
)

// NatsWorker listens for processed text events and replies with the key of
// the synthesized audio.
type NatsWorker struct {
	natsConnection *nats.Conn
	texts          core.ObjectStore
	audio          core.ObjectStore
	speech         core.SpeechService
	log            *logger.Logger
	chunker        *text.Chunker
	subject        string
	defaults       request.TTSOptions
}

// NewNatsWorker creates a worker. defaults supply the language, speed and
// speaker used when an event does not name a voice.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	texts core.ObjectStore,
	audioStore core.ObjectStore,
	speech core.SpeechService,
	defaults request.TTSOptions,
	log *logger.Logger,
) *NatsWorker {
	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		texts:          texts,
		audio:          audioStore,
		speech:         speech,
		defaults:       defaults,
		log:            log,
		chunker:        text.NewChunker(request.MaxTextLength),
	}
}

// Run subscribes and blocks until ctx is done, then drains the subscription.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf(errFmtSubscribe, w.subject, err)
	}

	w.log.Info(logFmtListening, w.subject)

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf(errFmtDrain, drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	event, err := parseEvent(msg)
	if err != nil {
		w.log.Error(logFmtParseFailed, err)

		return
	}

	audioKey, err := w.processTTSJob(ctx, event)
	if err != nil {
		w.log.Error(logFmtJobFailed, event.Header.WorkflowID, event.PageNumber, err)

		return
	}

	reply := &events.AudioChunkCreatedEvent{
		Header:     event.Header,
		AudioKey:   audioKey,
		PageNumber: event.PageNumber,
		TotalPages: event.TotalPages,
	}

	err = publishReply(msg, reply)
	if err != nil {
		w.log.Error(logFmtReplyFailed, event.Header.WorkflowID, err)

		return
	}

	w.log.Info(logFmtJobDone, audioKey, event.Header.WorkflowID, event.PageNumber, event.TotalPages)
}

// processTTSJob downloads the page text, synthesizes it chunk by chunk,
// joins the produced audio and stores it under a fresh key.
func (w *NatsWorker) processTTSJob(ctx context.Context, event *events.TextProcessedEvent) (string, error) {
	textData, err := w.texts.Download(ctx, event.TextKey)
	if err != nil {
		return "", fmt.Errorf(errFmtDownloadText, event.TextKey, err)
	}

	opts := w.defaults
	if event.Voice != "" {
		opts.SpeakerID = event.Voice
	}

	page := string(textData)

	chunks := []string{page}
	if request.CharCount(page) > request.MaxTextLength {
		if split := w.chunker.Split(page); len(split) > 0 {
			chunks = split
			w.log.Info(logFmtSplitPage, event.PageNumber, event.Header.WorkflowID, len(chunks))
		}
	}

	parts := make([][]byte, 0, len(chunks))
	format := audio.FormatWAV

	for i, chunk := range chunks {
		data, chunkFormat, chunkErr := w.synthesizeChunk(ctx, chunk, opts)
		if chunkErr != nil {
			if len(chunks) == 1 {
				return "", chunkErr
			}

			return "", fmt.Errorf(errFmtChunk, i+1, len(chunks), chunkErr)
		}

		parts = append(parts, data)
		format = chunkFormat
	}

	audioData := parts[0]
	if len(parts) > 1 {
		audioData, err = audio.JoinWAV(parts)
		if err != nil {
			return "", fmt.Errorf(errFmtJoinAudio, len(parts), err)
		}

		format = audio.FormatWAV
	}

	audioKey := uuid.NewString() + format.Extension()

	err = w.audio.Upload(ctx, audioKey, audioData)
	if err != nil {
		return "", fmt.Errorf(errFmtUploadAudio, audioKey, err)
	}

	return audioKey, nil
}

// synthesizeChunk runs one TTS request and fetches the produced audio.
func (w *NatsWorker) synthesizeChunk(
	ctx context.Context,
	chunk string,
	opts request.TTSOptions,
) ([]byte, audio.Format, error) {
	req, err := request.BuildTTS(chunk, opts)
	if err != nil {
		return nil, "", fmt.Errorf(errFmtBuildRequest, err)
	}

	result, err := w.speech.Synthesize(ctx, req).Unwrap()
	if err != nil {
		return nil, "", fmt.Errorf(errFmtSynthesize, err)
	}

	var buffer bytes.Buffer

	_, err = w.speech.Download(ctx, result.AudioURL, &buffer).Unwrap()
	if err != nil {
		return nil, "", fmt.Errorf(errFmtFetchAudio, result.AudioURL, err)
	}

	return buffer.Bytes(), audioFormat(result.AudioURL), nil
}

// audioFormat picks the stored file's format from the backend locator,
// defaulting to WAV.
func audioFormat(locator string) audio.Format {
	name := fileutil.FilenameFromLocator(locator, "")

	format, ok := audio.FormatForExtension(fileutil.GetFileExtension(name))
	if !ok {
		return audio.FormatWAV
	}

	return format
}

func publishReply(msg *nats.Msg, reply *events.AudioChunkCreatedEvent) error {
	replyData, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf(errFmtMarshalReply, err)
	}

	err = msg.Respond(replyData)
	if err != nil {
		return fmt.Errorf(errFmtPublishReply, err)
	}

	return nil
}

func parseEvent(msg *nats.Msg) (*events.TextProcessedEvent, error) {
	var event events.TextProcessedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		return nil, fmt.Errorf(errFmtUnmarshalEvent, err)
	}

	return &event, nil
}
