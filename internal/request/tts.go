// Package request builds validated TTS, VC and batch request bodies.
//
// Builders never touch the network. Every rejection is a *voiceapi.Error of
// kind validation, so callers can treat builder and client failures alike.
package request

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/book-expert/voice-client/internal/voiceapi"
)

// Limits and defaults for TTS requests.
const (
	MaxTextLength   = 1000
	MinSpeed        = 0.5
	MaxSpeed        = 2.0
	DefaultSpeed    = 1.0
	DefaultSpeaker  = "default"
	DefaultLanguage = "zh"
	MaxBatchSize    = 50
)

// Error messages.
const (
	errFmtTooLong       = "%w: %d characters, max %d"
	errFmtLanguage      = "%w: %q (supported: %s)"
	errFmtSpeed         = "%w: %.2f is outside [%.1f, %.1f]"
	errFmtBatchTooLarge = "%w: %d texts, max %d"
	errFmtBatchItem     = "text %d: %w"
)

// Validation errors.
var (
	ErrTextTooLong         = errors.New("text is too long")
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrSpeedOutOfRange     = errors.New("speed out of range")
	ErrEmptyBatch          = errors.New("batch must contain at least one text")
	ErrBatchTooLarge       = errors.New("batch is too large")
)

// Languages lists the accepted language codes.
var Languages = []string{"zh", "en", "ja"}

// TTSOptions are the tunable TTS parameters. Zero values select the defaults.
type TTSOptions struct {
	SpeakerID string
	Language  string
	Speed     float64
}

func (o TTSOptions) withDefaults() TTSOptions {
	if strings.TrimSpace(o.SpeakerID) == "" {
		o.SpeakerID = DefaultSpeaker
	}

	if o.Language == "" {
		o.Language = DefaultLanguage
	}

	if o.Speed == 0 {
		o.Speed = DefaultSpeed
	}

	return o
}

func (o TTSOptions) validate() error {
	if !slices.Contains(Languages, o.Language) {
		return fmt.Errorf(errFmtLanguage, ErrUnsupportedLanguage, o.Language, strings.Join(Languages, ", "))
	}

	if math.IsNaN(o.Speed) || o.Speed < MinSpeed || o.Speed > MaxSpeed {
		return fmt.Errorf(errFmtSpeed, ErrSpeedOutOfRange, o.Speed, MinSpeed, MaxSpeed)
	}

	return nil
}

// BuildTTS validates text and options and returns the request body.
// Text is sent as entered; it is only checked for emptiness and length.
func BuildTTS(text string, opts TTSOptions) (voiceapi.TTSRequest, error) {
	opts = opts.withDefaults()

	err := checkText(text)
	if err == nil {
		err = opts.validate()
	}

	if err != nil {
		return voiceapi.TTSRequest{}, voiceapi.Validation(err)
	}

	return voiceapi.TTSRequest{
		Text:      text,
		SpeakerID: opts.SpeakerID,
		Language:  opts.Language,
		Speed:     opts.Speed,
	}, nil
}

// BuildBatch applies the TTS rules to every text and returns a batch body.
func BuildBatch(texts []string, opts TTSOptions) (voiceapi.BatchTTSRequest, error) {
	opts = opts.withDefaults()

	switch {
	case len(texts) == 0:
		return voiceapi.BatchTTSRequest{}, voiceapi.Validation(ErrEmptyBatch)
	case len(texts) > MaxBatchSize:
		return voiceapi.BatchTTSRequest{}, voiceapi.Validation(
			fmt.Errorf(errFmtBatchTooLarge, ErrBatchTooLarge, len(texts), MaxBatchSize))
	}

	for i, text := range texts {
		err := checkText(text)
		if err != nil {
			return voiceapi.BatchTTSRequest{}, voiceapi.Validation(fmt.Errorf(errFmtBatchItem, i+1, err))
		}
	}

	err := opts.validate()
	if err != nil {
		return voiceapi.BatchTTSRequest{}, voiceapi.Validation(err)
	}

	return voiceapi.BatchTTSRequest{
		Texts:     slices.Clone(texts),
		SpeakerID: opts.SpeakerID,
		Language:  opts.Language,
		Speed:     opts.Speed,
	}, nil
}

// TruncateInput cuts text to MaxTextLength characters, as an input field would.
func TruncateInput(text string) string {
	if utf8.RuneCountInString(text) <= MaxTextLength {
		return text
	}

	return string([]rune(text)[:MaxTextLength])
}

// CharCount returns the number of characters in text.
func CharCount(text string) int {
	return utf8.RuneCountInString(text)
}

func checkText(text string) error {
	if strings.TrimSpace(text) == "" {
		return voiceapi.ErrTextEmpty
	}

	if count := CharCount(text); count > MaxTextLength {
		return fmt.Errorf(errFmtTooLong, ErrTextTooLong, count, MaxTextLength)
	}

	return nil
}
