// Package player models playback of a produced audio result.
//
// The Player tracks state on its own; an optional Media backend is driven
// alongside it so a real output device follows the same transitions.
package player

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/book-expert/voice-client/internal/fileutil"
	"github.com/book-expert/voice-client/internal/voiceapi"
)

// State is a playback state.
type State int

// Playback states.
const (
	Idle State = iota
	Loaded
	Playing
	Paused
	Ended
)

// Volume limits.
const (
	MinVolume     = 0.0
	MaxVolume     = 1.0
	DefaultVolume = 1.0
)

// Error messages.
const (
	errFmtVolume = "%w: %.2f is outside [%.1f, %.1f]"
	errFmtMedia  = "media %s failed: %w"
)

// Player errors.
var (
	ErrNoAudio          = errors.New("no audio loaded")
	ErrVolumeOutOfRange = errors.New("volume out of range")
	ErrInvalidFraction  = errors.New("seek fraction must be a number")
)

var stateNames = map[State]string{
	Idle:    "idle",
	Loaded:  "loaded",
	Playing: "playing",
	Paused:  "paused",
	Ended:   "ended",
}

// String returns the state name.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}

	return fmt.Sprintf("state(%d)", int(s))
}

// Media is an audio output the player drives.
type Media interface {
	Play() error
	Pause() error
	Seek(position time.Duration) error
	SetVolume(volume float64) error
}

// Downloader saves a remote audio locator into a directory.
type Downloader interface {
	DownloadFile(ctx context.Context, locator, dir, filename string) voiceapi.Result[string]
}

// Player holds the playback state of one audio result.
type Player struct {
	media    Media
	locator  string
	duration time.Duration
	position time.Duration
	volume   float64
	state    State
	mu       sync.Mutex
}

// New creates an idle player. media may be nil.
func New(media Media) *Player {
	return &Player{media: media, volume: DefaultVolume}
}

// Load replaces the current audio. An empty locator resets the player to
// Idle, where it shows a placeholder.
func (p *Player) Load(locator string, duration time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == Playing && p.media != nil {
		_ = p.media.Pause()
	}

	p.locator = locator
	p.position = 0
	p.duration = max(duration, 0)

	if locator == "" {
		p.state = Idle
		p.duration = 0

		return
	}

	p.state = Loaded
}

// Placeholder reports whether there is nothing to play.
func (p *Player) Placeholder() bool {
	return p.State() == Idle
}

// State returns the current playback state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.state
}

// Locator returns the loaded audio locator.
func (p *Player) Locator() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.locator
}

// Toggle switches between playing and paused. Toggling from Ended replays
// from the start.
func (p *Player) Toggle() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case Idle:
		return ErrNoAudio
	case Playing:
		err := p.drive("pause", func(m Media) error { return m.Pause() })
		if err != nil {
			return err
		}

		p.state = Paused
	case Ended:
		err := p.drive("seek", func(m Media) error { return m.Seek(0) })
		if err != nil {
			return err
		}

		p.position = 0

		fallthrough
	default:
		err := p.drive("play", func(m Media) error { return m.Play() })
		if err != nil {
			return err
		}

		p.state = Playing
	}

	return nil
}

// Progress reports the media position. Reaching the duration ends playback.
func (p *Player) Progress(position time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == Idle {
		return
	}

	p.position = clampDuration(position, p.duration)

	if p.state == Playing && p.duration > 0 && p.position >= p.duration {
		p.state = Ended
	}
}

// Finish marks playback as ended, as when the media reports completion.
func (p *Player) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == Idle {
		return
	}

	p.position = p.duration
	p.state = Ended
}

// SeekFraction moves to fraction of the duration; fraction is clamped to [0, 1].
func (p *Player) SeekFraction(fraction float64) error {
	if math.IsNaN(fraction) {
		return ErrInvalidFraction
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == Idle {
		return ErrNoAudio
	}

	fraction = min(max(fraction, 0), 1)
	target := time.Duration(fraction * float64(p.duration))

	err := p.drive("seek", func(m Media) error { return m.Seek(target) })
	if err != nil {
		return err
	}

	p.position = target

	if p.state == Ended && target < p.duration {
		p.state = Paused
	}

	return nil
}

// SetVolume sets the output volume in [0, 1].
func (p *Player) SetVolume(volume float64) error {
	if math.IsNaN(volume) || volume < MinVolume || volume > MaxVolume {
		return fmt.Errorf(errFmtVolume, ErrVolumeOutOfRange, volume, MinVolume, MaxVolume)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.drive("volume", func(m Media) error { return m.SetVolume(volume) })
	if err != nil {
		return err
	}

	p.volume = volume

	return nil
}

// Volume returns the output volume.
func (p *Player) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.volume
}

// Position returns the playback position.
func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.position
}

// Elapsed formats the position as M:SS.
func (p *Player) Elapsed() string {
	return fileutil.FormatClock(p.Position().Seconds())
}

// Total formats the duration as M:SS.
func (p *Player) Total() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return fileutil.FormatClock(p.duration.Seconds())
}

// Download saves the loaded audio into dir. An empty filename is derived
// from the locator.
func (p *Player) Download(ctx context.Context, downloader Downloader, dir, filename string) voiceapi.Result[string] {
	locator := p.Locator()
	if locator == "" {
		return voiceapi.Fail[string](&voiceapi.Error{
			Kind:    voiceapi.KindDownload,
			Message: ErrNoAudio.Error(),
			Err:     ErrNoAudio,
		})
	}

	return downloader.DownloadFile(ctx, locator, dir, filename)
}

func (p *Player) drive(action string, fn func(Media) error) error {
	if p.media == nil {
		return nil
	}

	err := fn(p.media)
	if err != nil {
		return fmt.Errorf(errFmtMedia, action, err)
	}

	return nil
}

func clampDuration(value, limit time.Duration) time.Duration {
	if value < 0 {
		return 0
	}

	if limit > 0 && value > limit {
		return limit
	}

	return value
}
