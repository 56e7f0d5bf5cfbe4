// Package profiles gives read access to the backend's speaker profiles.
package profiles

import (
	"context"
	"slices"
	"time"

	"github.com/book-expert/logger"
	"golang.org/x/sync/singleflight"

	"github.com/book-expert/voice-client/internal/voiceapi"
)

// DefaultID identifies the synthetic profile that is always selectable.
const (
	DefaultID   = "default"
	DefaultName = "Default"
	flightKey   = "profiles"
)

// FetchTimeout bounds one shared profile fetch.
const FetchTimeout = 30 * time.Second

// Log messages.
const (
	logFmtFetchFailed = "Failed to load speaker profiles, continuing with an empty list: %v"
	logFmtFetched     = "Loaded %d speaker profiles"
)

// Source fetches the profile list. *voiceapi.Client satisfies it.
type Source interface {
	Profiles(ctx context.Context) voiceapi.Result[voiceapi.ProfileList]
}

// Directory lists speaker profiles. Concurrent List calls share one fetch.
type Directory struct {
	source Source
	log    *logger.Logger
	group  singleflight.Group
}

// NewDirectory creates a Directory backed by source.
func NewDirectory(source Source, log *logger.Logger) *Directory {
	return &Directory{source: source, log: log}
}

// List fetches the full profile list. A failed fetch is logged and yields an
// empty list so callers can keep working with the default speaker. The shared
// fetch does not inherit cancellation from whichever caller started it; a
// caller whose ctx ends first gets an empty list.
func (d *Directory) List(ctx context.Context) []voiceapi.SpeakerProfile {
	flight := d.group.DoChan(flightKey, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), FetchTimeout)
		defer cancel()

		result := d.source.Profiles(fetchCtx)
		if !result.OK() {
			d.log.Warn(logFmtFetchFailed, result.Err())

			return []voiceapi.SpeakerProfile{}, nil
		}

		list := result.Value().Profiles
		d.log.Info(logFmtFetched, len(list))

		return list, nil
	})

	select {
	case <-ctx.Done():
		return []voiceapi.SpeakerProfile{}
	case shared := <-flight:
		profiles, _ := shared.Val.([]voiceapi.SpeakerProfile)
		if profiles == nil {
			return []voiceapi.SpeakerProfile{}
		}

		return slices.Clone(profiles)
	}
}

// WithDefault returns profiles with the default profile first, adding a
// synthetic one when the backend did not list it.
func WithDefault(profiles []voiceapi.SpeakerProfile) []voiceapi.SpeakerProfile {
	result := make([]voiceapi.SpeakerProfile, 0, len(profiles)+1)

	index := slices.IndexFunc(profiles, func(p voiceapi.SpeakerProfile) bool { return p.ID == DefaultID })
	if index >= 0 {
		result = append(result, profiles[index])
		result = append(result, profiles[:index]...)

		return append(result, profiles[index+1:]...)
	}

	result = append(result, voiceapi.SpeakerProfile{ID: DefaultID, Name: DefaultName})

	return append(result, profiles...)
}

// Contains reports whether a profile with id is present.
func Contains(profiles []voiceapi.SpeakerProfile, id string) bool {
	return slices.ContainsFunc(profiles, func(p voiceapi.SpeakerProfile) bool { return p.ID == id })
}

// IDs returns the profile identifiers in order.
func IDs(profiles []voiceapi.SpeakerProfile) []string {
	ids := make([]string, len(profiles))
	for i, profile := range profiles {
		ids[i] = profile.ID
	}

	return ids
}
