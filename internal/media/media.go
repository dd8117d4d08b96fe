// Package media models acquired device streams and the scoped-release
// discipline shared by the capture pipelines.
package media

import (
	"errors"
	"sync"
)

// ErrDeviceUnavailable indicates permission was denied or no matching
// capture device exists.
var ErrDeviceUnavailable = errors.New("capture device unavailable or permission denied")

// ErrConflictingSession indicates an attempt to start a second capture
// session of a kind that is already active. Starts are rejected, not queued.
var ErrConflictingSession = errors.New("capture session of this kind already active")

// Constraints describes the device streams a pipeline wants to acquire.
type Constraints struct {
	Audio bool
	Video bool

	// Audio processing hints requested from the device layer.
	EchoCancellation bool
	NoiseSuppression bool

	// FacingMode selects the camera orientation ("environment" for the
	// rear-facing camera).
	FacingMode string
}

// Track is one live device track owned by a stream.
type Track struct {
	Kind string

	mu      sync.Mutex
	stopped bool
	stop    func()
}

// NewTrack wraps a device stop function as an exactly-once track.
func NewTrack(kind string, stop func()) *Track {
	return &Track{Kind: kind, stop: stop}
}

// Stop halts the track. Stopping an already-stopped track is a no-op.
func (t *Track) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	if t.stop != nil {
		t.stop()
	}
}

// Live reports whether the track has not been stopped yet.
func (t *Track) Live() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.stopped
}

// Stream is an exclusively owned set of device tracks.
type Stream struct {
	tracks []*Track
}

// NewStream bundles tracks into one releasable stream.
func NewStream(tracks ...*Track) *Stream {
	return &Stream{tracks: tracks}
}

// Tracks returns the tracks owned by the stream.
func (s *Stream) Tracks() []*Track {
	return s.tracks
}

// Release stops every track. Safe to call more than once.
func (s *Stream) Release() {
	for _, track := range s.tracks {
		track.Stop()
	}
}

// LiveTracks counts tracks that have not been stopped.
func (s *Stream) LiveTracks() int {
	live := 0
	for _, track := range s.tracks {
		if track.Live() {
			live++
		}
	}
	return live
}

// ReleaseGroup guarantees a set of release actions runs exactly once on
// every exit path of a scope. Actions run in reverse registration order.
type ReleaseGroup struct {
	mu       sync.Mutex
	released bool
	actions  []func()
}

// Defer registers a release action. If the group was already released the
// action runs immediately, so late registrations cannot leak.
func (g *ReleaseGroup) Defer(action func()) {
	if action == nil {
		return
	}
	g.mu.Lock()
	if g.released {
		g.mu.Unlock()
		action()
		return
	}
	g.actions = append(g.actions, action)
	g.mu.Unlock()
}

// Release runs all registered actions exactly once.
func (g *ReleaseGroup) Release() {
	g.mu.Lock()
	if g.released {
		g.mu.Unlock()
		return
	}
	g.released = true
	actions := g.actions
	g.actions = nil
	g.mu.Unlock()

	for i := len(actions) - 1; i >= 0; i-- {
		actions[i]()
	}
}

// Released reports whether the group has run.
func (g *ReleaseGroup) Released() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.released
}
