// Package engine schedules polyrhythmic click playback ahead of an audio clock
package engine

import (
	"context"

	"github.com/lixenwraith/polymetro/core"
)

// Renderer is the audio output the scheduler drives
// Now is the only authoritative time base: monotonic seconds on the output clock
type Renderer interface {
	Now() float64

	// PlaySound schedules sound s to start at clock time at
	// pitch scales playback rate, volume is linear gain
	PlaySound(at float64, s core.SoundHandle, pitch, volume float64) error

	// Resume wakes a suspended output; no-op when already running
	Resume(ctx context.Context) error
}

// CommandRenderer is implemented by renderers that want the full command,
// including track and beat, instead of the bare PlaySound arguments
type CommandRenderer interface {
	Renderer
	PlayCommand(c core.Command, s core.SoundHandle) error
}

// TickSource delivers periodic wake-ups independent of caller load
// The callback never runs concurrently with itself
type TickSource interface {
	OnSignal(fn func())
	Start()
	Stop()
}

// BeatObserver is notified for each beat that enters the look-ahead window
// Called outside the session lock; must not call Session.Stop from a ticker goroutine
type BeatObserver func(id core.TrackID, beat int)
