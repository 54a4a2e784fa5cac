package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lixenwraith/polymetro/core"
)

// OfflineRenderer is a Renderer with a manually advanced clock that records
// every command instead of producing sound
// Used for tests and for rendering sessions to files
type OfflineRenderer struct {
	mu      sync.Mutex
	now     float64
	played  []core.Command
	sounds  map[core.SoundHandle]bool
	fail    func(core.Command) error
	resumes int
}

// NewOfflineRenderer creates a renderer at clock time 0 that accepts any sound handle
func NewOfflineRenderer() *OfflineRenderer {
	return &OfflineRenderer{}
}

// Now returns the manual clock
func (r *OfflineRenderer) Now() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.now
}

// Set moves the clock to t
func (r *OfflineRenderer) Set(t float64) {
	r.mu.Lock()
	r.now = t
	r.mu.Unlock()
}

// Advance moves the clock forward by d seconds
func (r *OfflineRenderer) Advance(d float64) {
	r.mu.Lock()
	r.now += d
	r.mu.Unlock()
}

// Resume counts wake-ups
func (r *OfflineRenderer) Resume(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	r.resumes++
	r.mu.Unlock()
	return nil
}

// Resumes returns how many times Resume was called
func (r *OfflineRenderer) Resumes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resumes
}

// Register restricts accepted handles; once any handle is registered,
// unregistered ones fail with core.ErrUnknownSound
func (r *OfflineRenderer) Register(h core.SoundHandle) {
	r.mu.Lock()
	if r.sounds == nil {
		r.sounds = make(map[core.SoundHandle]bool)
	}
	r.sounds[h] = true
	r.mu.Unlock()
}

// FailWith installs a hook that can reject individual commands
func (r *OfflineRenderer) FailWith(fn func(core.Command) error) {
	r.mu.Lock()
	r.fail = fn
	r.mu.Unlock()
}

// PlaySound records a command without track information
func (r *OfflineRenderer) PlaySound(at float64, s core.SoundHandle, pitch, volume float64) error {
	return r.PlayCommand(core.Command{Time: at, Pitch: pitch, Volume: volume}, s)
}

// PlayCommand records c
func (r *OfflineRenderer) PlayCommand(c core.Command, s core.SoundHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sounds != nil && !r.sounds[s] {
		return fmt.Errorf("%w: %d", core.ErrUnknownSound, s)
	}
	if r.fail != nil {
		if err := r.fail(c); err != nil {
			return err
		}
	}
	r.played = append(r.played, c)
	return nil
}

// Played returns a copy of every recorded command in dispatch order
func (r *OfflineRenderer) Played() []core.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Command(nil), r.played...)
}

// PlayedFor returns the recorded commands of one track
func (r *OfflineRenderer) PlayedFor(id core.TrackID) []core.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []core.Command
	for _, c := range r.played {
		if c.Track == id {
			out = append(out, c)
		}
	}
	return out
}

// Clear discards recorded commands
func (r *OfflineRenderer) Clear() {
	r.mu.Lock()
	r.played = nil
	r.mu.Unlock()
}

// Drive advances r by d in step increments, firing t after each step
// Returns the number of steps taken
func Drive(r *OfflineRenderer, t *ManualTicker, d, step time.Duration) int {
	if step <= 0 {
		return 0
	}
	steps := int(d / step)
	start := r.Now()
	for i := 1; i <= steps; i++ {
		r.Set(start + (time.Duration(i) * step).Seconds())
		t.Fire()
	}
	return steps
}
