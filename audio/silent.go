package audio

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/lixenwraith/polymetro/core"
)

// SilentRenderer keeps a wall-clock time base and validates commands without output
// Used when no audio backend is available so the scheduler and display keep running
type SilentRenderer struct {
	bank   *SoundBank
	origin time.Time
	played atomic.Int64
}

// NewSilentRenderer creates a renderer whose clock starts now
func NewSilentRenderer(bank *SoundBank) *SilentRenderer {
	return &SilentRenderer{bank: bank, origin: time.Now()}
}

// Now returns seconds since construction
func (r *SilentRenderer) Now() float64 {
	return time.Since(r.origin).Seconds()
}

// PlaySound validates the handle and counts the command
func (r *SilentRenderer) PlaySound(at float64, s core.SoundHandle, pitch, volume float64) error {
	if _, err := r.bank.Get(s); err != nil {
		return err
	}
	if pitch <= 0 {
		return fmt.Errorf("%w: %v", core.ErrInvalidPitch, pitch)
	}
	r.played.Add(1)
	return nil
}

// Resume is a no-op
func (r *SilentRenderer) Resume(ctx context.Context) error {
	return ctx.Err()
}

// Played returns the number of accepted commands
func (r *SilentRenderer) Played() int64 {
	return r.played.Load()
}
