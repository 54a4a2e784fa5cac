// Package tempo holds the session tempo and the tap tempo estimator
package tempo

import (
	"fmt"
	"math"

	"github.com/lixenwraith/polymetro/core"
	"github.com/lixenwraith/polymetro/parameter"
	"github.com/lixenwraith/polymetro/status"
)

// Tempo is the single session tempo in beats per minute
// Stored as one atomic word so readers on other goroutines never see a torn value
type Tempo struct {
	bpm status.AtomicFloat
}

// New returns a Tempo set to bpm
func New(bpm float64) (*Tempo, error) {
	if err := Validate(bpm); err != nil {
		return nil, err
	}
	t := &Tempo{}
	t.bpm.Set(bpm)
	return t, nil
}

// Validate checks bpm against the supported range
func Validate(bpm float64) error {
	if math.IsNaN(bpm) || bpm < parameter.MinBPM || bpm > parameter.MaxBPM {
		return fmt.Errorf("%w: %v (want %d-%d)", core.ErrInvalidTempo, bpm, parameter.MinBPM, parameter.MaxBPM)
	}
	return nil
}

// clamp limits bpm to the supported range; NaN maps to the lower bound
func clamp(bpm float64) float64 {
	if math.IsNaN(bpm) || bpm < parameter.MinBPM {
		return parameter.MinBPM
	}
	if bpm > parameter.MaxBPM {
		return parameter.MaxBPM
	}
	return bpm
}

// BPM returns the current tempo
func (t *Tempo) BPM() float64 {
	return t.bpm.Get()
}

// Set replaces the tempo; out-of-range values are rejected and the prior value kept
func (t *Tempo) Set(bpm float64) error {
	if err := Validate(bpm); err != nil {
		return err
	}
	t.bpm.Set(bpm)
	return nil
}

// Adjust nudges the tempo by delta, clamped to range, and returns the new value
// A non-finite delta is rejected and the current tempo returned unchanged
func (t *Tempo) Adjust(delta float64) (float64, error) {
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		return t.bpm.Get(), fmt.Errorf("%w: adjust by %v", core.ErrInvalidTempo, delta)
	}
	for {
		old := t.bpm.Get()
		next := clamp(old + delta)
		if t.bpm.CompareAndSwap(old, next) {
			return next, nil
		}
	}
}
