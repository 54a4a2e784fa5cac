// Package rhythm models the per-track beat phase of a polyrhythmic metronome
package rhythm

import (
	"fmt"
	"math"

	"github.com/lixenwraith/polymetro/core"
)

// PhaseTrack tracks beat position within a cycle and the time of the next beat
// Index advances exactly one step per scheduled beat regardless of mute state
type PhaseTrack struct {
	beatCount    int
	currentBeat  int
	nextBeatTime float64
	mutedBeats   []bool

	// anchor is when the current phase was established; earlier beats belong to a previous phase
	anchor float64
}

func newPhaseTrack(beats int) PhaseTrack {
	return PhaseTrack{
		beatCount:  beats,
		mutedBeats: make([]bool, beats),
	}
}

// BeatCount returns the number of beats per cycle
func (p *PhaseTrack) BeatCount() int { return p.beatCount }

// CurrentBeat returns the index of the next beat to schedule
func (p *PhaseTrack) CurrentBeat() int { return p.currentBeat }

// NextBeatTime returns the clock time of the next beat to schedule
func (p *PhaseTrack) NextBeatTime() float64 { return p.nextBeatTime }

// Advance steps to the following beat, d seconds later
// Returns true when the index wrapped to the downbeat
func (p *PhaseTrack) Advance(d float64) bool {
	p.currentBeat++
	if p.currentBeat >= p.beatCount {
		p.currentBeat = 0
	}
	p.nextBeatTime += d
	return p.currentBeat == 0
}

// Reset returns the track to its downbeat, scheduled at t
func (p *PhaseTrack) Reset(t float64) {
	p.currentBeat = 0
	p.nextBeatTime = t
	p.anchor = t
}

// Rebase moves the next beat to t keeping the beat index
func (p *PhaseTrack) Rebase(t float64) {
	p.nextBeatTime = t
	p.anchor = t
}

// BeatAt returns the index of the beat sounding at now with beats d apart, or -1
// when no beat of the current phase has started yet
func (p *PhaseTrack) BeatAt(now, d float64) int {
	if d <= 0 || now < p.anchor {
		return -1
	}
	back := int(math.Ceil((p.nextBeatTime - now) / d))
	if back < 0 {
		back = 0
	}
	if p.nextBeatTime-float64(back)*d < p.anchor-d*1e-9 {
		return -1
	}
	idx := (p.currentBeat - back) % p.beatCount
	if idx < 0 {
		idx += p.beatCount
	}
	return idx
}

// BeatsUntilDownbeat counts beats from the next scheduled one up to the next
// downbeat; zero when the next beat is itself the downbeat
func (p *PhaseTrack) BeatsUntilDownbeat() int {
	return (p.beatCount - p.currentBeat) % p.beatCount
}

// NextDownbeatTime returns the time of the next unscheduled downbeat with beats d apart
func (p *PhaseTrack) NextDownbeatTime(d float64) float64 {
	return p.nextBeatTime + float64(p.BeatsUntilDownbeat())*d
}

// BeatMuted reports whether beat i is individually muted
func (p *PhaseTrack) BeatMuted(i int) bool {
	if i < 0 || i >= len(p.mutedBeats) {
		return false
	}
	return p.mutedBeats[i]
}

// ToggleBeatMute flips the mute flag of beat i and returns the new state
func (p *PhaseTrack) ToggleBeatMute(i int) (bool, error) {
	if i < 0 || i >= p.beatCount {
		return false, fmt.Errorf("%w: %d of %d", core.ErrBeatOutOfRange, i, p.beatCount)
	}
	p.mutedBeats[i] = !p.mutedBeats[i]
	return p.mutedBeats[i], nil
}

// SetBeatMuted sets the mute flag of beat i
func (p *PhaseTrack) SetBeatMuted(i int, muted bool) error {
	if i < 0 || i >= p.beatCount {
		return fmt.Errorf("%w: %d of %d", core.ErrBeatOutOfRange, i, p.beatCount)
	}
	p.mutedBeats[i] = muted
	return nil
}

// MutedBeats returns the indices of muted beats in ascending order
func (p *PhaseTrack) MutedBeats() []int {
	var out []int
	for i, m := range p.mutedBeats {
		if m {
			out = append(out, i)
		}
	}
	return out
}

// MuteMask returns a copy of the per-beat mute flags
func (p *PhaseTrack) MuteMask() []bool {
	return append([]bool(nil), p.mutedBeats...)
}

// resize changes the beat count, keeping mute flags that still fit
// The index is kept when still in range, otherwise it returns to the downbeat
func (p *PhaseTrack) resize(beats int) {
	mask := make([]bool, beats)
	copy(mask, p.mutedBeats)
	p.mutedBeats = mask
	p.beatCount = beats
	if p.currentBeat >= beats {
		p.currentBeat = 0
	}
}

func (p *PhaseTrack) applyMutedBeats(beats []int) error {
	for _, b := range beats {
		if err := p.SetBeatMuted(b, true); err != nil {
			return err
		}
	}
	return nil
}
