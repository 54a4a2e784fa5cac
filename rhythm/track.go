package rhythm

import (
	"github.com/lixenwraith/polymetro/core"
	"github.com/lixenwraith/polymetro/parameter"
)

// ReferenceTrack is the base pulse every polyrhythm locks to
type ReferenceTrack struct {
	PhaseTrack

	// CycleStartTime anchors the next reference downbeat
	CycleStartTime float64
	Muted          bool
	Volume         float64
}

// NewReferenceTrack builds a reference track from a validated config
func NewReferenceTrack(cfg ReferenceConfig) (*ReferenceTrack, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &ReferenceTrack{
		PhaseTrack: newPhaseTrack(cfg.BeatsPerCycle),
		Muted:      cfg.Muted,
		Volume:     cfg.Volume,
	}
	if err := r.applyMutedBeats(cfg.MutedBeats); err != nil {
		return nil, err
	}
	return r, nil
}

// BeatDuration returns seconds per reference beat at bpm
func (r *ReferenceTrack) BeatDuration(bpm float64) float64 {
	return 60.0 / bpm
}

// CycleDuration returns seconds per reference cycle at bpm
func (r *ReferenceTrack) CycleDuration(bpm float64) float64 {
	return float64(r.beatCount) * 60.0 / bpm
}

// SetBeatsPerCycle changes the cycle length
func (r *ReferenceTrack) SetBeatsPerCycle(b int) error {
	if err := ValidateBeatsPerCycle(b); err != nil {
		return err
	}
	r.resize(b)
	return nil
}

// Audible reports whether the reference sounds at all
// The reference track sits outside the solo group
func (r *ReferenceTrack) Audible() bool {
	return !r.Muted
}

// Config returns the track's current configuration
func (r *ReferenceTrack) Config() ReferenceConfig {
	return ReferenceConfig{
		BeatsPerCycle: r.beatCount,
		Volume:        r.Volume,
		Muted:         r.Muted,
		MutedBeats:    r.MutedBeats(),
	}
}

// Polyrhythm divides the reference cycle into Ratio equal beats
type Polyrhythm struct {
	PhaseTrack

	ID     core.TrackID
	Muted  bool
	Solo   bool
	Volume float64
	Pitch  float64
}

// NewPolyrhythm builds a polyrhythm from a validated config
func NewPolyrhythm(id core.TrackID, cfg PolyrhythmConfig) (*Polyrhythm, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Polyrhythm{
		PhaseTrack: newPhaseTrack(cfg.Ratio),
		ID:         id,
		Muted:      cfg.Muted,
		Solo:       cfg.Solo,
		Volume:     cfg.Volume,
		Pitch:      cfg.Pitch,
	}
	if err := p.applyMutedBeats(cfg.MutedBeats); err != nil {
		return nil, err
	}
	return p, nil
}

// Ratio returns beats per reference cycle
func (p *Polyrhythm) Ratio() int { return p.beatCount }

// BeatDuration returns seconds per polyrhythm beat: one reference cycle split Ratio ways
func (p *Polyrhythm) BeatDuration(bpm float64, beatsPerCycle int) float64 {
	return float64(beatsPerCycle) * 60.0 / bpm / float64(p.beatCount)
}

// SetRatio changes the division, preserving per-beat mute flags up to the shorter length
// The caller re-anchors the phase
func (p *Polyrhythm) SetRatio(r int) error {
	if err := ValidateRatio(r); err != nil {
		return err
	}
	p.resize(r)
	return nil
}

// Audible applies track mute and solo-group membership
func (p *Polyrhythm) Audible(anySolo bool) bool {
	if p.Muted {
		return false
	}
	if anySolo {
		return p.Solo
	}
	return true
}

// Config returns the track's current configuration
func (p *Polyrhythm) Config() PolyrhythmConfig {
	return PolyrhythmConfig{
		Ratio:      p.beatCount,
		Volume:     p.Volume,
		Pitch:      p.Pitch,
		Muted:      p.Muted,
		Solo:       p.Solo,
		MutedBeats: p.MutedBeats(),
	}
}

// AnySolo reports whether any polyrhythm is soloed
func AnySolo(polys []*Polyrhythm) bool {
	for _, p := range polys {
		if p.Solo {
			return true
		}
	}
	return false
}

// Emphasis returns the pitch and volume of beat on a track with the given base values
// Downbeats play raised at full track volume, other beats at base pitch attenuated
func Emphasis(beat int, pitch, volume float64) (float64, float64) {
	if beat == 0 {
		return pitch * parameter.DownbeatPitchFactor, volume
	}
	return pitch, volume * parameter.OffbeatVolumeFactor
}
