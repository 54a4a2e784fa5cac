package rhythm

import (
	"fmt"
	"math"

	"github.com/lixenwraith/polymetro/core"
	"github.com/lixenwraith/polymetro/parameter"
)

// ReferenceConfig describes the reference pulse
type ReferenceConfig struct {
	BeatsPerCycle int
	Volume        float64
	Muted         bool
	MutedBeats    []int
}

// DefaultReferenceConfig returns a 4-beat cycle at full volume
func DefaultReferenceConfig() ReferenceConfig {
	return ReferenceConfig{
		BeatsPerCycle: parameter.DefaultBeatsPerCycle,
		Volume:        parameter.DefaultReferenceVolume,
	}
}

// Validate checks every field
func (c ReferenceConfig) Validate() error {
	if err := ValidateBeatsPerCycle(c.BeatsPerCycle); err != nil {
		return err
	}
	if err := ValidateVolume(c.Volume); err != nil {
		return err
	}
	return validateBeatIndices(c.MutedBeats, c.BeatsPerCycle)
}

// PolyrhythmConfig describes a polyrhythm track
type PolyrhythmConfig struct {
	Ratio      int
	Volume     float64
	Pitch      float64
	Muted      bool
	Solo       bool
	MutedBeats []int
}

// DefaultPolyrhythmConfig returns the config for a new polyrhythm with the given id
// Pitch comes from the palette, round-robin by id
func DefaultPolyrhythmConfig(id core.TrackID) PolyrhythmConfig {
	return PolyrhythmConfig{
		Ratio:  parameter.DefaultPolyrhythmRatio,
		Volume: parameter.DefaultPolyrhythmVolume,
		Pitch:  parameter.PitchForID(int(id)),
	}
}

// Validate checks every field
func (c PolyrhythmConfig) Validate() error {
	if err := ValidateRatio(c.Ratio); err != nil {
		return err
	}
	if err := ValidateVolume(c.Volume); err != nil {
		return err
	}
	if err := ValidatePitch(c.Pitch); err != nil {
		return err
	}
	return validateBeatIndices(c.MutedBeats, c.Ratio)
}

// ValidateRatio checks a polyrhythm ratio
func ValidateRatio(r int) error {
	if r < parameter.MinRatio || r > parameter.MaxRatio {
		return fmt.Errorf("%w: %d (want %d-%d)", core.ErrInvalidRatio, r, parameter.MinRatio, parameter.MaxRatio)
	}
	return nil
}

// ValidateBeatsPerCycle checks a reference cycle length
func ValidateBeatsPerCycle(b int) error {
	if b < parameter.MinBeatsPerCycle || b > parameter.MaxBeatsPerCycle {
		return fmt.Errorf("%w: %d (want %d-%d)", core.ErrInvalidBeatsPerCycle, b, parameter.MinBeatsPerCycle, parameter.MaxBeatsPerCycle)
	}
	return nil
}

// ValidateVolume checks a 0.0-1.0 gain
func ValidateVolume(v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("%w: %v", core.ErrInvalidVolume, v)
	}
	return nil
}

// ValidatePitch checks a playback rate multiplier
func ValidatePitch(p float64) error {
	if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
		return fmt.Errorf("%w: %v", core.ErrInvalidPitch, p)
	}
	return nil
}

func validateBeatIndices(beats []int, count int) error {
	for _, b := range beats {
		if b < 0 || b >= count {
			return fmt.Errorf("%w: muted beat %d of %d", core.ErrBeatOutOfRange, b, count)
		}
	}
	return nil
}
