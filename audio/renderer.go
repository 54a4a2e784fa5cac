package audio

import (
	"github.com/lixenwraith/polymetro/core"
)

// MixerRenderer resolves sound handles through a bank and schedules them on a mixer
// Embedded by the device renderers; usable on its own for offline rendering
type MixerRenderer struct {
	mixer *Mixer
	bank  *SoundBank
}

// NewMixerRenderer pairs a mixer with a bank
func NewMixerRenderer(mixer *Mixer, bank *SoundBank) *MixerRenderer {
	return &MixerRenderer{mixer: mixer, bank: bank}
}

// Now returns the mixer clock in seconds
func (r *MixerRenderer) Now() float64 {
	return r.mixer.Now()
}

// PlaySound schedules sound s at clock time at
func (r *MixerRenderer) PlaySound(at float64, s core.SoundHandle, pitch, volume float64) error {
	buf, err := r.bank.Get(s)
	if err != nil {
		return err
	}
	return r.mixer.Schedule(at, buf, pitch, volume)
}

// Mixer returns the underlying mixer
func (r *MixerRenderer) Mixer() *Mixer {
	return r.mixer
}

// Bank returns the sound bank
func (r *MixerRenderer) Bank() *SoundBank {
	return r.bank
}
