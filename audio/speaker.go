package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"

	"github.com/lixenwraith/polymetro/parameter"
)

// SpeakerRenderer plays through the system device via beep/speaker
// It is itself the beep.Streamer handed to the speaker, so the clock advances
// exactly with frames pulled by the device
type SpeakerRenderer struct {
	*MixerRenderer

	mu      sync.Mutex
	scratch []float64
	open    bool
}

// NewSpeakerRenderer creates an unopened renderer
func NewSpeakerRenderer(mixer *Mixer, bank *SoundBank) *SpeakerRenderer {
	return &SpeakerRenderer{MixerRenderer: NewMixerRenderer(mixer, bank)}
}

// Open initializes the speaker and starts streaming
func (r *SpeakerRenderer) Open() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.open {
		return nil
	}

	sr := beep.SampleRate(r.mixer.sampleRate)
	if err := speaker.Init(sr, sr.N(parameter.SpeakerBufferDuration)); err != nil {
		return fmt.Errorf("speaker init: %w", err)
	}
	speaker.Play(r)
	r.open = true
	return nil
}

// Resume wakes a suspended device
func (r *SpeakerRenderer) Resume(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	open := r.open
	r.mu.Unlock()
	if !open {
		return r.Open()
	}
	return speaker.Resume()
}

// Close stops streaming and releases the device
func (r *SpeakerRenderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.open {
		return
	}
	r.mixer.Close()
	speaker.Clear()
	speaker.Close()
	r.open = false
}

// Stream implements beep.Streamer
func (r *SpeakerRenderer) Stream(samples [][2]float64) (int, bool) {
	if cap(r.scratch) < len(samples) {
		r.scratch = make([]float64, len(samples))
	}
	buf := r.scratch[:len(samples)]
	r.mixer.Render(buf)
	for i, v := range buf {
		v = softLimit(v)
		samples[i][0] = v
		samples[i][1] = v
	}
	return len(samples), true
}

// Err implements beep.Streamer
func (r *SpeakerRenderer) Err() error {
	return nil
}
