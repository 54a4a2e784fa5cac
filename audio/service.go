package audio

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/lixenwraith/polymetro/core"
	"github.com/lixenwraith/polymetro/status"
)

// Output is a renderer the service can hand to the scheduler and later release
type Output interface {
	Now() float64
	PlaySound(at float64, s core.SoundHandle, pitch, volume float64) error
	Resume(ctx context.Context) error
}

// AudioService owns the sound bank, the mixer and the selected output backend
// Handles graceful degradation: speaker, then pipe, then a silent wall-clock renderer
type AudioService struct {
	config   *AudioConfig
	registry *status.Registry

	bank    *SoundBank
	mixer   *Mixer
	output  Output
	backend BackendType
	click   core.SoundHandle

	speaker *SpeakerRenderer
	pipe    *PipeRenderer

	silent atomic.Bool
}

// NewService creates a new audio service
func NewService() *AudioService {
	return &AudioService{}
}

// Name implements Service
func (s *AudioService) Name() string {
	return "audio"
}

// Dependencies implements Service
func (s *AudioService) Dependencies() []string {
	return []string{"status"}
}

// Init implements Service
// args: *AudioConfig and *status.Registry in any order; both optional
// Builds the bank and loads the click; a bad click sample is an error
func (s *AudioService) Init(args ...any) error {
	s.config = DefaultAudioConfig()
	for _, a := range args {
		switch v := a.(type) {
		case *AudioConfig:
			if v != nil {
				s.config = v
			}
		case *status.Registry:
			s.registry = v
		}
	}
	if s.registry == nil {
		s.registry = status.NewRegistry()
	}

	s.bank = NewSoundBank(s.config.SampleRate)
	if s.config.ClickSample != "" {
		samples, err := LoadWAV(s.config.ClickSample, s.config.SampleRate)
		if err != nil {
			return fmt.Errorf("click sample: %w", err)
		}
		h, err := s.bank.Add(samples)
		if err != nil {
			return fmt.Errorf("click sample: %w", err)
		}
		s.click = h
	} else {
		s.click = s.bank.Click()
	}

	s.mixer = NewMixer(s.config.SampleRate, s.config.MaxVoices, s.config.MasterVolume, s.registry)
	return nil
}

// Start implements Service
// Selects a backend; never fails, falling back to silent output
func (s *AudioService) Start() error {
	if s.bank == nil {
		return fmt.Errorf("audio service not initialized")
	}

	backend := s.config.Backend
	if !s.config.Enabled {
		backend = "none"
	}

	switch backend {
	case "auto":
		if !s.openSpeaker() && !s.openPipe() {
			s.openSilent()
		}
	case "speaker":
		if !s.openSpeaker() {
			s.openSilent()
		}
	case "pipe":
		if !s.openPipe() {
			s.openSilent()
		}
	default:
		s.openSilent()
	}

	s.registry.Strings.Get("audio.backend").Store(s.backend.String())
	log.Printf("audio: backend %s at %d Hz", s.backend, s.config.SampleRate)
	return nil
}

func (s *AudioService) openSpeaker() bool {
	r := NewSpeakerRenderer(s.mixer, s.bank)
	if err := r.Open(); err != nil {
		log.Printf("audio: speaker unavailable: %v", err)
		return false
	}
	s.speaker = r
	s.output = r
	s.backend = BackendSpeaker
	return true
}

func (s *AudioService) openPipe() bool {
	cfg, err := DetectBackend(s.config.SampleRate)
	if err != nil {
		log.Printf("audio: %v", err)
		return false
	}
	r := NewPipeRenderer(s.mixer, s.bank, cfg)
	if err := r.Open(); err != nil {
		log.Printf("audio: %s unavailable: %v", cfg.Name, err)
		return false
	}
	s.pipe = r
	s.output = r
	s.backend = cfg.Type
	return true
}

func (s *AudioService) openSilent() {
	s.output = NewSilentRenderer(s.bank)
	s.backend = BackendNone
	s.silent.Store(true)
}

// Stop implements Service
func (s *AudioService) Stop() error {
	if s.speaker != nil {
		s.speaker.Close()
		s.speaker = nil
	}
	if s.pipe != nil {
		s.pipe.Close()
		s.pipe = nil
	}
	return nil
}

// Renderer returns the active output (nil before Start)
func (s *AudioService) Renderer() Output {
	return s.output
}

// Bank returns the sound bank
func (s *AudioService) Bank() *SoundBank {
	return s.bank
}

// Click returns the handle of the metronome click
func (s *AudioService) Click() core.SoundHandle {
	return s.click
}

// Backend returns the selected backend
func (s *AudioService) Backend() BackendType {
	return s.backend
}

// IsSilent returns true if no audible backend could be opened
func (s *AudioService) IsSilent() bool {
	return s.silent.Load()
}
