package audio

import (
	"os"
	"strconv"
	"strings"

	"github.com/lixenwraith/polymetro/parameter"
)

// AudioConfig selects and tunes the output backend
type AudioConfig struct {
	Enabled      bool
	Backend      string // auto, speaker, pipe, none
	MasterVolume float64
	SampleRate   int
	MaxVoices    int
	ClickSample  string // optional WAV replacing the synthesized click
}

// DefaultAudioConfig returns unity output gain at 44.1kHz with backend auto-detection
func DefaultAudioConfig() *AudioConfig {
	return &AudioConfig{
		Enabled:      true,
		Backend:      "auto",
		MasterVolume: 1.0,
		SampleRate:   parameter.AudioSampleRate,
		MaxVoices:    parameter.MaxVoices,
	}
}

// LoadAudioConfig loads audio configuration from environment variables
func LoadAudioConfig() *AudioConfig {
	cfg := DefaultAudioConfig()

	if enabled := os.Getenv("POLYMETRO_AUDIO_ENABLED"); enabled != "" {
		if val, err := strconv.ParseBool(enabled); err == nil {
			cfg.Enabled = val
		}
	}

	if backend := os.Getenv("POLYMETRO_AUDIO_BACKEND"); backend != "" {
		switch b := strings.ToLower(backend); b {
		case "auto", "speaker", "pipe", "none":
			cfg.Backend = b
		}
	}

	// Master volume is 0-100, converted to 0.0-1.0
	if volume := os.Getenv("POLYMETRO_MASTER_VOLUME"); volume != "" {
		if val, err := strconv.Atoi(volume); err == nil {
			cfg.MasterVolume = float64(val) / 100.0
			if cfg.MasterVolume < 0 {
				cfg.MasterVolume = 0
			}
			if cfg.MasterVolume > 1 {
				cfg.MasterVolume = 1
			}
		}
	}

	if sampleRate := os.Getenv("POLYMETRO_SAMPLE_RATE"); sampleRate != "" {
		if val, err := strconv.Atoi(sampleRate); err == nil && val > 0 {
			cfg.SampleRate = val
		}
	}

	if voices := os.Getenv("POLYMETRO_MAX_VOICES"); voices != "" {
		if val, err := strconv.Atoi(voices); err == nil && val > 0 {
			cfg.MaxVoices = val
		}
	}

	if sample := os.Getenv("POLYMETRO_CLICK_SAMPLE"); sample != "" {
		cfg.ClickSample = sample
	}

	return cfg
}
