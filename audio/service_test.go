package audio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/lixenwraith/polymetro/core"
	"github.com/lixenwraith/polymetro/status"
)

func TestDetectBackendPriority(t *testing.T) {
	installed := func(names ...string) func(string) (string, error) {
		return func(name string) (string, error) {
			for _, n := range names {
				if n == name {
					return "/usr/bin/" + name, nil
				}
			}
			return "", errors.New("not found")
		}
	}

	tests := []struct {
		name      string
		installed []string
		want      BackendType
	}{
		{"pulse first", []string{"aplay", "pacat", "play"}, BackendPulse},
		{"pipewire over alsa", []string{"aplay", "pw-cat"}, BackendPipeWire},
		{"alsa", []string{"aplay", "ffplay"}, BackendALSA},
		{"sox", []string{"play"}, BackendSoX},
		{"ffplay", []string{"ffplay"}, BackendFFplay},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := detectBackend(48000, installed(tt.installed...))
			if err != nil {
				t.Fatalf("detectBackend: %v", err)
			}
			if cfg.Type != tt.want {
				t.Errorf("Type = %s, want %s", cfg.Type, tt.want)
			}
			if !strings.Contains(strings.Join(cfg.Args, " "), "48000") {
				t.Errorf("args %v missing sample rate", cfg.Args)
			}
		})
	}
}

func TestDetectBackendNone(t *testing.T) {
	if runtime.GOOS == "freebsd" {
		t.Skip("OSS fallback depends on /dev/dsp")
	}
	_, err := detectBackend(44100, func(string) (string, error) { return "", errors.New("not found") })
	if !errors.Is(err, ErrNoAudioBackend) {
		t.Errorf("err = %v, want ErrNoAudioBackend", err)
	}
}

func TestAudioServiceSilentBackend(t *testing.T) {
	reg := status.NewRegistry()
	cfg := DefaultAudioConfig()
	cfg.Backend = "none"

	svc := NewService()
	if svc.Name() != "audio" {
		t.Errorf("Name = %q", svc.Name())
	}
	if deps := svc.Dependencies(); len(deps) != 1 || deps[0] != "status" {
		t.Errorf("Dependencies = %v", deps)
	}

	if err := svc.Init(cfg, reg); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := svc.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer svc.Stop()

	if !svc.IsSilent() {
		t.Error("expected silent backend")
	}
	if got := reg.Strings.Get("audio.backend").Load(); got != "none" {
		t.Errorf("audio.backend = %q, want none", got)
	}

	r := svc.Renderer()
	if r == nil {
		t.Fatal("Renderer is nil")
	}
	if err := r.Resume(context.Background()); err != nil {
		t.Errorf("Resume: %v", err)
	}
	if err := r.PlaySound(r.Now(), svc.Click(), 1.0, 1.0); err != nil {
		t.Errorf("PlaySound click: %v", err)
	}
	if err := r.PlaySound(r.Now(), 77, 1.0, 1.0); !errors.Is(err, core.ErrUnknownSound) {
		t.Errorf("unknown sound err = %v", err)
	}
}

func TestAudioServiceDisabledIsSilent(t *testing.T) {
	cfg := DefaultAudioConfig()
	cfg.Enabled = false
	cfg.Backend = "speaker"

	svc := NewService()
	if err := svc.Init(cfg); err != nil {
		t.Fatal(err)
	}
	svc.Start()
	defer svc.Stop()

	if svc.Backend() != BackendNone {
		t.Errorf("Backend = %s, want none", svc.Backend())
	}
}

func TestAudioServiceClickSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wood.wav")
	os.WriteFile(path, pcm16WAV(44100, []int16{1000, 2000, 1000}), 0644)

	cfg := DefaultAudioConfig()
	cfg.Backend = "none"
	cfg.ClickSample = path

	svc := NewService()
	if err := svc.Init(cfg); err != nil {
		t.Fatalf("Init: %v", err)
	}
	buf, err := svc.Bank().Get(svc.Click())
	if err != nil {
		t.Fatal(err)
	}
	if len(buf) != 3 {
		t.Errorf("click length = %d, want loaded sample", len(buf))
	}

	cfg.ClickSample = filepath.Join(t.TempDir(), "missing.wav")
	if err := NewService().Init(cfg); err == nil {
		t.Error("expected error for missing click sample")
	}
}

func TestAudioServiceStartBeforeInit(t *testing.T) {
	if err := NewService().Start(); err == nil {
		t.Error("expected error starting uninitialized service")
	}
}
