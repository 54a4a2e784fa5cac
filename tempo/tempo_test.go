package tempo

import (
	"errors"
	"math"
	"testing"

	"github.com/lixenwraith/polymetro/core"
)

func TestNewTempoValidation(t *testing.T) {
	tests := []struct {
		bpm     float64
		wantErr bool
	}{
		{120, false},
		{10, false},
		{400, false},
		{9.99, true},
		{400.5, true},
		{0, true},
		{-60, true},
		{math.NaN(), true},
	}
	for _, tt := range tests {
		_, err := New(tt.bpm)
		if (err != nil) != tt.wantErr {
			t.Errorf("New(%v) error = %v, wantErr %v", tt.bpm, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, core.ErrInvalidTempo) {
			t.Errorf("New(%v) error should wrap ErrInvalidTempo, got %v", tt.bpm, err)
		}
	}
}

func TestSetKeepsPriorValueOnError(t *testing.T) {
	tp, _ := New(120)
	if err := tp.Set(1000); err == nil {
		t.Fatal("expected error for 1000 BPM")
	}
	if tp.BPM() != 120 {
		t.Errorf("expected tempo to stay at 120, got %v", tp.BPM())
	}
	if err := tp.Set(math.Inf(1)); err == nil {
		t.Fatal("expected error for +Inf")
	}
	if err := tp.Set(90); err != nil {
		t.Fatal(err)
	}
	if tp.BPM() != 90 {
		t.Errorf("BPM = %v, want 90", tp.BPM())
	}
}

func TestAdjustClamps(t *testing.T) {
	tp, _ := New(395)
	if got, err := tp.Adjust(10); err != nil || got != 400 {
		t.Errorf("Adjust(+10) from 395 = %v, %v; want 400", got, err)
	}
	tp.Set(12)
	if got, err := tp.Adjust(-10); err != nil || got != 10 {
		t.Errorf("Adjust(-10) from 12 = %v, %v; want 10", got, err)
	}
}

func TestAdjustRejectsNonFinite(t *testing.T) {
	tests := []struct {
		name  string
		delta float64
	}{
		{"nan", math.NaN()},
		{"+inf", math.Inf(1)},
		{"-inf", math.Inf(-1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp, _ := New(120)
			got, err := tp.Adjust(tt.delta)
			if !errors.Is(err, core.ErrInvalidTempo) {
				t.Errorf("Adjust(%v) error = %v, want ErrInvalidTempo", tt.delta, err)
			}
			if got != 120 || tp.BPM() != 120 {
				t.Errorf("Adjust(%v) = %v, BPM %v; want 120 kept", tt.delta, got, tp.BPM())
			}
		})
	}
}

func TestClampNaN(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{math.NaN(), 10},
		{5, 10},
		{120, 120},
		{math.Inf(1), 400},
	}
	for _, tt := range tests {
		if got := clamp(tt.in); got != tt.want {
			t.Errorf("clamp(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
