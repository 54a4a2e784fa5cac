package core

import "errors"

// Configuration errors, returned synchronously with prior state retained
var (
	ErrInvalidTempo         = errors.New("tempo out of range")
	ErrInvalidRatio         = errors.New("polyrhythm ratio out of range")
	ErrInvalidBeatsPerCycle = errors.New("beats per cycle out of range")
	ErrInvalidVolume        = errors.New("volume out of range")
	ErrInvalidPitch         = errors.New("pitch must be positive")
	ErrBeatOutOfRange       = errors.New("beat index out of range")
	ErrSoloReference        = errors.New("reference track cannot be soloed")
)

// Stale state errors
var (
	ErrUnknownTrack = errors.New("unknown track")
)

// Renderer errors
var (
	ErrUnknownSound   = errors.New("unknown sound handle")
	ErrVoiceLimit     = errors.New("voice limit reached")
	ErrRendererClosed = errors.New("renderer closed")
)
