package audio

import (
	"errors"
)

// BackendType identifies the audio backend
type BackendType int

const (
	BackendNone BackendType = iota
	BackendSpeaker
	BackendPulse
	BackendPipeWire
	BackendALSA
	BackendSoX
	BackendFFplay
	BackendOSS
)

func (b BackendType) String() string {
	switch b {
	case BackendSpeaker:
		return "speaker"
	case BackendPulse:
		return "pacat"
	case BackendPipeWire:
		return "pw-cat"
	case BackendALSA:
		return "aplay"
	case BackendSoX:
		return "sox"
	case BackendFFplay:
		return "ffplay"
	case BackendOSS:
		return "oss"
	default:
		return "none"
	}
}

// BackendConfig describes a CLI audio backend
type BackendConfig struct {
	Type BackendType
	Name string
	Path string
	Args []string
}

// Sentinel errors
var (
	ErrNoAudioBackend = errors.New("no compatible audio backend found")
	ErrPipeClosed     = errors.New("audio pipe closed")
	ErrInvalidSample  = errors.New("invalid sample data")
)
