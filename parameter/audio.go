package parameter

import "time"

// Audio Hardware Settings
const (
	AudioSampleRate    = 44100
	AudioChannels      = 2
	AudioBitDepth      = 16
	AudioBytesPerFrame = AudioChannels * (AudioBitDepth / 8) // 4 bytes
)

// Audio Engine Timing
const (
	// AudioBufferDuration determines pipe backend latency and mixer tick rate
	AudioBufferDuration = 10 * time.Millisecond

	// AudioBufferSamples is frames per pipe mixer tick at 44.1kHz
	AudioBufferSamples = (AudioSampleRate * 10) / 1000 // 441

	// SpeakerBufferDuration is the device buffer handed to speaker.Init
	SpeakerBufferDuration = 20 * time.Millisecond

	// MaxVoices bounds simultaneously sounding clicks
	MaxVoices = 64

	// PendingQueueSize bounds voices waiting for their start frame
	PendingQueueSize = 256
)

// Click Sound (woodblock)
const (
	ClickSoundDuration = 60 * time.Millisecond
	ClickSoundAttack   = 1 * time.Millisecond
	ClickSoundRelease  = 55 * time.Millisecond
	ClickFundamental   = 1000.0 // Hz
	ClickOvertone      = 2750.0 // Hz
	ClickOvertoneMix   = 0.35
	ClickNoiseMix      = 0.15
	ClickNoiseDuration = 4 * time.Millisecond
	ClickPeak          = 0.9
)

// Soft limiter knee for float to int16 conversion
const (
	LimiterThreshold = 0.8
	LimiterHeadroom  = 0.2
	LimiterSlope     = 5.0
)
