package parameter

import "time"

// Tempo bounds
const (
	MinBPM     = 10
	MaxBPM     = 400
	DefaultBPM = 120

	// TempoNudge is the step applied by relative tempo adjustments
	TempoNudge = 1
	// TempoNudgeCoarse is the step applied by coarse adjustments
	TempoNudgeCoarse = 10
)

// Scheduler timing
const (
	// DefaultTickInterval is how often the tick source wakes the scheduler
	DefaultTickInterval = 25 * time.Millisecond

	// DefaultLookAhead is the window ahead of the audio clock that gets scheduled
	// Must exceed the tick interval by enough to absorb timer jitter
	DefaultLookAhead = 100 * time.Millisecond

	// ResyncLead is the gap between a tempo change and the first beat at the new tempo
	ResyncLead = 100 * time.Millisecond
)

// Tap tempo
const (
	TapBufferCap = 4
	TapTimeout   = 2 * time.Second
	MinTaps      = 2
)
