package tempo

import (
	"math"
	"sync"
	"time"

	"github.com/lixenwraith/polymetro/core"
	"github.com/lixenwraith/polymetro/parameter"
)

// TapEstimator converts a burst of taps into a tempo estimate
// Holds at most parameter.TapBufferCap timestamps; a gap longer than the
// timeout returns it to the unseeded state
type TapEstimator struct {
	mu      sync.Mutex
	clock   core.Clock
	timeout time.Duration
	taps    []time.Time
}

// NewTapEstimator creates an estimator reading time from clock
func NewTapEstimator(clock core.Clock) *TapEstimator {
	return &TapEstimator{
		clock:   clock,
		timeout: parameter.TapTimeout,
		taps:    make([]time.Time, 0, parameter.TapBufferCap+1),
	}
}

// Tap records a tap at the current time
// Returns the estimated tempo and true once two or more taps are buffered and
// the estimate is inside the supported range
func (e *TapEstimator) Tap() (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	e.expire(now)

	e.taps = append(e.taps, now)
	if len(e.taps) > parameter.TapBufferCap {
		copy(e.taps, e.taps[1:])
		e.taps = e.taps[:parameter.TapBufferCap]
	}

	if len(e.taps) < parameter.MinTaps {
		return 0, false
	}

	// Mean of consecutive deltas telescopes to span / (n-1)
	span := e.taps[len(e.taps)-1].Sub(e.taps[0])
	meanMs := float64(span) / float64(time.Millisecond) / float64(len(e.taps)-1)
	if meanMs <= 0 {
		return 0, false
	}

	bpm := math.Round(60000.0 / meanMs)
	if Validate(bpm) != nil {
		return 0, false
	}
	return bpm, true
}

// Count returns the number of live taps
func (e *TapEstimator) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.expire(e.clock.Now())
	return len(e.taps)
}

// Reset discards all taps
func (e *TapEstimator) Reset() {
	e.mu.Lock()
	e.taps = e.taps[:0]
	e.mu.Unlock()
}

// expire clears the buffer when the last tap is older than the timeout
func (e *TapEstimator) expire(now time.Time) {
	if n := len(e.taps); n > 0 && now.Sub(e.taps[n-1]) > e.timeout {
		e.taps = e.taps[:0]
	}
}
