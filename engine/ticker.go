package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/lixenwraith/polymetro/core"
)

// IntervalTicker is a TickSource backed by a deadline-corrected timer goroutine
// Restartable: each Start launches a fresh loop with its own stop and done channels
type IntervalTicker struct {
	interval time.Duration

	mu       sync.Mutex
	fn       func()
	running  bool
	stopChan chan struct{}
	doneChan chan struct{}

	tickCount atomic.Uint64
}

// NewIntervalTicker creates a stopped ticker firing every interval
func NewIntervalTicker(interval time.Duration) *IntervalTicker {
	return &IntervalTicker{interval: interval}
}

// OnSignal sets the callback
func (t *IntervalTicker) OnSignal(fn func()) {
	t.mu.Lock()
	t.fn = fn
	t.mu.Unlock()
}

// Start launches the loop if not already running
func (t *IntervalTicker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	t.running = true
	t.stopChan = stop
	t.doneChan = done

	core.Go(func() { t.loop(stop, done) })
}

// Stop halts the loop and waits for an in-flight callback to return
// Must not be called from inside the callback
func (t *IntervalTicker) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	close(t.stopChan)
	done := t.doneChan
	t.mu.Unlock()

	<-done
}

// Running reports whether a loop is active
func (t *IntervalTicker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Ticks returns the number of callbacks fired since construction
func (t *IntervalTicker) Ticks() uint64 {
	return t.tickCount.Load()
}

func (t *IntervalTicker) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	deadline := time.Now().Add(t.interval)
	timer := time.NewTimer(t.interval)
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-timer.C:
		}

		t.mu.Lock()
		fn := t.fn
		t.mu.Unlock()
		if fn != nil {
			fn()
		}
		t.tickCount.Add(1)

		now := time.Now()
		deadline = deadline.Add(t.interval)
		// Resync the deadline after a long stall instead of bursting to catch up
		if now.Sub(deadline) > t.interval*2 {
			deadline = now.Add(t.interval)
		}
		sleep := deadline.Sub(now)
		if sleep < 0 {
			sleep = 0
		}
		timer.Reset(sleep)
	}
}

// ManualTicker is a TickSource driven synchronously by Fire
type ManualTicker struct {
	mu      sync.Mutex
	fn      func()
	running bool
	starts  int
	stops   int
}

// NewManualTicker creates a stopped manual ticker
func NewManualTicker() *ManualTicker {
	return &ManualTicker{}
}

// OnSignal sets the callback
func (m *ManualTicker) OnSignal(fn func()) {
	m.mu.Lock()
	m.fn = fn
	m.mu.Unlock()
}

// Start marks the ticker running
func (m *ManualTicker) Start() {
	m.mu.Lock()
	if !m.running {
		m.running = true
		m.starts++
	}
	m.mu.Unlock()
}

// Stop marks the ticker stopped
func (m *ManualTicker) Stop() {
	m.mu.Lock()
	if m.running {
		m.running = false
		m.stops++
	}
	m.mu.Unlock()
}

// Running reports whether Start was called without a matching Stop
func (m *ManualTicker) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Counts returns how many effective Start and Stop calls were made
func (m *ManualTicker) Counts() (starts, stops int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts, m.stops
}

// Fire invokes the callback once if running; returns whether it fired
func (m *ManualTicker) Fire() bool {
	m.mu.Lock()
	fn, running := m.fn, m.running
	m.mu.Unlock()
	if !running || fn == nil {
		return false
	}
	fn()
	return true
}
