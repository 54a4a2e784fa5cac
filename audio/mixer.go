package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"sync/atomic"

	"github.com/viterin/vek"

	"github.com/lixenwraith/polymetro/core"
	"github.com/lixenwraith/polymetro/parameter"
	"github.com/lixenwraith/polymetro/status"
)

// voice is one scheduled playback of a buffer
type voice struct {
	buffer floatBuffer
	start  int64   // Output frame the voice begins on
	pos    float64 // Fractional read position
	step   float64 // Read increment per output frame (pitch)
	gain   float64
}

// Mixer renders scheduled voices sample-accurately against a frame clock
// Schedule may be called from any goroutine; Render is called by one output goroutine
type Mixer struct {
	sampleRate int
	maxVoices  int
	gain       status.AtomicFloat

	frames  atomic.Int64 // Frames rendered so far; the clock
	pending chan voice
	closed  atomic.Bool

	// Accessed only by the render goroutine
	waiting []voice
	active  []voice

	// Cached metric pointers
	statPlayed  *atomic.Int64
	statDropped *atomic.Int64
	statLate    *atomic.Int64
}

// NewMixer creates a mixer at sampleRate publishing stats to reg
func NewMixer(sampleRate, maxVoices int, gain float64, reg *status.Registry) *Mixer {
	if maxVoices <= 0 {
		maxVoices = parameter.MaxVoices
	}
	if reg == nil {
		reg = status.NewRegistry()
	}
	m := &Mixer{
		sampleRate:  sampleRate,
		maxVoices:   maxVoices,
		pending:     make(chan voice, parameter.PendingQueueSize),
		waiting:     make([]voice, 0, 16),
		active:      make([]voice, 0, maxVoices),
		statPlayed:  reg.Ints.Get("audio.played"),
		statDropped: reg.Ints.Get("audio.dropped"),
		statLate:    reg.Ints.Get("audio.late"),
	}
	m.gain.Set(gain)
	return m
}

// Now returns the clock in seconds: frames rendered divided by sample rate
func (m *Mixer) Now() float64 {
	return float64(m.frames.Load()) / float64(m.sampleRate)
}

// Frames returns frames rendered so far
func (m *Mixer) Frames() int64 {
	return m.frames.Load()
}

// SetGain sets output gain (0.0-1.0)
func (m *Mixer) SetGain(g float64) {
	if g < 0 {
		g = 0
	} else if g > 1 {
		g = 1
	}
	m.gain.Set(g)
}

// Close rejects further scheduling
func (m *Mixer) Close() {
	m.closed.Store(true)
}

// Schedule queues buf to start at clock time at
func (m *Mixer) Schedule(at float64, buf floatBuffer, pitch, volume float64) error {
	if m.closed.Load() {
		return core.ErrRendererClosed
	}
	if len(buf) == 0 {
		return fmt.Errorf("%w: empty buffer", ErrInvalidSample)
	}
	if pitch <= 0 || math.IsNaN(pitch) {
		return fmt.Errorf("%w: %v", core.ErrInvalidPitch, pitch)
	}

	v := voice{
		buffer: buf,
		start:  int64(math.Round(at * float64(m.sampleRate))),
		step:   pitch,
		gain:   volume,
	}
	select {
	case m.pending <- v:
		return nil
	default:
		m.statDropped.Add(1)
		return core.ErrVoiceLimit
	}
}

// Render fills out with the next len(out) mono frames and advances the clock
func (m *Mixer) Render(out []float64) {
	for i := range out {
		out[i] = 0
	}

	start := m.frames.Load()
	end := start + int64(len(out))

	m.drainPending()
	m.activate(start, end)
	m.active = m.mixActive(out, start)

	if g := m.gain.Get(); g != 1 {
		vek.MulNumber_Inplace(out, g)
	}
	m.frames.Store(end)
}

// drainPending moves queued voices into the waiting list ordered by start frame
func (m *Mixer) drainPending() {
	added := false
	for {
		select {
		case v := <-m.pending:
			m.waiting = append(m.waiting, v)
			added = true
		default:
			if added {
				sort.SliceStable(m.waiting, func(i, j int) bool {
					return m.waiting[i].start < m.waiting[j].start
				})
			}
			return
		}
	}
}

// activate starts waiting voices that begin before end
// Voices whose start frame already passed begin immediately and count as late
func (m *Mixer) activate(start, end int64) {
	n := 0
	for n < len(m.waiting) && m.waiting[n].start < end {
		v := m.waiting[n]
		n++
		if len(m.active) >= m.maxVoices {
			m.statDropped.Add(1)
			continue
		}
		if v.start < start {
			v.start = start
			m.statLate.Add(1)
		}
		m.active = append(m.active, v)
		m.statPlayed.Add(1)
	}
	if n > 0 {
		m.waiting = append(m.waiting[:0], m.waiting[n:]...)
	}
}

// mixActive mixes all active voices into buf, returns the ones still sounding
func (m *Mixer) mixActive(buf []float64, start int64) []voice {
	remaining := m.active[:0]

	for i := range m.active {
		v := m.active[i]
		j := 0
		if off := v.start - start; off > 0 {
			j = int(off)
		}
		last := len(v.buffer) - 1
		for ; j < len(buf); j++ {
			idx := int(v.pos)
			if idx > last {
				break
			}
			s := v.buffer[idx]
			if idx < last {
				frac := v.pos - float64(idx)
				s += (v.buffer[idx+1] - s) * frac
			}
			buf[j] += s * v.gain
			v.pos += v.step
		}
		if int(v.pos) <= last {
			remaining = append(remaining, v)
		}
	}

	return remaining
}

// Pending returns voices queued or waiting; only meaningful from the render goroutine or when idle
func (m *Mixer) Pending() int {
	return len(m.pending) + len(m.waiting)
}

// Stats returns played, dropped and late voice counts
func (m *Mixer) Stats() (played, dropped, late int64) {
	return m.statPlayed.Load(), m.statDropped.Load(), m.statLate.Load()
}

// floatToBytes converts float64 mono to interleaved stereo int16 LE bytes
// Applies soft limiting before hard clip
func floatToBytes(in []float64, out []byte) {
	for i, v := range in {
		v = softLimit(v)
		i16 := int16(v * 32767)
		idx := i * parameter.AudioBytesPerFrame
		binary.LittleEndian.PutUint16(out[idx:], uint16(i16))   // L
		binary.LittleEndian.PutUint16(out[idx+2:], uint16(i16)) // R
	}
}

// softLimit compresses peaks above the knee then hard clips to [-1, 1]
func softLimit(v float64) float64 {
	const (
		knee  = parameter.LimiterThreshold
		room  = parameter.LimiterHeadroom
		slope = parameter.LimiterSlope
	)
	if v > knee {
		v = knee + room*(1.0-1.0/(1.0+(v-knee)*slope))
	} else if v < -knee {
		v = -knee - room*(1.0-1.0/(1.0+(-v-knee)*slope))
	}

	if v > 1.0 {
		v = 1.0
	} else if v < -1.0 {
		v = -1.0
	}
	return v
}
