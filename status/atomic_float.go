package status

import (
	"math"
	"sync/atomic"
)

// AtomicFloat stores a float64 as its IEEE-754 bits
// Zero value is ready to use (represents 0.0)
type AtomicFloat struct {
	bits atomic.Uint64
}

// Set stores val
func (f *AtomicFloat) Set(val float64) {
	f.bits.Store(math.Float64bits(val))
}

// Get loads the current value
func (f *AtomicFloat) Get() float64 {
	return math.Float64frombits(f.bits.Load())
}

// Add atomically adds delta and returns the new value
func (f *AtomicFloat) Add(delta float64) float64 {
	for {
		old := f.bits.Load()
		newVal := math.Float64frombits(old) + delta
		if f.bits.CompareAndSwap(old, math.Float64bits(newVal)) {
			return newVal
		}
	}
}

// Swap stores val and returns the previous value
func (f *AtomicFloat) Swap(val float64) float64 {
	return math.Float64frombits(f.bits.Swap(math.Float64bits(val)))
}

// CompareAndSwap stores val if the current value is old
func (f *AtomicFloat) CompareAndSwap(old, val float64) bool {
	return f.bits.CompareAndSwap(math.Float64bits(old), math.Float64bits(val))
}
