package audio

import (
	"fmt"
	"sync"

	"github.com/lixenwraith/polymetro/core"
)

// SoundBank stores unity-gain float buffers addressed by handle
type SoundBank struct {
	mu         sync.RWMutex
	sampleRate int
	store      map[core.SoundHandle]floatBuffer
	next       core.SoundHandle
	click      core.SoundHandle
}

// NewSoundBank creates an empty bank for buffers at sampleRate
func NewSoundBank(sampleRate int) *SoundBank {
	return &SoundBank{
		sampleRate: sampleRate,
		store:      make(map[core.SoundHandle]floatBuffer),
		next:       1,
	}
}

// SampleRate returns the rate every stored buffer is at
func (b *SoundBank) SampleRate() int {
	return b.sampleRate
}

// Add stores a mono buffer and returns its handle
func (b *SoundBank) Add(samples []float64) (core.SoundHandle, error) {
	if len(samples) == 0 {
		return core.SoundNone, fmt.Errorf("%w: empty buffer", ErrInvalidSample)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	h := b.next
	b.next++
	b.store[h] = floatBuffer(append([]float64(nil), samples...))
	return h, nil
}

// Get returns the buffer for h
func (b *SoundBank) Get(h core.SoundHandle) (floatBuffer, error) {
	b.mu.RLock()
	buf, ok := b.store[h]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %d", core.ErrUnknownSound, h)
	}
	return buf, nil
}

// Click returns the handle of the synthesized click, generating it on first use
func (b *SoundBank) Click() core.SoundHandle {
	b.mu.RLock()
	if b.click != core.SoundNone {
		h := b.click
		b.mu.RUnlock()
		return h
	}
	b.mu.RUnlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	// Double-check after acquiring write lock
	if b.click != core.SoundNone {
		return b.click
	}

	h := b.next
	b.next++
	b.store[h] = generateClick(b.sampleRate)
	b.click = h
	return h
}

// Len returns the number of stored sounds
func (b *SoundBank) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.store)
}
