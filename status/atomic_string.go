package status

import (
	"sync/atomic"
	"unicode/utf8"
)

// MaxStringLen bounds a label in bytes, enough for a backend name or a file base name
const MaxStringLen = 24

// AtomicString holds a short label such as the active audio backend
// Zero value reads as the empty string
type AtomicString struct {
	ptr atomic.Pointer[string]
}

// Store replaces the label, cutting it at the last rune boundary within MaxStringLen
func (s *AtomicString) Store(val string) {
	if len(val) > MaxStringLen {
		cut := MaxStringLen
		for cut > 0 && !utf8.RuneStart(val[cut]) {
			cut--
		}
		val = val[:cut]
	}
	s.ptr.Store(&val)
}

// Load returns the current label
func (s *AtomicString) Load() string {
	if p := s.ptr.Load(); p != nil {
		return *p
	}
	return ""
}
