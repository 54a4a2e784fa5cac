package status

import (
	"strings"
	"sync"
	"testing"
)

func TestMetricMapReturnsCachedPointer(t *testing.T) {
	r := NewRegistry()
	a := r.Ints.Get("scheduler.ticks")
	b := r.Ints.Get("scheduler.ticks")
	if a != b {
		t.Fatal("Get returned different pointers for the same key")
	}
	a.Add(3)
	if got := b.Load(); got != 3 {
		t.Errorf("expected 3, got %d", got)
	}
}

func TestAtomicFloatConcurrentAdd(t *testing.T) {
	var f AtomicFloat
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				f.Add(0.5)
			}
		}()
	}
	wg.Wait()
	if got := f.Get(); got != 4000 {
		t.Errorf("expected 4000, got %f", got)
	}
	if prev := f.Swap(1); prev != 4000 {
		t.Errorf("Swap returned %f, want 4000", prev)
	}
}

func TestAtomicStringTruncates(t *testing.T) {
	var s AtomicString
	if s.Load() != "" {
		t.Fatal("zero value should be empty")
	}
	s.Store("0123456789012345678901234567890")
	if got := len(s.Load()); got != MaxStringLen {
		t.Errorf("expected length %d, got %d", MaxStringLen, got)
	}
}

func TestAtomicStringKeepsRuneBoundary(t *testing.T) {
	var s AtomicString
	s.Store(strings.Repeat("a", MaxStringLen-1) + "é")
	if got, want := s.Load(), strings.Repeat("a", MaxStringLen-1); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestMetricMapKeysAndRangeRegister(t *testing.T) {
	m := NewMetricMap[int]()
	*m.Get("b") = 2
	*m.Get("a") = 1
	if got := m.Keys(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("Keys = %v", got)
	}
	// Registering from inside the callback must not deadlock
	m.Range(func(k string, v *int) {
		m.Get(k + ".seen")
	})
	if m.Count() != 4 {
		t.Errorf("Count = %d, want 4", m.Count())
	}
}

func TestRegistrySnapshotOrder(t *testing.T) {
	r := NewRegistry()
	r.Ints.Get("b").Store(2)
	r.Ints.Get("a").Store(1)
	r.Floats.Get("tempo.bpm").Set(120)
	r.Strings.Get("audio.backend").Store("speaker")
	r.Bools.Get("scheduler.playing").Store(true)

	snap := r.Snapshot()
	want := []Metric{
		{"scheduler.playing", "true"},
		{"a", "1"},
		{"b", "2"},
		{"tempo.bpm", "120.0"},
		{"audio.backend", "speaker"},
	}
	if len(snap) != len(want) {
		t.Fatalf("expected %d metrics, got %d", len(want), len(snap))
	}
	for i := range want {
		if snap[i] != want[i] {
			t.Errorf("metric %d: got %+v, want %+v", i, snap[i], want[i])
		}
	}
}
