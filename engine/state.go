package engine

import (
	"github.com/lixenwraith/polymetro/core"
	"github.com/lixenwraith/polymetro/rhythm"
)

// TrackState is an immutable copy of one track for display and persistence
type TrackState struct {
	ID           core.TrackID
	Beats        int
	CurrentBeat  int
	ActiveBeat   int // Beat sounding at snapshot time, -1 if none
	NextBeatTime float64
	Muted        bool
	Solo         bool
	Audible      bool
	Volume       float64
	Pitch        float64
	MutedBeats   []bool
}

// State is an immutable copy of the whole session
type State struct {
	Playing        bool
	BPM            float64
	MasterVolume   float64
	Now            float64
	CycleStartTime float64
	Reference      TrackState
	Polyrhythms    []TrackState
}

// Track returns the state of id and whether it exists
func (st State) Track(id core.TrackID) (TrackState, bool) {
	if id.IsReference() {
		return st.Reference, true
	}
	for _, p := range st.Polyrhythms {
		if p.ID == id {
			return p, true
		}
	}
	return TrackState{}, false
}

// Snapshot copies the session state
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	bpm := s.tempo.BPM()
	now := s.renderer.Now()
	ref := s.reference
	refBeat := ref.BeatDuration(bpm)

	st := State{
		Playing:        s.playing,
		BPM:            bpm,
		MasterVolume:   s.masterVolume,
		Now:            now,
		CycleStartTime: ref.CycleStartTime,
		Reference: TrackState{
			ID:           core.ReferenceTrackID,
			Beats:        ref.BeatCount(),
			CurrentBeat:  ref.CurrentBeat(),
			ActiveBeat:   -1,
			NextBeatTime: ref.NextBeatTime(),
			Muted:        ref.Muted,
			Audible:      ref.Audible(),
			Volume:       ref.Volume,
			Pitch:        1,
			MutedBeats:   ref.MuteMask(),
		},
		Polyrhythms: make([]TrackState, 0, len(s.polyrhythms)),
	}
	if s.playing {
		st.Reference.ActiveBeat = ref.BeatAt(now, refBeat)
	}

	anySolo := rhythm.AnySolo(s.polyrhythms)
	for _, p := range s.polyrhythms {
		ts := TrackState{
			ID:           p.ID,
			Beats:        p.Ratio(),
			CurrentBeat:  p.CurrentBeat(),
			ActiveBeat:   -1,
			NextBeatTime: p.NextBeatTime(),
			Muted:        p.Muted,
			Solo:         p.Solo,
			Audible:      p.Audible(anySolo),
			Volume:       p.Volume,
			Pitch:        p.Pitch,
			MutedBeats:   p.MuteMask(),
		}
		if s.playing {
			ts.ActiveBeat = p.BeatAt(now, p.BeatDuration(bpm, ref.BeatCount()))
		}
		st.Polyrhythms = append(st.Polyrhythms, ts)
	}
	return st
}

// ReferenceConfig returns the reference track configuration
func (s *Session) ReferenceConfig() rhythm.ReferenceConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reference.Config()
}

// PolyrhythmConfigs returns every polyrhythm's configuration in track order
func (s *Session) PolyrhythmConfigs() []rhythm.PolyrhythmConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]rhythm.PolyrhythmConfig, len(s.polyrhythms))
	for i, p := range s.polyrhythms {
		out[i] = p.Config()
	}
	return out
}
