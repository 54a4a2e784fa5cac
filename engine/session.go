package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/lixenwraith/polymetro/core"
	"github.com/lixenwraith/polymetro/parameter"
	"github.com/lixenwraith/polymetro/rhythm"
	"github.com/lixenwraith/polymetro/status"
	"github.com/lixenwraith/polymetro/tempo"
)

// Session owns the tempo and every track of one metronome
// All mutation goes through the session lock; OnTick is the only writer of phase
// while playing
type Session struct {
	mu sync.Mutex
	// Serializes Start and Stop across the tick source calls; never taken by OnTick
	lifecycle sync.Mutex

	renderer Renderer
	ticker   TickSource
	tempo    *tempo.Tempo
	tap      *tempo.TapEstimator

	lookAhead  float64
	resyncLead float64

	reference   *rhythm.ReferenceTrack
	polyrhythms []*rhythm.Polyrhythm
	nextID      core.TrackID

	sound        core.SoundHandle
	masterVolume float64
	playing      bool
	observer     BeatObserver

	// Cached metric pointers
	statusReg        *status.Registry
	statTicks        *atomic.Int64
	statCommands     *atomic.Int64
	statRenderErrors *atomic.Int64
	statMissed       *atomic.Int64
	statResyncs      *atomic.Int64
	statPlaying      *atomic.Bool
	statBPM          *status.AtomicFloat
	statTracks       *atomic.Int64
}

type beatNote struct {
	track core.TrackID
	beat  int
}

// NewSession creates a stopped session and subscribes it to ticker
// reg may be nil, in which case a private registry is used
func NewSession(cfg Config, renderer Renderer, ticker TickSource, reg *status.Registry) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}
	if renderer == nil || ticker == nil {
		return nil, fmt.Errorf("session requires a renderer and a tick source")
	}

	tp, err := tempo.New(cfg.BPM)
	if err != nil {
		return nil, err
	}
	ref, err := rhythm.NewReferenceTrack(cfg.Reference)
	if err != nil {
		return nil, err
	}

	clock := cfg.Clock
	if clock == nil {
		clock = core.NewTimeProvider()
	}
	if reg == nil {
		reg = status.NewRegistry()
	}

	s := &Session{
		renderer:         renderer,
		ticker:           ticker,
		tempo:            tp,
		tap:              tempo.NewTapEstimator(clock),
		lookAhead:        cfg.LookAhead.Seconds(),
		resyncLead:       cfg.ResyncLead.Seconds(),
		reference:        ref,
		nextID:           1,
		masterVolume:     cfg.MasterVolume,
		statusReg:        reg,
		statTicks:        reg.Ints.Get("scheduler.ticks"),
		statCommands:     reg.Ints.Get("scheduler.commands"),
		statRenderErrors: reg.Ints.Get("scheduler.render_errors"),
		statMissed:       reg.Ints.Get("scheduler.missed_beats"),
		statResyncs:      reg.Ints.Get("scheduler.resyncs"),
		statTracks:       reg.Ints.Get("scheduler.polyrhythms"),
		statPlaying:      reg.Bools.Get("scheduler.playing"),
		statBPM:          reg.Floats.Get("tempo.bpm"),
	}
	s.statBPM.Set(cfg.BPM)

	ticker.OnSignal(s.OnTick)
	return s, nil
}

// Status returns the metrics registry the session publishes to
func (s *Session) Status() *status.Registry {
	return s.statusReg
}

// SetSound selects the click the renderer plays for every track
// Until a sound is set ticks are no-ops
func (s *Session) SetSound(h core.SoundHandle) {
	s.mu.Lock()
	s.sound = h
	s.mu.Unlock()
}

// OnBeatAdvance registers the beat observer, replacing any previous one
func (s *Session) OnBeatAdvance(fn BeatObserver) {
	s.mu.Lock()
	s.observer = fn
	s.mu.Unlock()
}

// Start resumes the renderer, anchors every track at the current clock time and
// starts the tick source. Starting a playing session is a no-op
func (s *Session) Start(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if err := s.renderer.Resume(ctx); err != nil {
		return fmt.Errorf("resume renderer: %w", err)
	}

	s.mu.Lock()
	if s.playing {
		s.mu.Unlock()
		return nil
	}
	now := s.renderer.Now()
	s.reference.Reset(now)
	s.reference.CycleStartTime = now
	for _, p := range s.polyrhythms {
		p.Reset(now)
	}
	s.playing = true
	s.statPlaying.Store(true)

	// First beat lands at now; schedule it against the same clock reading
	// before the first timer wake-up
	var ps pass
	if s.sound != core.SoundNone {
		ps = s.collect(now)
	}
	s.mu.Unlock()

	s.dispatch(ps)
	s.ticker.Start()
	return nil
}

// Stop halts scheduling and returns every track to its downbeat
// Returns false when the session was already stopped
// Beats already handed to the renderer still sound
// Must not be called from the beat observer
func (s *Session) Stop() bool {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	if !s.playing {
		s.mu.Unlock()
		return false
	}
	s.playing = false
	s.statPlaying.Store(false)
	s.reference.Reset(0)
	s.reference.CycleStartTime = 0
	for _, p := range s.polyrhythms {
		p.Reset(0)
	}
	s.mu.Unlock()

	s.tap.Reset()
	s.ticker.Stop()
	return true
}

// Playing reports whether the session is scheduling
func (s *Session) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// OnTick emits every beat inside [now, now+lookAhead) and advances phase
// Render failures are logged and counted per command; the pass always completes
func (s *Session) OnTick() {
	s.mu.Lock()
	if !s.playing || s.sound == core.SoundNone {
		s.mu.Unlock()
		return
	}
	ps := s.collect(s.renderer.Now())
	s.mu.Unlock()

	s.dispatch(ps)
}

// pass is the output of one scheduling pass, dispatched outside the lock
type pass struct {
	cmds     []core.Command
	notes    []beatNote
	missed   int64
	sound    core.SoundHandle
	observer BeatObserver
}

// collect advances every track through the look-ahead window; caller holds the lock
func (s *Session) collect(now float64) pass {
	s.statTicks.Add(1)
	horizon := now + s.lookAhead
	ps := pass{sound: s.sound, observer: s.observer}

	ref := s.reference
	for ref.NextBeatTime() < horizon {
		at, beat := ref.NextBeatTime(), ref.CurrentBeat()
		if at >= now {
			ps.notes = append(ps.notes, beatNote{core.ReferenceTrackID, beat})
			if ref.Audible() && !ref.BeatMuted(beat) {
				pitch, vol := rhythm.Emphasis(beat, parameter.ReferencePitch, ref.Volume)
				ps.cmds = append(ps.cmds, core.Command{
					Track:    core.ReferenceTrackID,
					Time:     at,
					Pitch:    pitch,
					Volume:   vol * s.masterVolume,
					Beat:     beat,
					Downbeat: beat == 0,
				})
			}
		} else {
			ps.missed++
		}
		if ref.Advance(ref.BeatDuration(s.tempo.BPM())) {
			ref.CycleStartTime = ref.NextBeatTime()
		}
	}

	anySolo := rhythm.AnySolo(s.polyrhythms)
	beatsPerCycle := ref.BeatCount()
	for _, p := range s.polyrhythms {
		audible := p.Audible(anySolo)
		for p.NextBeatTime() < horizon {
			at, beat := p.NextBeatTime(), p.CurrentBeat()
			if at >= now {
				ps.notes = append(ps.notes, beatNote{p.ID, beat})
				if audible && !p.BeatMuted(beat) {
					pitch, vol := rhythm.Emphasis(beat, p.Pitch, p.Volume)
					ps.cmds = append(ps.cmds, core.Command{
						Track:    p.ID,
						Time:     at,
						Pitch:    pitch,
						Volume:   vol * s.masterVolume,
						Beat:     beat,
						Downbeat: beat == 0,
					})
				}
			} else {
				ps.missed++
			}
			p.Advance(p.BeatDuration(s.tempo.BPM(), beatsPerCycle))
		}
	}
	return ps
}

// dispatch hands commands to the renderer and notifies the observer
func (s *Session) dispatch(ps pass) {
	if ps.missed > 0 {
		s.statMissed.Add(ps.missed)
	}

	cr, full := s.renderer.(CommandRenderer)
	for _, c := range ps.cmds {
		var err error
		if full {
			err = cr.PlayCommand(c, ps.sound)
		} else {
			err = s.renderer.PlaySound(c.Time, ps.sound, c.Pitch, c.Volume)
		}
		if err != nil {
			s.statRenderErrors.Add(1)
			log.Printf("scheduler: %s beat %d at %.4f: %v", c.Track, c.Beat, c.Time, err)
			continue
		}
		s.statCommands.Add(1)
	}

	if ps.observer != nil {
		for _, n := range ps.notes {
			ps.observer(n.track, n.beat)
		}
	}
}

// BPM returns the current tempo
func (s *Session) BPM() float64 {
	return s.tempo.BPM()
}

// SetTempo changes the tempo and, while playing, resynchronizes every track
func (s *Session) SetTempo(bpm float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.tempo.Set(bpm); err != nil {
		return err
	}
	s.statBPM.Set(bpm)
	if s.playing {
		s.resync()
	}
	return nil
}

// AdjustTempo nudges the tempo by delta, clamped to range, and returns the new tempo
// A non-finite delta is rejected with the prior tempo kept
func (s *Session) AdjustTempo(delta float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bpm, err := s.tempo.Adjust(delta)
	if err != nil {
		return bpm, err
	}
	s.statBPM.Set(bpm)
	if s.playing {
		s.resync()
	}
	return bpm, nil
}

// Tap feeds the tap estimator and applies its estimate
// Returns the applied tempo and true when the tap produced one
func (s *Session) Tap() (float64, bool) {
	bpm, ok := s.tap.Tap()
	if !ok {
		return 0, false
	}
	if err := s.SetTempo(bpm); err != nil {
		return 0, false
	}
	return bpm, true
}

// TapCount returns the number of taps currently buffered
func (s *Session) TapCount() int {
	return s.tap.Count()
}

// resync re-anchors all tracks after a tempo change
// The reference keeps its beat index and continues from now+lead; polyrhythms
// restart at the next reference downbeat under the new tempo
func (s *Session) resync() {
	syncTime := s.renderer.Now() + s.resyncLead
	d := s.reference.BeatDuration(s.tempo.BPM())

	s.reference.Rebase(syncTime)
	s.reference.CycleStartTime = s.reference.NextDownbeatTime(d)
	for _, p := range s.polyrhythms {
		p.Reset(s.reference.CycleStartTime)
	}
	s.statResyncs.Add(1)
}

// nextCycleStart returns when a newly aligned polyrhythm should begin
// Stopped sessions defer the anchor to Start
func (s *Session) nextCycleStart() float64 {
	if !s.playing {
		return 0
	}
	return s.reference.NextDownbeatTime(s.reference.BeatDuration(s.tempo.BPM()))
}

// AddPolyrhythm adds a track dividing the reference cycle into ratio beats
func (s *Session) AddPolyrhythm(ratio int) (core.TrackID, error) {
	return s.AddPolyrhythmWithConfig(rhythm.PolyrhythmConfig{
		Ratio:  ratio,
		Volume: parameter.DefaultPolyrhythmVolume,
	})
}

// AddPolyrhythmWithConfig adds a fully specified polyrhythm
// A zero pitch selects the palette pitch for the new id
func (s *Session) AddPolyrhythmWithConfig(cfg rhythm.PolyrhythmConfig) (core.TrackID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	if cfg.Pitch == 0 {
		cfg.Pitch = parameter.PitchForID(int(id))
	}
	p, err := rhythm.NewPolyrhythm(id, cfg)
	if err != nil {
		return 0, err
	}
	p.Reset(s.nextCycleStart())

	s.nextID++
	s.polyrhythms = append(s.polyrhythms, p)
	s.statTracks.Store(int64(len(s.polyrhythms)))
	return id, nil
}

// RemovePolyrhythm deletes a polyrhythm and releases its state
func (s *Session) RemovePolyrhythm(id core.TrackID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, p := range s.polyrhythms {
		if p.ID == id {
			copy(s.polyrhythms[i:], s.polyrhythms[i+1:])
			s.polyrhythms[len(s.polyrhythms)-1] = nil
			s.polyrhythms = s.polyrhythms[:len(s.polyrhythms)-1]
			s.statTracks.Store(int64(len(s.polyrhythms)))
			return nil
		}
	}
	return fmt.Errorf("remove %s: %w", id, core.ErrUnknownTrack)
}

// SetRatio changes a polyrhythm's division and realigns it to the next cycle
func (s *Session) SetRatio(id core.TrackID, ratio int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.polyrhythm(id)
	if err != nil {
		return err
	}
	if err := p.SetRatio(ratio); err != nil {
		return err
	}
	p.Reset(s.nextCycleStart())
	return nil
}

// SetBeatsPerCycle changes the reference cycle length
// Polyrhythms realign to the next downbeat of the new cycle
func (s *Session) SetBeatsPerCycle(beats int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.reference.SetBeatsPerCycle(beats); err != nil {
		return err
	}
	start := s.nextCycleStart()
	if s.playing {
		s.reference.CycleStartTime = start
	}
	for _, p := range s.polyrhythms {
		p.Reset(start)
	}
	return nil
}

// SetPitch changes a polyrhythm's base pitch
func (s *Session) SetPitch(id core.TrackID, pitch float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := rhythm.ValidatePitch(pitch); err != nil {
		return err
	}
	p, err := s.polyrhythm(id)
	if err != nil {
		return err
	}
	p.Pitch = pitch
	return nil
}

// SetTrackMute mutes or unmutes a whole track
func (s *Session) SetTrackMute(id core.TrackID, muted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id.IsReference() {
		s.reference.Muted = muted
		return nil
	}
	p, err := s.polyrhythm(id)
	if err != nil {
		return err
	}
	p.Muted = muted
	return nil
}

// SetTrackSolo adds or removes a polyrhythm from the solo group
func (s *Session) SetTrackSolo(id core.TrackID, solo bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id.IsReference() {
		return core.ErrSoloReference
	}
	p, err := s.polyrhythm(id)
	if err != nil {
		return err
	}
	p.Solo = solo
	return nil
}

// SetTrackVolume sets a track's gain in 0.0-1.0
func (s *Session) SetTrackVolume(id core.TrackID, volume float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := rhythm.ValidateVolume(volume); err != nil {
		return err
	}
	if id.IsReference() {
		s.reference.Volume = volume
		return nil
	}
	p, err := s.polyrhythm(id)
	if err != nil {
		return err
	}
	p.Volume = volume
	return nil
}

// SetMasterVolume sets the gain applied to every command
func (s *Session) SetMasterVolume(volume float64) error {
	if err := rhythm.ValidateVolume(volume); err != nil {
		return fmt.Errorf("master %w", err)
	}
	s.mu.Lock()
	s.masterVolume = volume
	s.mu.Unlock()
	return nil
}

// ToggleBeatMute flips one beat's mute flag and returns the new state
func (s *Session) ToggleBeatMute(id core.TrackID, beat int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id.IsReference() {
		return s.reference.ToggleBeatMute(beat)
	}
	p, err := s.polyrhythm(id)
	if err != nil {
		return false, err
	}
	return p.ToggleBeatMute(beat)
}

// polyrhythm looks up a polyrhythm by id; caller holds the lock
func (s *Session) polyrhythm(id core.TrackID) (*rhythm.Polyrhythm, error) {
	for _, p := range s.polyrhythms {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", id, core.ErrUnknownTrack)
}
