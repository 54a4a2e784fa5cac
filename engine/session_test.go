package engine

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/lixenwraith/polymetro/core"
	"github.com/lixenwraith/polymetro/parameter"
	"github.com/lixenwraith/polymetro/rhythm"
)

const (
	tickStep     = parameter.DefaultTickInterval
	samplePeriod = 1.0 / parameter.AudioSampleRate
)

type harness struct {
	session  *Session
	renderer *OfflineRenderer
	ticker   *ManualTicker
}

func newHarness(t *testing.T, bpm float64, beats int) *harness {
	t.Helper()
	cfg := DefaultConfig()
	cfg.BPM = bpm
	cfg.Reference.BeatsPerCycle = beats

	r := NewOfflineRenderer()
	tk := NewManualTicker()
	s, err := NewSession(cfg, r, tk, nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	s.SetSound(1)
	return &harness{session: s, renderer: r, ticker: tk}
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func (h *harness) drive(d time.Duration) {
	Drive(h.renderer, h.ticker, d, tickStep)
}

func times(cmds []core.Command, downbeatsOnly bool) []float64 {
	var out []float64
	for _, c := range cmds {
		if downbeatsOnly && !c.Downbeat {
			continue
		}
		out = append(out, c.Time)
	}
	return out
}

func TestNewSessionRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BPM = 5
	if _, err := NewSession(cfg, NewOfflineRenderer(), NewManualTicker(), nil); !errors.Is(err, core.ErrInvalidTempo) {
		t.Errorf("expected ErrInvalidTempo, got %v", err)
	}

	cfg = DefaultConfig()
	cfg.Reference.BeatsPerCycle = 0
	if _, err := NewSession(cfg, NewOfflineRenderer(), NewManualTicker(), nil); !errors.Is(err, core.ErrInvalidBeatsPerCycle) {
		t.Errorf("expected ErrInvalidBeatsPerCycle, got %v", err)
	}

	cfg = DefaultConfig()
	cfg.TickInterval = 200 * time.Millisecond
	if _, err := NewSession(cfg, NewOfflineRenderer(), NewManualTicker(), nil); err == nil {
		t.Error("expected error when tick interval exceeds look-ahead")
	}
}

func TestTwoCyclesReferenceAndTriplet(t *testing.T) {
	h := newHarness(t, 120, 4)
	id, err := h.session.AddPolyrhythm(3)
	if err != nil {
		t.Fatal(err)
	}
	h.start(t)
	// Two cycles at 120 BPM span [0, 4); stop short of the third downbeat's window
	h.drive(3800 * time.Millisecond)

	ref := h.renderer.PlayedFor(core.ReferenceTrackID)
	poly := h.renderer.PlayedFor(id)
	if len(ref) != 8 {
		t.Fatalf("expected 8 reference beats, got %d", len(ref))
	}
	if len(poly) != 6 {
		t.Fatalf("expected 6 polyrhythm beats, got %d", len(poly))
	}

	refDown := times(ref, true)
	polyDown := times(poly, true)
	if len(refDown) != 2 || len(polyDown) != 2 {
		t.Fatalf("expected 2 downbeats each, got ref=%v poly=%v", refDown, polyDown)
	}
	for i := range refDown {
		if math.Abs(refDown[i]-polyDown[i]) > 1e-9 {
			t.Errorf("downbeat %d misaligned: ref %v poly %v", i, refDown[i], polyDown[i])
		}
	}
	for i, c := range poly {
		want := float64(i) * 2.0 / 3
		if math.Abs(c.Time-want) > 1e-9 {
			t.Errorf("poly beat %d at %v, want %v", i, c.Time, want)
		}
	}
}

func TestDownbeatIntervalAndDrift(t *testing.T) {
	const bpm = 97
	h := newHarness(t, bpm, 4)
	id, _ := h.session.AddPolyrhythm(5)
	h.start(t)

	cycle := 4 * 60.0 / bpm
	h.drive(time.Duration(100*cycle*float64(time.Second)) + 50*time.Millisecond)

	refDown := times(h.renderer.PlayedFor(core.ReferenceTrackID), true)
	polyDown := times(h.renderer.PlayedFor(id), true)
	if len(refDown) < 100 {
		t.Fatalf("expected at least 100 downbeats, got %d", len(refDown))
	}

	for k := 1; k < len(refDown); k++ {
		interval := refDown[k] - refDown[k-1]
		if math.Abs(interval-cycle) > 1e-6 {
			t.Fatalf("downbeat interval %d = %v, want %v", k, interval, cycle)
		}
	}
	for k := 0; k < 100; k++ {
		if drift := math.Abs(refDown[k] - float64(k)*cycle); drift > samplePeriod {
			t.Fatalf("reference drift at cycle %d: %v s", k, drift)
		}
		if drift := math.Abs(polyDown[k] - refDown[k]); drift > samplePeriod {
			t.Fatalf("polyrhythm drift at cycle %d: %v s", k, drift)
		}
	}
}

func TestPolyrhythmBeatsPerCycle(t *testing.T) {
	for _, ratio := range []int{2, 3, 5, 7, 11} {
		h := newHarness(t, 150, 4)
		id, err := h.session.AddPolyrhythm(ratio)
		if err != nil {
			t.Fatal(err)
		}
		h.start(t)
		// Cycle is 1.6s; stay clear of the second downbeat's window
		h.drive(1400 * time.Millisecond)

		poly := h.renderer.PlayedFor(id)
		if len(poly) != ratio {
			t.Errorf("ratio %d: got %d beats in one cycle", ratio, len(poly))
			continue
		}
		if !poly[0].Downbeat || poly[0].Time != 0 {
			t.Errorf("ratio %d: first beat should be a downbeat at 0, got %+v", ratio, poly[0])
		}
	}
}

func TestStopResetsAndIsIdempotent(t *testing.T) {
	h := newHarness(t, 120, 4)
	id, _ := h.session.AddPolyrhythm(3)
	h.start(t)
	h.drive(1300 * time.Millisecond)

	st := h.session.Snapshot()
	if st.Reference.CurrentBeat == 0 {
		t.Fatal("expected reference to have advanced")
	}

	if !h.session.Stop() {
		t.Fatal("first Stop should report a transition")
	}
	if h.session.Stop() {
		t.Error("second Stop should be a no-op")
	}
	if _, stops := h.ticker.Counts(); stops != 1 {
		t.Errorf("expected ticker stopped once, got %d", stops)
	}

	st = h.session.Snapshot()
	if st.Playing {
		t.Error("session still playing after Stop")
	}
	if st.Reference.CurrentBeat != 0 {
		t.Errorf("reference index %d after Stop", st.Reference.CurrentBeat)
	}
	if p, _ := st.Track(id); p.CurrentBeat != 0 {
		t.Errorf("polyrhythm index %d after Stop", p.CurrentBeat)
	}

	// Ticks while stopped do nothing
	before := len(h.renderer.Played())
	h.ticker.OnSignal(h.session.OnTick)
	h.session.OnTick()
	if len(h.renderer.Played()) != before {
		t.Error("OnTick emitted commands while stopped")
	}

	h.renderer.Set(10)
	h.renderer.Clear()
	h.start(t)
	played := h.renderer.Played()
	if len(played) == 0 {
		t.Fatal("expected immediate beats after restart")
	}
	for _, c := range played {
		if c.Time != 10 || c.Beat != 0 || !c.Downbeat {
			t.Errorf("restart should begin on downbeats at 10, got %+v", c)
		}
	}
	if h.renderer.Resumes() != 2 {
		t.Errorf("expected renderer resumed on each start, got %d", h.renderer.Resumes())
	}
}

func TestStartWhilePlayingIsNoop(t *testing.T) {
	h := newHarness(t, 120, 4)
	h.start(t)
	h.drive(600 * time.Millisecond)
	beat := h.session.Snapshot().Reference.CurrentBeat

	h.start(t)
	if got := h.session.Snapshot().Reference.CurrentBeat; got != beat {
		t.Errorf("second Start changed phase: %d -> %d", beat, got)
	}
}

func TestTempoChangeResync(t *testing.T) {
	h := newHarness(t, 120, 4)
	id, _ := h.session.AddPolyrhythm(3)
	h.start(t)
	h.drive(1300 * time.Millisecond)

	before := h.session.Snapshot()
	if before.Reference.CurrentBeat != 3 {
		t.Fatalf("expected reference on beat 3 before change, got %d", before.Reference.CurrentBeat)
	}

	if err := h.session.SetTempo(60); err != nil {
		t.Fatal(err)
	}
	after := h.session.Snapshot()
	if after.Reference.CurrentBeat != before.Reference.CurrentBeat {
		t.Errorf("tempo change moved reference index %d -> %d", before.Reference.CurrentBeat, after.Reference.CurrentBeat)
	}
	if math.Abs(after.Reference.NextBeatTime-1.4) > 1e-9 {
		t.Errorf("reference next beat %v, want 1.4", after.Reference.NextBeatTime)
	}
	// One beat remains before the downbeat at the new 1s beat
	if math.Abs(after.CycleStartTime-2.4) > 1e-9 {
		t.Errorf("cycle start %v, want 2.4", after.CycleStartTime)
	}
	p, _ := after.Track(id)
	if p.CurrentBeat != 0 || math.Abs(p.NextBeatTime-2.4) > 1e-9 {
		t.Errorf("polyrhythm should restart at 2.4 on beat 0, got beat %d at %v", p.CurrentBeat, p.NextBeatTime)
	}

	h.renderer.Clear()
	h.drive(2 * time.Second)
	refDown := times(h.renderer.PlayedFor(core.ReferenceTrackID), true)
	polyDown := times(h.renderer.PlayedFor(id), true)
	if len(refDown) == 0 || len(polyDown) == 0 {
		t.Fatal("expected downbeats after resync")
	}
	if math.Abs(refDown[0]-polyDown[0]) > 1e-9 {
		t.Errorf("first downbeats after resync misaligned: %v vs %v", refDown[0], polyDown[0])
	}
	if got := h.session.Status().Ints.Get("scheduler.resyncs").Load(); got != 1 {
		t.Errorf("expected 1 resync, got %d", got)
	}
}

func TestSetTempoRejectsOutOfRange(t *testing.T) {
	h := newHarness(t, 120, 4)
	if err := h.session.SetTempo(401); !errors.Is(err, core.ErrInvalidTempo) {
		t.Errorf("expected ErrInvalidTempo, got %v", err)
	}
	if h.session.BPM() != 120 {
		t.Errorf("tempo changed to %v after rejected update", h.session.BPM())
	}
	if got, err := h.session.AdjustTempo(500); err != nil || got != parameter.MaxBPM {
		t.Errorf("AdjustTempo clamps to %d, got %v, %v", parameter.MaxBPM, got, err)
	}
}

func TestAdjustTempoRejectsNaNWhilePlaying(t *testing.T) {
	h := newHarness(t, 120, 4)
	h.start(t)
	h.drive(600 * time.Millisecond)
	resyncs := h.session.Status().Ints.Get("scheduler.resyncs").Load()

	got, err := h.session.AdjustTempo(math.NaN())
	if !errors.Is(err, core.ErrInvalidTempo) {
		t.Fatalf("expected ErrInvalidTempo, got %v", err)
	}
	if got != 120 || h.session.BPM() != 120 {
		t.Fatalf("tempo changed to %v / %v after NaN nudge", got, h.session.BPM())
	}
	if n := h.session.Status().Ints.Get("scheduler.resyncs").Load(); n != resyncs {
		t.Errorf("rejected nudge resynced tracks")
	}

	before := len(h.renderer.PlayedFor(core.ReferenceTrackID))
	h.drive(2 * time.Second)
	after := len(h.renderer.PlayedFor(core.ReferenceTrackID))
	if after-before != 4 {
		t.Errorf("expected 4 reference beats in the next 2s, got %d", after-before)
	}
	if next := h.session.Snapshot().Reference.NextBeatTime; math.IsNaN(next) || math.IsInf(next, 0) {
		t.Errorf("next beat time not finite: %v", next)
	}
}

func TestTapTempoThroughSession(t *testing.T) {
	clock := core.NewMockTimeProvider(time.Unix(0, 0))
	cfg := DefaultConfig()
	cfg.BPM = 100
	cfg.Clock = clock
	s, err := NewSession(cfg, NewOfflineRenderer(), NewManualTicker(), nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := s.Tap(); ok {
		t.Fatal("single tap applied a tempo")
	}
	for i := 0; i < 3; i++ {
		clock.Advance(500 * time.Millisecond)
		s.Tap()
	}
	if s.BPM() != 120 {
		t.Errorf("expected 120 BPM after steady taps, got %v", s.BPM())
	}
	if s.TapCount() != 4 {
		t.Errorf("expected 4 buffered taps, got %d", s.TapCount())
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	s.Stop()
	if s.TapCount() != 0 {
		t.Errorf("expected taps cleared by Stop, got %d", s.TapCount())
	}
}

func TestSoloSuppressesOthers(t *testing.T) {
	h := newHarness(t, 120, 4)
	a, _ := h.session.AddPolyrhythm(3)
	b, _ := h.session.AddPolyrhythm(5)
	if err := h.session.SetTrackSolo(b, true); err != nil {
		t.Fatal(err)
	}
	h.start(t)
	h.drive(1800 * time.Millisecond)

	if n := len(h.renderer.PlayedFor(a)); n != 0 {
		t.Errorf("non-soloed track played %d beats", n)
	}
	if n := len(h.renderer.PlayedFor(b)); n != 5 {
		t.Errorf("soloed track played %d beats, want 5", n)
	}
	if n := len(h.renderer.PlayedFor(core.ReferenceTrackID)); n != 4 {
		t.Errorf("reference outside solo group played %d beats, want 4", n)
	}
	if err := h.session.SetTrackSolo(core.ReferenceTrackID, true); !errors.Is(err, core.ErrSoloReference) {
		t.Errorf("expected ErrSoloReference, got %v", err)
	}
}

func TestMuteAndBeatMute(t *testing.T) {
	h := newHarness(t, 120, 4)
	id, _ := h.session.AddPolyrhythm(3)
	h.session.SetTrackMute(id, true)
	if muted, err := h.session.ToggleBeatMute(core.ReferenceTrackID, 1); err != nil || !muted {
		t.Fatalf("ToggleBeatMute = %v, %v", muted, err)
	}

	var observed []int
	h.session.OnBeatAdvance(func(track core.TrackID, beat int) {
		if track == core.ReferenceTrackID {
			observed = append(observed, beat)
		}
	})

	h.start(t)
	h.drive(1800 * time.Millisecond)

	if n := len(h.renderer.PlayedFor(id)); n != 0 {
		t.Errorf("muted polyrhythm played %d beats", n)
	}
	var beats []int
	for _, c := range h.renderer.PlayedFor(core.ReferenceTrackID) {
		beats = append(beats, c.Beat)
	}
	if len(beats) != 3 || beats[0] != 0 || beats[1] != 2 || beats[2] != 3 {
		t.Errorf("reference beats = %v, want [0 2 3]", beats)
	}
	// Muted beats still advance and notify
	if len(observed) != 4 {
		t.Errorf("observer saw %v, want 4 reference beats", observed)
	}

	if _, err := h.session.ToggleBeatMute(core.ReferenceTrackID, 4); !errors.Is(err, core.ErrBeatOutOfRange) {
		t.Errorf("expected ErrBeatOutOfRange, got %v", err)
	}
}

func TestEmphasisAndMasterVolume(t *testing.T) {
	h := newHarness(t, 120, 4)
	h.start(t)
	h.drive(600 * time.Millisecond)

	ref := h.renderer.PlayedFor(core.ReferenceTrackID)
	if len(ref) < 2 {
		t.Fatalf("expected two reference beats, got %d", len(ref))
	}
	master := parameter.DefaultMasterVolume
	if math.Abs(ref[0].Pitch-1.2) > 1e-12 || math.Abs(ref[0].Volume-master) > 1e-12 {
		t.Errorf("downbeat = pitch %v volume %v", ref[0].Pitch, ref[0].Volume)
	}
	if ref[1].Pitch != 1 || math.Abs(ref[1].Volume-0.7*master) > 1e-12 {
		t.Errorf("offbeat = pitch %v volume %v", ref[1].Pitch, ref[1].Volume)
	}
}

func TestRenderErrorsAreIsolated(t *testing.T) {
	h := newHarness(t, 120, 4)
	h.renderer.FailWith(func(c core.Command) error {
		if c.Track == core.ReferenceTrackID && c.Beat == 1 {
			return errors.New("device busy")
		}
		return nil
	})
	h.start(t)
	h.drive(1800 * time.Millisecond)

	if n := len(h.renderer.PlayedFor(core.ReferenceTrackID)); n != 3 {
		t.Errorf("expected 3 successful beats, got %d", n)
	}
	reg := h.session.Status()
	if got := reg.Ints.Get("scheduler.render_errors").Load(); got != 1 {
		t.Errorf("render_errors = %d, want 1", got)
	}
	if got := reg.Ints.Get("scheduler.commands").Load(); got != 3 {
		t.Errorf("commands = %d, want 3", got)
	}
}

func TestUnknownTrackIsStale(t *testing.T) {
	h := newHarness(t, 120, 4)
	id, _ := h.session.AddPolyrhythm(3)
	if err := h.session.RemovePolyrhythm(id); err != nil {
		t.Fatal(err)
	}

	checks := map[string]error{
		"remove": h.session.RemovePolyrhythm(id),
		"mute":   h.session.SetTrackMute(id, true),
		"solo":   h.session.SetTrackSolo(id, true),
		"volume": h.session.SetTrackVolume(id, 0.5),
		"ratio":  h.session.SetRatio(id, 4),
		"pitch":  h.session.SetPitch(id, 1.1),
	}
	_, err := h.session.ToggleBeatMute(id, 0)
	checks["beat"] = err

	for name, err := range checks {
		if !errors.Is(err, core.ErrUnknownTrack) {
			t.Errorf("%s: expected ErrUnknownTrack, got %v", name, err)
		}
	}
	if n := len(h.session.Snapshot().Polyrhythms); n != 0 {
		t.Errorf("expected no polyrhythms, got %d", n)
	}
}

func TestAddWhilePlayingWaitsForNextCycle(t *testing.T) {
	h := newHarness(t, 120, 4)
	h.start(t)
	h.drive(1300 * time.Millisecond)

	id, err := h.session.AddPolyrhythm(3)
	if err != nil {
		t.Fatal(err)
	}
	p, _ := h.session.Snapshot().Track(id)
	if p.CurrentBeat != 0 || math.Abs(p.NextBeatTime-2.0) > 1e-9 {
		t.Errorf("new polyrhythm at beat %d time %v, want beat 0 at 2.0", p.CurrentBeat, p.NextBeatTime)
	}
	if p.Pitch != parameter.PitchForID(int(id)) {
		t.Errorf("pitch %v, want palette pitch %v", p.Pitch, parameter.PitchForID(int(id)))
	}

	h.drive(time.Second)
	poly := h.renderer.PlayedFor(id)
	if len(poly) == 0 || math.Abs(poly[0].Time-2.0) > 1e-9 || !poly[0].Downbeat {
		t.Errorf("first polyrhythm beat should be a downbeat at 2.0, got %+v", poly)
	}
}

func TestSetRatioRealignsAndValidates(t *testing.T) {
	h := newHarness(t, 120, 4)
	id, _ := h.session.AddPolyrhythm(3)
	h.session.ToggleBeatMute(id, 1)
	h.start(t)
	h.drive(700 * time.Millisecond)

	if err := h.session.SetRatio(id, 1); !errors.Is(err, core.ErrInvalidRatio) {
		t.Errorf("expected ErrInvalidRatio, got %v", err)
	}
	if err := h.session.SetRatio(id, 5); err != nil {
		t.Fatal(err)
	}
	p, _ := h.session.Snapshot().Track(id)
	if p.Beats != 5 || p.CurrentBeat != 0 || math.Abs(p.NextBeatTime-2.0) > 1e-9 {
		t.Errorf("after SetRatio: %+v", p)
	}
	if len(p.MutedBeats) != 5 || !p.MutedBeats[1] {
		t.Errorf("mute flags not preserved: %v", p.MutedBeats)
	}
}

func TestSetBeatsPerCycle(t *testing.T) {
	h := newHarness(t, 120, 4)
	id, _ := h.session.AddPolyrhythm(2)
	h.start(t)
	h.drive(300 * time.Millisecond) // ref next: beat 1 at 0.5

	if err := h.session.SetBeatsPerCycle(0); !errors.Is(err, core.ErrInvalidBeatsPerCycle) {
		t.Errorf("expected ErrInvalidBeatsPerCycle, got %v", err)
	}
	if err := h.session.SetBeatsPerCycle(3); err != nil {
		t.Fatal(err)
	}
	st := h.session.Snapshot()
	if st.Reference.Beats != 3 || st.Reference.CurrentBeat != 1 {
		t.Errorf("reference after resize: %+v", st.Reference)
	}
	p, _ := st.Track(id)
	// Next downbeat: 0.5 + 2 beats * 0.5
	if math.Abs(p.NextBeatTime-1.5) > 1e-9 || math.Abs(st.CycleStartTime-1.5) > 1e-9 {
		t.Errorf("polyrhythm realigned to %v (cycle start %v), want 1.5", p.NextBeatTime, st.CycleStartTime)
	}
}

func TestVolumeValidation(t *testing.T) {
	h := newHarness(t, 120, 4)
	if err := h.session.SetTrackVolume(core.ReferenceTrackID, 1.2); !errors.Is(err, core.ErrInvalidVolume) {
		t.Errorf("expected ErrInvalidVolume, got %v", err)
	}
	if err := h.session.SetTrackVolume(core.ReferenceTrackID, 0.3); err != nil {
		t.Fatal(err)
	}
	if v := h.session.Snapshot().Reference.Volume; v != 0.3 {
		t.Errorf("reference volume %v", v)
	}
	if err := h.session.SetMasterVolume(-1); !errors.Is(err, core.ErrInvalidVolume) {
		t.Errorf("expected ErrInvalidVolume for master, got %v", err)
	}
	if _, err := h.session.AddPolyrhythmWithConfig(rhythm.PolyrhythmConfig{Ratio: 3, Volume: 2}); !errors.Is(err, core.ErrInvalidVolume) {
		t.Errorf("expected ErrInvalidVolume for new track, got %v", err)
	}
}

func TestNoSoundIsNoop(t *testing.T) {
	h := newHarness(t, 120, 4)
	h.session.SetSound(core.SoundNone)
	h.start(t)
	h.drive(time.Second)
	if n := len(h.renderer.Played()); n != 0 {
		t.Errorf("expected no commands without a sound, got %d", n)
	}
	if st := h.session.Snapshot(); st.Reference.CurrentBeat != 0 {
		t.Errorf("phase advanced without a sound: %d", st.Reference.CurrentBeat)
	}
}

func TestStallCatchesUpWithoutSounding(t *testing.T) {
	h := newHarness(t, 120, 4)
	h.start(t)

	// Clock jumps 1s between ticks
	h.renderer.Set(1.0)
	h.ticker.Fire()

	ref := h.renderer.PlayedFor(core.ReferenceTrackID)
	if len(ref) != 2 || ref[1].Time != 1.0 || ref[1].Beat != 2 {
		t.Errorf("expected beats at 0 and 1.0 (index 2), got %+v", ref)
	}
	if got := h.session.Status().Ints.Get("scheduler.missed_beats").Load(); got != 1 {
		t.Errorf("missed_beats = %d, want 1", got)
	}
	if got := h.session.Snapshot().Reference.CurrentBeat; got != 3 {
		t.Errorf("index after catch-up = %d, want 3", got)
	}
}

func TestSnapshotActiveBeat(t *testing.T) {
	h := newHarness(t, 120, 4)
	if st := h.session.Snapshot(); st.Reference.ActiveBeat != -1 {
		t.Errorf("stopped session active beat %d", st.Reference.ActiveBeat)
	}
	h.start(t)
	h.drive(1100 * time.Millisecond)
	if st := h.session.Snapshot(); st.Reference.ActiveBeat != 2 {
		t.Errorf("active beat at 1.1s = %d, want 2", st.Reference.ActiveBeat)
	}
}
