// Package export renders metronome sessions to Standard MIDI Files
package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/lixenwraith/polymetro/core"
	"github.com/lixenwraith/polymetro/engine"
	"github.com/lixenwraith/polymetro/rhythm"
)

// General MIDI percussion
const (
	DrumChannel = 9

	keyReferenceDownbeat = 76 // Hi Wood Block
	keyReferenceBeat     = 77 // Low Wood Block

	// DefaultResolution is ticks per quarter note; one reference beat is a quarter
	DefaultResolution = 960
)

// polyrhythmKeys is assigned round-robin by track id
var polyrhythmKeys = [...]uint8{
	37, // Side Stick
	56, // Cowbell
	75, // Claves
	42, // Closed Hi-Hat
	54, // Tambourine
	81, // Open Triangle
	80, // Mute Triangle
	39, // Hand Clap
}

// Options controls rendering
type Options struct {
	Cycles     int
	Resolution uint16
	Channel    uint8
}

// DefaultOptions renders four cycles on the GM drum channel
func DefaultOptions() Options {
	return Options{
		Cycles:     4,
		Resolution: DefaultResolution,
		Channel:    DrumChannel,
	}
}

// Summary describes a written file
type Summary struct {
	Tracks   int
	Notes    int
	Duration float64 // seconds
}

// KeyFor returns the percussion key used for a track's beat
func KeyFor(id core.TrackID, downbeat bool) uint8 {
	if id.IsReference() {
		if downbeat {
			return keyReferenceDownbeat
		}
		return keyReferenceBeat
	}
	return polyrhythmKeys[(int(id)-1)%len(polyrhythmKeys)]
}

// Velocity maps linear gain to a MIDI velocity; audible commands never map to 0
func Velocity(volume float64) uint8 {
	v := math.Round(volume * 127)
	if v < 1 {
		return 1
	}
	if v > 127 {
		return 127
	}
	return uint8(v)
}

// Render runs a session offline for the given number of reference cycles and
// returns every command timed before the end of the last cycle
func Render(cfg engine.Config, polys []rhythm.PolyrhythmConfig, cycles int) ([]core.Command, error) {
	if cycles < 1 {
		return nil, fmt.Errorf("cycles must be positive, got %d", cycles)
	}

	r := engine.NewOfflineRenderer()
	tk := engine.NewManualTicker()
	s, err := engine.NewSession(cfg, r, tk, nil)
	if err != nil {
		return nil, err
	}
	s.SetSound(1)
	for i, pc := range polys {
		if _, err := s.AddPolyrhythmWithConfig(pc); err != nil {
			return nil, fmt.Errorf("polyrhythm %d: %w", i+1, err)
		}
	}

	if err := s.Start(context.Background()); err != nil {
		return nil, err
	}
	end := float64(cycles*cfg.Reference.BeatsPerCycle) * 60 / cfg.BPM

	step := cfg.TickInterval
	if step <= 0 {
		step = cfg.LookAhead / 4
	}
	engine.Drive(r, tk, time.Duration(end*float64(time.Second))+step, step)
	s.Stop()

	// Half a microsecond tolerance keeps the next cycle's downbeat out
	limit := end - 5e-7
	var out []core.Command
	for _, c := range r.Played() {
		if c.Time < limit {
			out = append(out, c)
		}
	}
	return out, nil
}

// noteEvent is a note-on at an absolute tick
type noteEvent struct {
	tick     uint32
	key      uint8
	velocity uint8
}

// Build converts commands into an SMF with a tempo track and one track per metronome track
func Build(cmds []core.Command, bpm float64, beatsPerCycle int, end float64, opts Options) (*smf.SMF, Summary, error) {
	if opts.Resolution == 0 {
		opts.Resolution = DefaultResolution
	}
	ticksPerSecond := bpm / 60 * float64(opts.Resolution)
	toTick := func(t float64) uint32 {
		return uint32(math.Round(t * ticksPerSecond))
	}
	endTick := toTick(end)

	byTrack := make(map[core.TrackID][]noteEvent)
	for _, c := range cmds {
		byTrack[c.Track] = append(byTrack[c.Track], noteEvent{
			tick:     toTick(c.Time),
			key:      KeyFor(c.Track, c.Downbeat),
			velocity: Velocity(c.Volume),
		})
	}
	ids := make([]core.TrackID, 0, len(byTrack))
	for id := range byTrack {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(opts.Resolution)

	var tempoTrack smf.Track
	tempoTrack.Add(0, smf.MetaMeter(uint8(beatsPerCycle), 4))
	tempoTrack.Add(0, smf.MetaTempo(bpm))
	tempoTrack.Close(endTick)
	if err := sm.Add(tempoTrack); err != nil {
		return nil, Summary{}, fmt.Errorf("add tempo track: %w", err)
	}

	sum := Summary{Duration: end}
	noteLen := uint32(opts.Resolution / 16)
	for _, id := range ids {
		events := byTrack[id]
		sort.SliceStable(events, func(i, j int) bool { return events[i].tick < events[j].tick })

		var tr smf.Track
		var last uint32
		for i, ev := range events {
			off := ev.tick + noteLen
			if i+1 < len(events) && events[i+1].tick < off {
				off = events[i+1].tick
			}
			if off == ev.tick {
				off++
			}
			tr.Add(ev.tick-last, midi.NoteOn(opts.Channel, ev.key, ev.velocity))
			tr.Add(off-ev.tick, midi.NoteOff(opts.Channel, ev.key))
			last = off
		}
		var tail uint32
		if endTick > last {
			tail = endTick - last
		}
		tr.Close(tail)
		if err := sm.Add(tr); err != nil {
			return nil, Summary{}, fmt.Errorf("add track %s: %w", id, err)
		}
		sum.Tracks++
		sum.Notes += len(events)
	}
	return sm, sum, nil
}

// WriteSMF renders cfg and polys for opts.Cycles cycles and writes the file to w
func WriteSMF(w io.Writer, cfg engine.Config, polys []rhythm.PolyrhythmConfig, opts Options) (Summary, error) {
	cmds, err := Render(cfg, polys, opts.Cycles)
	if err != nil {
		return Summary{}, err
	}
	end := float64(opts.Cycles*cfg.Reference.BeatsPerCycle) * 60 / cfg.BPM
	sm, sum, err := Build(cmds, cfg.BPM, cfg.Reference.BeatsPerCycle, end, opts)
	if err != nil {
		return Summary{}, err
	}
	if _, err := sm.WriteTo(w); err != nil {
		return Summary{}, fmt.Errorf("write midi: %w", err)
	}
	return sum, nil
}

// WriteFile is WriteSMF to a path
func WriteFile(path string, cfg engine.Config, polys []rhythm.PolyrhythmConfig, opts Options) (Summary, error) {
	var buf bytes.Buffer
	sum, err := WriteSMF(&buf, cfg, polys, opts)
	if err != nil {
		return Summary{}, err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return Summary{}, fmt.Errorf("write midi: %w", err)
	}
	return sum, nil
}
