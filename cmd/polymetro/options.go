package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lixenwraith/polymetro/engine"
	"github.com/lixenwraith/polymetro/parameter"
	"github.com/lixenwraith/polymetro/preset"
)

// options is the parsed command line
type options struct {
	bpm       float64
	beats     int
	poly      string
	preset    string
	save      string
	export    string
	cycles    int
	headless  bool
	debug     bool
	tick      time.Duration
	lookAhead time.Duration
}

func parseFlags(fs *flag.FlagSet, args []string) (*options, error) {
	o := &options{}
	fs.Float64Var(&o.bpm, "bpm", 0, "tempo in BPM (10-400), overrides the preset")
	fs.IntVar(&o.beats, "beats", 0, "reference beats per cycle (1-32), overrides the preset")
	fs.StringVar(&o.poly, "poly", "", "comma-separated polyrhythm ratios, e.g. 3,5; replaces preset tracks")
	fs.StringVar(&o.preset, "preset", "", "YAML preset to load")
	fs.StringVar(&o.save, "save", "", "YAML preset written on exit and by the w key")
	fs.StringVar(&o.export, "export", "", "render to a MIDI file and exit")
	fs.IntVar(&o.cycles, "cycles", 4, "reference cycles rendered by -export")
	fs.BoolVar(&o.headless, "headless", false, "play without the terminal UI until interrupted")
	fs.BoolVar(&o.debug, "debug", false, "write logs to "+logDir+"/"+logFileName)
	fs.DurationVar(&o.tick, "tick", parameter.DefaultTickInterval, "scheduler wake-up interval")
	fs.DurationVar(&o.lookAhead, "lookahead", parameter.DefaultLookAhead, "scheduling window")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.cycles < 1 {
		return nil, fmt.Errorf("-cycles must be positive, got %d", o.cycles)
	}
	return o, nil
}

// parseRatios parses "3,5, 7" into ratios; empty input yields none
func parseRatios(s string) ([]int, error) {
	var out []int
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		r, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("polyrhythm ratio %q: %w", f, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// buildPreset loads the preset, if any, and applies flag overrides
func (o *options) buildPreset() (*preset.Preset, error) {
	p := preset.Default()
	if o.preset != "" {
		loaded, err := preset.Load(o.preset)
		if err != nil {
			return nil, err
		}
		p = loaded
	}

	if o.bpm != 0 {
		p.Tempo = o.bpm
	}
	if o.beats != 0 {
		p.Reference.Beats = o.beats
		kept := p.Reference.MutedBeats[:0]
		for _, b := range p.Reference.MutedBeats {
			if b < o.beats {
				kept = append(kept, b)
			}
		}
		p.Reference.MutedBeats = kept
	}
	if o.poly != "" {
		ratios, err := parseRatios(o.poly)
		if err != nil {
			return nil, err
		}
		p.Polyrhythms = p.Polyrhythms[:0]
		for _, r := range ratios {
			p.Polyrhythms = append(p.Polyrhythms, preset.Polyrhythm{
				Ratio:  r,
				Volume: parameter.DefaultPolyrhythmVolume,
			})
		}
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// sessionConfig merges the preset with the scheduling flags
func (o *options) sessionConfig(p *preset.Preset) engine.Config {
	cfg := p.SessionConfig(engine.DefaultConfig())
	cfg.TickInterval = o.tick
	cfg.LookAhead = o.lookAhead
	return cfg
}
