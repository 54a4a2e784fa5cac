// Package preset persists metronome setups as YAML
package preset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lixenwraith/polymetro/core"
	"github.com/lixenwraith/polymetro/engine"
	"github.com/lixenwraith/polymetro/parameter"
	"github.com/lixenwraith/polymetro/rhythm"
	"github.com/lixenwraith/polymetro/tempo"
)

// Preset is the on-disk form of a session: tempo, reference and polyrhythms
// Fields omitted from a file take the session defaults
type Preset struct {
	Name         string       `yaml:"name,omitempty"`
	Tempo        float64      `yaml:"tempo"`
	MasterVolume float64      `yaml:"master_volume"`
	Reference    Reference    `yaml:"reference"`
	Polyrhythms  []Polyrhythm `yaml:"polyrhythms,omitempty"`
}

// Reference is the reference pulse section
type Reference struct {
	Beats      int     `yaml:"beats"`
	Volume     float64 `yaml:"volume"`
	Muted      bool    `yaml:"muted,omitempty"`
	MutedBeats []int   `yaml:"muted_beats,flow,omitempty"`
}

// Polyrhythm is one entry of the polyrhythms list
// Pitch 0 selects the palette pitch for the track's id
type Polyrhythm struct {
	Ratio      int     `yaml:"ratio"`
	Volume     float64 `yaml:"volume"`
	Pitch      float64 `yaml:"pitch,omitempty"`
	Muted      bool    `yaml:"muted,omitempty"`
	Solo       bool    `yaml:"solo,omitempty"`
	MutedBeats []int   `yaml:"muted_beats,flow,omitempty"`
}

// Default returns 120 BPM over a 4-beat reference with no polyrhythms
func Default() *Preset {
	return &Preset{
		Tempo:        parameter.DefaultBPM,
		MasterVolume: parameter.DefaultMasterVolume,
		Reference:    defaultReference(),
	}
}

func defaultReference() Reference {
	return Reference{
		Beats:  parameter.DefaultBeatsPerCycle,
		Volume: parameter.DefaultReferenceVolume,
	}
}

func defaultPolyrhythm() Polyrhythm {
	return Polyrhythm{
		Ratio:  parameter.DefaultPolyrhythmRatio,
		Volume: parameter.DefaultPolyrhythmVolume,
	}
}

// UnmarshalYAML fills omitted fields with defaults
// List entries are decoded fresh, so defaults cannot be pre-seeded as for the top level
func (t *Polyrhythm) UnmarshalYAML(n *yaml.Node) error {
	type plain Polyrhythm
	v := plain(defaultPolyrhythm())
	if err := n.Decode(&v); err != nil {
		return err
	}
	*t = Polyrhythm(v)
	return nil
}

// Decode reads and validates a preset
func Decode(r io.Reader) (*Preset, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	// Decoding over the defaults keeps every omitted field
	p := Default()
	if err := dec.Decode(p); err != nil {
		if errors.Is(err, io.EOF) {
			return p, nil
		}
		return nil, fmt.Errorf("decode preset: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Load reads a preset file
func Load(path string) (*Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read preset: %w", err)
	}
	p, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Encode writes p as YAML
func (p *Preset) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("encode preset: %w", err)
	}
	return enc.Close()
}

// Save validates p and writes it to path
func (p *Preset) Save(path string) error {
	if err := p.Validate(); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := p.Encode(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write preset: %w", err)
	}
	return nil
}

// Validate checks every value against the session limits
func (p *Preset) Validate() error {
	if err := tempo.Validate(p.Tempo); err != nil {
		return err
	}
	if err := rhythm.ValidateVolume(p.MasterVolume); err != nil {
		return fmt.Errorf("master %w", err)
	}
	if err := p.referenceConfig().Validate(); err != nil {
		return fmt.Errorf("reference: %w", err)
	}
	for i, t := range p.Polyrhythms {
		cfg := t.config()
		if cfg.Pitch == 0 {
			cfg.Pitch = parameter.ReferencePitch
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("polyrhythm %d: %w", i+1, err)
		}
	}
	return nil
}

func (p *Preset) referenceConfig() rhythm.ReferenceConfig {
	return rhythm.ReferenceConfig{
		BeatsPerCycle: p.Reference.Beats,
		Volume:        p.Reference.Volume,
		Muted:         p.Reference.Muted,
		MutedBeats:    append([]int(nil), p.Reference.MutedBeats...),
	}
}

func (t Polyrhythm) config() rhythm.PolyrhythmConfig {
	return rhythm.PolyrhythmConfig{
		Ratio:      t.Ratio,
		Volume:     t.Volume,
		Pitch:      t.Pitch,
		Muted:      t.Muted,
		Solo:       t.Solo,
		MutedBeats: append([]int(nil), t.MutedBeats...),
	}
}

// SessionConfig overlays the preset's tempo, master volume and reference on base
func (p *Preset) SessionConfig(base engine.Config) engine.Config {
	base.BPM = p.Tempo
	base.MasterVolume = p.MasterVolume
	base.Reference = p.referenceConfig()
	return base
}

// PolyrhythmConfigs returns the polyrhythm entries as track configs
func (p *Preset) PolyrhythmConfigs() []rhythm.PolyrhythmConfig {
	out := make([]rhythm.PolyrhythmConfig, len(p.Polyrhythms))
	for i, t := range p.Polyrhythms {
		out[i] = t.config()
	}
	return out
}

// Populate adds the preset's polyrhythms to s, returning their ids in order
// Stops at the first rejected track; tracks added before it remain
func (p *Preset) Populate(s *engine.Session) ([]core.TrackID, error) {
	ids := make([]core.TrackID, 0, len(p.Polyrhythms))
	for i, cfg := range p.PolyrhythmConfigs() {
		id, err := s.AddPolyrhythmWithConfig(cfg)
		if err != nil {
			return ids, fmt.Errorf("polyrhythm %d: %w", i+1, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// FromSession captures the current configuration of s
func FromSession(s *engine.Session) *Preset {
	st := s.Snapshot()
	ref := s.ReferenceConfig()

	p := &Preset{
		Tempo:        st.BPM,
		MasterVolume: st.MasterVolume,
		Reference: Reference{
			Beats:      ref.BeatsPerCycle,
			Volume:     ref.Volume,
			Muted:      ref.Muted,
			MutedBeats: ref.MutedBeats,
		},
	}
	for _, c := range s.PolyrhythmConfigs() {
		p.Polyrhythms = append(p.Polyrhythms, Polyrhythm{
			Ratio:      c.Ratio,
			Volume:     c.Volume,
			Pitch:      c.Pitch,
			Muted:      c.Muted,
			Solo:       c.Solo,
			MutedBeats: c.MutedBeats,
		})
	}
	return p
}
