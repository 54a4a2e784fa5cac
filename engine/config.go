package engine

import (
	"fmt"
	"time"

	"github.com/lixenwraith/polymetro/core"
	"github.com/lixenwraith/polymetro/parameter"
	"github.com/lixenwraith/polymetro/rhythm"
	"github.com/lixenwraith/polymetro/tempo"
)

// Config holds session construction parameters
type Config struct {
	BPM          float64
	MasterVolume float64
	Reference    rhythm.ReferenceConfig

	// TickInterval is informational for the tick source owner; the session never sleeps
	TickInterval time.Duration
	LookAhead    time.Duration
	ResyncLead   time.Duration

	// Clock feeds the tap estimator; nil means wall time
	Clock core.Clock
}

// DefaultConfig returns 120 BPM, a 4-beat reference and the default scheduling window
func DefaultConfig() Config {
	return Config{
		BPM:          parameter.DefaultBPM,
		MasterVolume: parameter.DefaultMasterVolume,
		Reference:    rhythm.DefaultReferenceConfig(),
		TickInterval: parameter.DefaultTickInterval,
		LookAhead:    parameter.DefaultLookAhead,
		ResyncLead:   parameter.ResyncLead,
	}
}

// Validate checks every field
func (c Config) Validate() error {
	if err := tempo.Validate(c.BPM); err != nil {
		return err
	}
	if err := rhythm.ValidateVolume(c.MasterVolume); err != nil {
		return fmt.Errorf("master %w", err)
	}
	if err := c.Reference.Validate(); err != nil {
		return err
	}
	if c.LookAhead <= 0 {
		return fmt.Errorf("look-ahead must be positive, got %v", c.LookAhead)
	}
	if c.TickInterval > 0 && c.TickInterval >= c.LookAhead {
		return fmt.Errorf("tick interval %v must be shorter than look-ahead %v", c.TickInterval, c.LookAhead)
	}
	if c.ResyncLead < 0 {
		return fmt.Errorf("resync lead must not be negative, got %v", c.ResyncLead)
	}
	return nil
}
