package parameter

import "time"

// Terminal launcher
const (
	// FrameInterval is the redraw period (~60 FPS)
	FrameInterval = 16 * time.Millisecond

	// EventBufferSize bounds terminal events waiting for the UI loop
	EventBufferSize = 64

	// DefaultPresetPath is used by the save key when -save is not given
	DefaultPresetPath = "polymetro.yaml"
)

// Beat cell glyphs
const (
	GlyphBeat       = 'o'
	GlyphActiveBeat = '@'
	GlyphMutedBeat  = '.'
)
