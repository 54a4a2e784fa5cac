package parameter

// Track shape
const (
	DefaultBeatsPerCycle   = 4
	MinBeatsPerCycle       = 1
	MaxBeatsPerCycle       = 32
	MinRatio               = 2
	MaxRatio               = 32
	DefaultPolyrhythmRatio = 3
)

// Emphasis
const (
	// DownbeatPitchFactor raises the first beat of a cycle
	DownbeatPitchFactor = 1.2
	// OffbeatVolumeFactor attenuates every non-downbeat
	OffbeatVolumeFactor = 0.7
)

// Volumes (0.0-1.0)
const (
	DefaultReferenceVolume  = 1.0
	DefaultPolyrhythmVolume = 0.8
	DefaultMasterVolume     = 0.8
	VolumeStep              = 0.1
)

// ReferencePitch is the pitch multiplier of the reference track
const ReferencePitch = 1.0

// PitchPalette is assigned round-robin to new polyrhythms by id
var PitchPalette = [...]float64{1.2, 0.8, 1.5, 0.67, 1.33, 0.75, 1.25, 1.1}

// PaletteColors matches PitchPalette, used by the terminal launcher for track rows
var PaletteColors = [...]uint32{
	0xFF6B6B, 0x4ECDC4, 0x45B7D1, 0xF9CA24,
	0x6C5CE7, 0xA29BFE, 0xFD79A8, 0x00B894,
}

// PitchForID returns the palette pitch for a polyrhythm id; ids start at 1
func PitchForID(id int) float64 {
	return PitchPalette[paletteIndex(id)]
}

// ColorForID returns the palette color for a polyrhythm id
func ColorForID(id int) uint32 {
	return PaletteColors[paletteIndex(id)]
}

func paletteIndex(id int) int {
	if id < 1 {
		return 0
	}
	return (id - 1) % len(PitchPalette)
}
