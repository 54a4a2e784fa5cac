package core

// Command is a single playback request emitted by the scheduler
// Time is in renderer clock seconds
type Command struct {
	Track    TrackID
	Time     float64
	Pitch    float64
	Volume   float64
	Beat     int
	Downbeat bool
}
