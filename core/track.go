package core

import "strconv"

// TrackID identifies a track within a session
// The reference track is always ReferenceTrackID; polyrhythms are numbered from 1
type TrackID int

// ReferenceTrackID is the fixed id of the reference pulse
const ReferenceTrackID TrackID = 0

// IsReference reports whether id names the reference track
func (id TrackID) IsReference() bool {
	return id == ReferenceTrackID
}

func (id TrackID) String() string {
	if id == ReferenceTrackID {
		return "ref"
	}
	return "poly" + strconv.Itoa(int(id))
}

// SoundHandle is an opaque reference to a decoded sound owned by the renderer
// Zero value means no sound is loaded
type SoundHandle uint32

// SoundNone is the zero handle
const SoundNone SoundHandle = 0
