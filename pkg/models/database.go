package models

// Track is a catalogued song.
type Track struct {
	ID         string // UUID derived from URL
	Title      string
	Artist     string
	URL        string // path relative to the resource directory
	DurationMs int
}

// GlobalOffsetIndex marks the track-wide lyric delta in stored offsets.
const GlobalOffsetIndex = -1

// LyricOffsets is the persisted form of a track's lyric time deltas.
type LyricOffsets struct {
	Global   float64         `json:"global"`
	PerIndex map[int]float64 `json:"perIndex"`
}
