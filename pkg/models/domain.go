package models

import "math"

// MidiNote is one reference note from the transcription. Times are seconds.
type MidiNote struct {
	Note       int      `json:"note"`     // MIDI key, 0-127
	Start      float64  `json:"start"`    // onset in seconds
	Duration   float64  `json:"duration"` // seconds
	Velocity   int      `json:"velocity"`
	Channel    int      `json:"channel"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// End returns Start + Duration.
func (n MidiNote) End() float64 {
	return n.Start + n.Duration
}

// PitchSample is a single reading from the pitch detector.
type PitchSample struct {
	PitchHz  float64 `json:"pitch"`
	Midi     float64 `json:"midi"` // fractional MIDI pitch
	NoteName string  `json:"note"`
	Time     float64 `json:"time"` // playback seconds at capture
}

// Valid reports whether the sample carries a usable pitch reading.
func (p PitchSample) Valid() bool {
	return !math.IsNaN(p.Midi) && !math.IsInf(p.Midi, 0) &&
		!math.IsNaN(p.Time) && !math.IsInf(p.Time, 0)
}

// NoteScore is the derived score for one reference note.
type NoteScore struct {
	Index       int      `json:"index"`
	Note        int      `json:"note"`
	Start       float64  `json:"start"`
	Duration    float64  `json:"duration"`
	Score       float64  `json:"score"`                // 0..1
	MeanError   *float64 `json:"meanError,omitempty"` // semitones, nil when no samples
	SampleCount int      `json:"sampleCount"`
}

// ScoreResult holds per-note scores in input order plus the aggregate.
type ScoreResult struct {
	PerNote []NoteScore  `json:"perNote"`
	Overall float64      `json:"overall"`
	Options ScoreOptions `json:"options"`
}

// ScoreOptions tunes the scorer.
type ScoreOptions struct {
	Tolerance        float64 `json:"tolerance"`  // semitones at which a sample scores 0
	Margin           float64 `json:"margin"`     // seconds added on both sides of a note
	MinSamples       int     `json:"minSamples"` // samples needed for full confidence
	WeightByDuration bool    `json:"weightByDuration"`
}

func DefaultScoreOptions() ScoreOptions {
	return ScoreOptions{
		Tolerance:        2,
		Margin:           0.06,
		MinSamples:       1,
		WeightByDuration: true,
	}
}

// LyricLine is a timed lyric line.
type LyricLine struct {
	Time float64 `json:"time"`
	Text string  `json:"text"`
}

// Metadata describes a loaded track.
type Metadata struct {
	Title    string      `json:"title"`
	Artist   string      `json:"artist"`
	URL      string      `json:"url"`
	Duration float64     `json:"duration"`
	Lyrics   []LyricLine `json:"lyrics"`
}

// AudioSource is playable audio, either as a path or an inline data URL.
type AudioSource struct {
	URL     string `json:"url"`
	MIME    string `json:"mime"`
	DataURL string `json:"dataUrl,omitempty"`
}

// PlaylistItem is one entry found in the resource directory.
type PlaylistItem struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}
