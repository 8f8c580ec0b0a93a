package main

import (
	"errors"
	"fmt"

	"github.com/himanishpuri/klok/internal/syncstate"
	"github.com/himanishpuri/klok/internal/viewport"
	"github.com/himanishpuri/klok/pkg/models"
)

const (
	// MaxFrameSize bounds the canvas accepted by GET /api/session/frame
	MaxFrameSize = 8192

	DefaultFrameWidth  = 1200
	DefaultFrameHeight = 400

	// MinSampleIntervalMs keeps clients from hammering the pitch service
	MinSampleIntervalMs = 20
)

// SelectTrackRequest is the request body for POST /api/session/track
type SelectTrackRequest struct {
	URL string `json:"url"`
}

func (r *SelectTrackRequest) Validate() error {
	if r.URL == "" {
		return fmt.Errorf("url is required")
	}
	return nil
}

// SelectTrackResponse is returned while the track loads in the background
type SelectTrackResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
	URL     string `json:"url"`
}

// SetTimeRequest is the request body for PUT /api/session/time
type SetTimeRequest struct {
	Time     *float64 `json:"time"`
	Duration *float64 `json:"duration,omitempty"`
}

func (r *SetTimeRequest) Validate() error {
	if r.Time == nil && r.Duration == nil {
		return fmt.Errorf("time or duration is required")
	}
	return nil
}

// StartSamplingRequest is the optional body for POST /api/session/sampling/start
type StartSamplingRequest struct {
	IntervalMs int `json:"interval_ms,omitempty"`
}

func (r *StartSamplingRequest) Validate() error {
	if r.IntervalMs != 0 && r.IntervalMs < MinSampleIntervalMs {
		return fmt.Errorf("interval_ms must be at least %d", MinSampleIntervalMs)
	}
	return nil
}

// ViewRequest is the request body for PUT /api/session/view. Exactly one
// kind of change is applied: an explicit window, a scroll, a zoom or a
// follow toggle.
type ViewRequest struct {
	Left   *float64 `json:"left,omitempty"`
	Right  *float64 `json:"right,omitempty"`
	Scroll *float64 `json:"scroll,omitempty"`
	Zoom   *float64 `json:"zoom,omitempty"`
	Follow *bool    `json:"follow,omitempty"`
	Lead   *float64 `json:"lead,omitempty"`
}

func (r *ViewRequest) Validate() error {
	n := 0
	if r.Left != nil || r.Right != nil {
		if r.Left == nil || r.Right == nil {
			return errors.New("left and right must be given together")
		}
		n++
	}
	if r.Scroll != nil {
		n++
	}
	if r.Zoom != nil {
		if *r.Zoom <= 0 {
			return errors.New("zoom must be positive")
		}
		n++
	}
	if r.Follow != nil {
		n++
	}
	if n != 1 {
		return errors.New("exactly one of window, scroll, zoom or follow is required")
	}
	return nil
}

// OffsetRequest is the request body for PUT /api/session/offsets. Without
// an index the global delta is set. Step nudges instead of replacing.
type OffsetRequest struct {
	Index *int     `json:"index,omitempty"`
	Delta *float64 `json:"delta,omitempty"`
	Step  *float64 `json:"step,omitempty"`
}

func (r *OffsetRequest) Validate() error {
	if (r.Delta == nil) == (r.Step == nil) {
		return errors.New("exactly one of delta or step is required")
	}
	if r.Step != nil && r.Index == nil {
		return errors.New("step requires an index")
	}
	return nil
}

// TrackDTO represents a catalogued track in API responses
type TrackDTO struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	URL        string `json:"url"`
	DurationMs int    `json:"duration_ms"`
}

func toTrackDTO(t models.Track) TrackDTO {
	return TrackDTO{
		ID:         t.ID,
		Title:      t.Title,
		Artist:     t.Artist,
		URL:        t.URL,
		DurationMs: t.DurationMs,
	}
}

// ListTracksResponse is the response for GET /api/tracks
type ListTracksResponse struct {
	Tracks []TrackDTO `json:"tracks"`
	Count  int        `json:"count"`
}

// PlaylistResponse is the response for GET /api/playlist
type PlaylistResponse struct {
	Items []models.PlaylistItem `json:"items"`
	Count int                   `json:"count"`
}

// NotesResponse is the response for GET /api/media/notes
type NotesResponse struct {
	Notes []NoteDTO `json:"notes"`
	Count int       `json:"count"`
}

// NoteDTO adds the note name to a reference note
type NoteDTO struct {
	models.MidiNote
	Name string `json:"name"`
}

// LyricsResponse is the response for GET /api/session/lyrics
type LyricsResponse struct {
	Lines  []syncstate.Lyric   `json:"lines"`
	Active int                 `json:"active"`
	Offset models.LyricOffsets `json:"offsets"`
}

// ViewResponse is returned by view changes
type ViewResponse struct {
	Window     viewport.Window `json:"window"`
	ActiveFrom int             `json:"active_from"`
	ActiveTo   int             `json:"active_to"`
}

// MetricsResponse provides server health and session metrics
type MetricsResponse struct {
	Status       string `json:"status"`
	DatabasePath string `json:"database_path"`
	ResourceDir  string `json:"resource_dir"`
	PitchURL     string `json:"pitch_url,omitempty"`
	TrackCount   int    `json:"track_count"`
	Sampling     bool   `json:"sampling"`
	HistoryLen   int    `json:"history_len"`
	Ticks        uint64 `json:"ticks"`
	Appended     uint64 `json:"appended"`
	Failures     uint64 `json:"failures"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
