package syncstate

import (
	"github.com/himanishpuri/klok/internal/sampler"
	"github.com/himanishpuri/klok/internal/scoring"
	"github.com/himanishpuri/klok/internal/viewport"
	"github.com/himanishpuri/klok/pkg/models"
)

func (s *State) View() viewport.Window {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.window
}

// SetView sets the visible window and turns follow mode off.
func (s *State) SetView(left, right float64) viewport.Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.window = viewport.NewWindow(left, right)
	s.follow = false
	return s.window
}

func (s *State) Scroll(d float64) viewport.Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.window = s.window.Shift(d)
	s.follow = false
	return s.window
}

// Zoom scales the window around the playhead in follow mode, otherwise
// around the window center.
func (s *State) Zoom(factor float64) viewport.Window {
	s.mu.Lock()
	defer s.mu.Unlock()

	anchor := s.window.Left + s.window.Span()/2
	if s.follow {
		anchor = s.currentTime
	}
	s.window = s.window.Zoom(factor, anchor)
	return s.window
}

// SetFollow keeps the playhead at fraction lead of the window while on.
// lead outside [0,1] keeps the previous lead.
func (s *State) SetFollow(on bool, lead float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.follow = on
	if lead >= 0 && lead <= 1 {
		s.lead = lead
	}
	if on {
		s.window = s.window.Follow(s.currentTime, s.lead)
	}
}

// SetNoteRange pins the vertical range. nil derives it from the notes.
func (s *State) SetNoteRange(r *viewport.NoteRange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r == nil {
		s.noteRange = nil
		return
	}
	nr := viewport.NewRange(r.Min, r.Max)
	s.noteRange = &nr
}

func (s *State) rangeLocked() viewport.NoteRange {
	if s.noteRange != nil {
		return *s.noteRange
	}
	return viewport.RangeOf(s.notes)
}

// ActiveNotes is the half-open index range of notes inside the window.
func (s *State) ActiveNotes() (from, to int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return viewport.VisibleRange(s.notes, s.window)
}

// Score scores the reference notes against the pitch history and caches
// the result until the next track change.
func (s *State) Score() models.ScoreResult {
	s.mu.RLock()
	gen, notes, opts := s.gen, s.notes, s.scoreOpts
	s.mu.RUnlock()

	res := scoring.ScoreNotes(notes, s.hist.Snapshot(), opts)

	s.apply(gen, func() { s.score = &res })
	return res
}

// LastScore returns the cached result of the last Score call.
func (s *State) LastScore() (models.ScoreResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.score == nil {
		return models.ScoreResult{}, false
	}
	return *s.score, true
}

// Frame projects the session onto a width x height canvas. Cached scores
// color the notes when present.
func (s *State) Frame(width, height float64) viewport.Frame {
	s.mu.RLock()
	notes := s.notes
	win := s.window
	rng := s.rangeLocked()
	now := s.currentTime
	var scores []models.NoteScore
	if s.score != nil {
		scores = s.score.PerNote
	}
	s.mu.RUnlock()

	p := viewport.New(width, height, win, rng)
	return p.Render(notes, s.hist.Snapshot(), scores, now)
}

// Snapshot is a read-only view of the session.
type Snapshot struct {
	TrackID     string              `json:"trackId"`
	TrackURL    string              `json:"trackUrl"`
	Loading     bool                `json:"loading"`
	CurrentTime float64             `json:"currentTime"`
	Duration    float64             `json:"duration"`
	Title       string              `json:"title"`
	Artist      string              `json:"artist"`
	HasAudio    bool                `json:"hasAudio"`
	NoteCount   int                 `json:"noteCount"`
	ActiveLyric int                 `json:"activeLyric"`
	LyricCount  int                 `json:"lyricCount"`
	ActiveFrom  int                 `json:"activeFrom"`
	ActiveTo    int                 `json:"activeTo"`
	Window      viewport.Window     `json:"window"`
	Range       viewport.NoteRange  `json:"range"`
	Follow      bool                `json:"follow"`
	Offsets     models.LyricOffsets `json:"offsets"`
	Sampling    bool                `json:"sampling"`
	HistoryLen  int                 `json:"historyLen"`
	Stats       sampler.Stats       `json:"stats"`
	Overall     *float64            `json:"overall,omitempty"`
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	snap := Snapshot{
		TrackID:     s.trackID,
		TrackURL:    s.trackURL,
		Loading:     s.loading,
		CurrentTime: s.currentTime,
		Duration:    s.duration,
		HasAudio:    s.audio != nil,
		NoteCount:   len(s.notes),
		ActiveLyric: s.activeLocked(),
		LyricCount:  len(s.lyrics),
		Window:      s.window,
		Range:       s.rangeLocked(),
		Follow:      s.follow,
		Offsets:     s.offsetsLocked(),
	}
	snap.ActiveFrom, snap.ActiveTo = viewport.VisibleRange(s.notes, s.window)
	if s.metadata != nil {
		snap.Title = s.metadata.Title
		snap.Artist = s.metadata.Artist
	}
	if s.score != nil {
		overall := s.score.Overall
		snap.Overall = &overall
	}
	s.mu.RUnlock()

	snap.Sampling = s.Sampling()
	snap.HistoryLen = s.hist.Len()
	snap.Stats = s.SamplerStats()
	return snap
}
