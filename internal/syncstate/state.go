package syncstate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bep/debounce"

	"github.com/himanishpuri/klok/internal/history"
	"github.com/himanishpuri/klok/internal/sampler"
	"github.com/himanishpuri/klok/internal/viewport"
	"github.com/himanishpuri/klok/pkg/models"
)

const (
	// DefaultWindowSpan is the visible span, in seconds, after a track change.
	DefaultWindowSpan = 10.0
	// DefaultFollowLead keeps the playhead a quarter into the window.
	DefaultFollowLead = 0.25
	// DefaultSaveDelay batches offset writes while the user nudges lyrics.
	DefaultSaveDelay = 500 * time.Millisecond
)

var (
	ErrNoSource     = errors.New("no pitch source configured")
	ErrNoTrack      = errors.New("no track selected")
	ErrInvalidIndex = errors.New("lyric index out of range")
)

// Loader fetches the resources of a track.
type Loader interface {
	LoadMetadata(ctx context.Context, url string) (models.Metadata, error)
	LoadAudio(ctx context.Context, url string) (models.AudioSource, error)
	LoadNotes(ctx context.Context, url string) ([]models.MidiNote, error)
}

// OffsetStore persists lyric deltas per track.
type OffsetStore interface {
	LoadOffsets(trackID string) (models.LyricOffsets, error)
	SaveOffsets(trackID string, offsets models.LyricOffsets) error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}

type Option func(*State)

func WithLogger(log Logger) Option {
	return func(s *State) {
		if log != nil {
			s.log = log
		}
	}
}

func WithOffsetStore(store OffsetStore) Option {
	return func(s *State) {
		s.offsets = store
	}
}

// WithSource enables sampling from src.
func WithSource(src sampler.Source) Option {
	return func(s *State) {
		s.source = src
	}
}

func WithHistoryCapacity(n int) Option {
	return func(s *State) {
		s.historyCap = n
	}
}

func WithSampleInterval(d time.Duration) Option {
	return func(s *State) {
		s.interval = d
	}
}

func WithScoreOptions(opts models.ScoreOptions) Option {
	return func(s *State) {
		s.scoreOpts = opts
	}
}

func WithSaveDelay(d time.Duration) Option {
	return func(s *State) {
		s.saveDelay = d
	}
}

// State is the playback session: the active track, its lyrics and notes,
// the time cursor, lyric deltas and the visible window. It owns the pitch
// history and the sampler feeding it.
type State struct {
	mu sync.RWMutex

	log        Logger
	loader     Loader
	offsets    OffsetStore
	source     sampler.Source
	sampler    *sampler.Sampler
	hist       *history.PitchHistory
	historyCap int
	interval   time.Duration
	scoreOpts  models.ScoreOptions
	saveDelay  time.Duration
	save       func(func())

	gen      uint64
	loading  bool
	trackID  string
	trackURL string

	currentTime float64
	duration    float64

	metadata *models.Metadata
	audio    *models.AudioSource
	lyrics   []models.LyricLine
	notes    []models.MidiNote
	score    *models.ScoreResult

	globalDelta float64
	deltas      map[int]float64
	deltasDirty bool

	window    viewport.Window
	follow    bool
	lead      float64
	noteRange *viewport.NoteRange
}

func New(loader Loader, opts ...Option) *State {
	s := &State{
		log:       nopLogger{},
		loader:    loader,
		scoreOpts: models.DefaultScoreOptions(),
		saveDelay: DefaultSaveDelay,
		deltas:    map[int]float64{},
		window:    viewport.NewWindow(0, DefaultWindowSpan),
		lead:      DefaultFollowLead,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.hist = history.New(s.historyCap)
	if s.source != nil {
		s.sampler = sampler.New(s.source, s.hist,
			sampler.WithLogger(s.log),
			sampler.WithErrorHandler(func(err error) {
				s.log.Debugf("skipped sample: %v", err)
			}),
		)
	}
	if s.saveDelay > 0 {
		s.save = debounce.New(s.saveDelay)
	} else {
		s.save = func(f func()) { f() }
	}
	return s
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}
func (nopLogger) Debugf(string, ...any) {}

// History exposes the pitch buffer.
func (s *State) History() *history.PitchHistory {
	return s.hist
}

func (s *State) TrackID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trackID
}

// SetTime moves the playback cursor. Negative times clamp to 0 and, once the
// duration is known, times past the end clamp to it.
func (s *State) SetTime(t float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !(t > 0) {
		t = 0
	}
	if s.duration > 0 && t > s.duration {
		t = s.duration
	}
	s.currentTime = t
	if s.follow {
		s.window = s.window.Follow(t, s.lead)
	}
}

func (s *State) CurrentTime() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentTime
}

func (s *State) SetDuration(d float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !(d > 0) {
		d = 0
	}
	s.duration = d
	if d > 0 && s.currentTime > d {
		s.currentTime = d
	}
}

func (s *State) Duration() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.duration
}

func (s *State) Metadata() (models.Metadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.metadata == nil {
		return models.Metadata{}, false
	}
	return *s.metadata, true
}

func (s *State) Audio() (models.AudioSource, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.audio == nil {
		return models.AudioSource{}, false
	}
	return *s.audio, true
}

// Notes returns a copy of the reference notes.
func (s *State) Notes() []models.MidiNote {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.MidiNote(nil), s.notes...)
}

// StartSampling begins polling the pitch source. interval <= 0 uses the
// configured interval.
func (s *State) StartSampling(interval time.Duration) error {
	if s.sampler == nil {
		return ErrNoSource
	}
	if s.TrackID() == "" {
		return ErrNoTrack
	}
	if interval <= 0 {
		interval = s.interval
	}
	s.sampler.Start(interval)
	s.log.Infof("sampling started (%s)", s.sampler.Interval())
	return nil
}

func (s *State) StopSampling() {
	if s.sampler == nil {
		return
	}
	s.sampler.Stop()
}

func (s *State) Sampling() bool {
	return s.sampler != nil && s.sampler.Running()
}

func (s *State) SamplerStats() sampler.Stats {
	if s.sampler == nil {
		return sampler.Stats{}
	}
	return s.sampler.Stats()
}

// Close stops sampling and writes pending offsets.
func (s *State) Close() error {
	s.StopSampling()

	s.mu.RLock()
	id, snap := s.trackID, s.offsetsLocked()
	s.mu.RUnlock()

	if s.offsets == nil || id == "" {
		return nil
	}
	return s.offsets.SaveOffsets(id, snap)
}
