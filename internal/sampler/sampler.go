package sampler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/himanishpuri/klok/internal/history"
	"github.com/himanishpuri/klok/pkg/models"
)

// DefaultInterval is used when Start is given a non-positive interval.
const DefaultInterval = 500 * time.Millisecond

var ErrInvalidSample = errors.New("sample has no usable pitch")

// Source fetches the current pitch reading.
type Source interface {
	FetchPitch(ctx context.Context) (models.PitchSample, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (models.PitchSample, error)

func (f SourceFunc) FetchPitch(ctx context.Context) (models.PitchSample, error) {
	return f(ctx)
}

type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Warnf(string, ...any)  {}

type Stats struct {
	Ticks    uint64 `json:"ticks"`
	Appended uint64 `json:"appended"`
	Failures uint64 `json:"failures"`
}

type Option func(*Sampler)

func WithLogger(log Logger) Option {
	return func(s *Sampler) {
		if log != nil {
			s.log = log
		}
	}
}

// WithErrorHandler registers a callback for failed ticks. It runs on the
// sampling goroutine and must not call Stop.
func WithErrorHandler(fn func(error)) Option {
	return func(s *Sampler) {
		s.onError = fn
	}
}

// Sampler polls a Source on a fixed interval and appends each reading to a
// PitchHistory. Failed ticks are skipped.
//
// Stop is immediate: the in-flight fetch is cancelled, any result it still
// returns is dropped, and Stop blocks until the polling goroutine has exited.
// No append happens after Stop returns.
type Sampler struct {
	src     Source
	hist    *history.PitchHistory
	log     Logger
	onError func(error)

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	interval time.Duration

	ticks    atomic.Uint64
	appended atomic.Uint64
	failures atomic.Uint64
}

func New(src Source, hist *history.PitchHistory, opts ...Option) *Sampler {
	if hist == nil {
		hist = history.New(history.DefaultCapacity)
	}
	s := &Sampler{
		src:  src,
		hist: hist,
		log:  nopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sampler) History() *history.PitchHistory {
	return s.hist
}

// Start begins polling. Calling it while running restarts the timer with the
// new interval.
func (s *Sampler) Start(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.interval = interval

	go s.run(ctx, interval, done)
	s.log.Debugf("sampling every %s", interval)
}

// Stop halts polling. Safe to call when not running.
func (s *Sampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Sampler) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
	s.interval = 0
	s.log.Debugf("sampling stopped")
}

func (s *Sampler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Interval returns the active interval, or zero when stopped.
func (s *Sampler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

func (s *Sampler) Stats() Stats {
	return Stats{
		Ticks:    s.ticks.Load(),
		Appended: s.appended.Load(),
		Failures: s.failures.Load(),
	}
}

func (s *Sampler) run(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			s.tick(ctx, interval)
		}
	}
}

// tick fetches one sample. The fetch gets at most one interval so a slow
// source only costs the ticks it overlaps.
func (s *Sampler) tick(ctx context.Context, interval time.Duration) {
	s.ticks.Add(1)

	fetchCtx, cancel := context.WithTimeout(ctx, interval)
	defer cancel()

	sample, err := s.src.FetchPitch(fetchCtx)
	if ctx.Err() != nil {
		return
	}
	if err == nil && !sample.Valid() {
		err = ErrInvalidSample
	}
	if err != nil {
		s.failures.Add(1)
		s.log.Warnf("pitch fetch failed: %v", err)
		if s.onError != nil {
			s.onError(fmt.Errorf("sample tick: %w", err))
		}
		return
	}

	s.hist.Append(sample)
	s.appended.Add(1)
}
