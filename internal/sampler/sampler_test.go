package sampler

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/klok/internal/history"
	"github.com/himanishpuri/klok/pkg/models"
)

func counterSource() (Source, *atomic.Int64) {
	var n atomic.Int64
	return SourceFunc(func(ctx context.Context) (models.PitchSample, error) {
		i := n.Add(1)
		return models.PitchSample{PitchHz: 440, Midi: 69, NoteName: "A4", Time: float64(i)}, nil
	}), &n
}

func TestStartAppendsSamples(t *testing.T) {
	src, _ := counterSource()
	s := New(src, history.New(100))

	s.Start(5 * time.Millisecond)
	require.Eventually(t, func() bool { return s.History().Len() >= 3 }, time.Second, 5*time.Millisecond)
	s.Stop()

	snap := s.History().Snapshot()
	for i := 1; i < len(snap); i++ {
		assert.Less(t, snap[i-1].Time, snap[i].Time)
	}
	st := s.Stats()
	assert.Equal(t, st.Appended, uint64(len(snap)))
	assert.Zero(t, st.Failures)
}

func TestStartDefaultsInterval(t *testing.T) {
	src, _ := counterSource()
	s := New(src, nil)

	s.Start(0)
	assert.Equal(t, DefaultInterval, s.Interval())
	assert.True(t, s.Running())
	s.Stop()
	assert.Equal(t, history.DefaultCapacity, s.History().Cap())
}

func TestStopIsIdempotent(t *testing.T) {
	src, _ := counterSource()
	s := New(src, nil)

	s.Stop()
	s.Start(time.Millisecond)
	s.Stop()
	s.Stop()
	assert.False(t, s.Running())
	assert.Zero(t, s.Interval())
}

func TestStartWhileRunningRestarts(t *testing.T) {
	src, _ := counterSource()
	s := New(src, nil)

	s.Start(time.Hour)
	s.Start(5 * time.Millisecond)
	defer s.Stop()

	assert.Equal(t, 5*time.Millisecond, s.Interval())
	require.Eventually(t, func() bool { return s.History().Len() > 0 }, time.Second, 5*time.Millisecond)
}

func TestNoAppendsAfterStop(t *testing.T) {
	src, calls := counterSource()
	s := New(src, nil)

	s.Start(time.Millisecond)
	require.Eventually(t, func() bool { return calls.Load() > 2 }, time.Second, time.Millisecond)
	s.Stop()

	n := s.History().Len()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, s.History().Len())
}

func TestStopDiscardsInFlightFetch(t *testing.T) {
	started := make(chan struct{}, 1)
	var sawCancel atomic.Bool

	src := SourceFunc(func(ctx context.Context) (models.PitchSample, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		if !errors.Is(ctx.Err(), context.Canceled) {
			return models.PitchSample{}, ctx.Err()
		}
		sawCancel.Store(true)
		// a late but otherwise valid reading
		return models.PitchSample{PitchHz: 440, Midi: 69, Time: 1}, nil
	})

	s := New(src, nil)
	s.Start(200 * time.Millisecond)

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected a fetch to start")
	}
	s.Stop()

	assert.True(t, sawCancel.Load())
	assert.Zero(t, s.History().Len())
	assert.Zero(t, s.Stats().Appended)
	assert.Zero(t, s.Stats().Failures)
}

func TestFailedTicksAreSkipped(t *testing.T) {
	boom := errors.New("boom")
	var calls atomic.Int64
	src := SourceFunc(func(ctx context.Context) (models.PitchSample, error) {
		switch calls.Add(1) % 3 {
		case 0:
			return models.PitchSample{PitchHz: 440, Midi: 69, Time: 1}, nil
		case 1:
			return models.PitchSample{}, boom
		default:
			return models.PitchSample{Midi: math.NaN(), Time: 1}, nil
		}
	})

	var observed atomic.Int64
	s := New(src, nil, WithErrorHandler(func(err error) {
		if errors.Is(err, boom) || errors.Is(err, ErrInvalidSample) {
			observed.Add(1)
		}
	}))

	s.Start(time.Millisecond)
	require.Eventually(t, func() bool { return calls.Load() >= 6 }, time.Second, time.Millisecond)
	s.Stop()

	st := s.Stats()
	// a tick cut short by Stop counts as neither
	assert.LessOrEqual(t, st.Appended+st.Failures, st.Ticks)
	assert.Equal(t, uint64(observed.Load()), st.Failures)
	assert.Equal(t, int(st.Appended), s.History().Len())
	assert.GreaterOrEqual(t, st.Failures, uint64(4))
}

func TestSlowFetchIsBoundedByInterval(t *testing.T) {
	src := SourceFunc(func(ctx context.Context) (models.PitchSample, error) {
		<-ctx.Done()
		return models.PitchSample{}, ctx.Err()
	})
	var failures atomic.Int64
	s := New(src, nil, WithErrorHandler(func(err error) {
		if errors.Is(err, context.DeadlineExceeded) {
			failures.Add(1)
		}
	}))

	s.Start(5 * time.Millisecond)
	require.Eventually(t, func() bool { return failures.Load() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()
}
