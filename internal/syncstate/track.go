package syncstate

import (
	"context"
	"fmt"

	"github.com/himanishpuri/klok/internal/media"
	"github.com/himanishpuri/klok/internal/viewport"
	"github.com/himanishpuri/klok/pkg/models"
)

type Stage string

const (
	StageMetadata Stage = "metadata"
	StageAudio    Stage = "audio"
	StageNotes    Stage = "notes"
	StageOffsets  Stage = "offsets"
)

// LoadReport is delivered once a track load finishes. Stale is set when a
// newer track was selected meanwhile and the results were dropped.
type LoadReport struct {
	TrackID    string
	Generation uint64
	Errors     map[Stage]error
	Stale      bool
}

func (r LoadReport) Err() error {
	for _, st := range []Stage{StageMetadata, StageAudio, StageNotes, StageOffsets} {
		if err := r.Errors[st]; err != nil {
			return fmt.Errorf("%s: %w", st, err)
		}
	}
	return nil
}

// SetTrack switches the session to a new track. Sampling stops and all
// derived state is cleared before this returns; metadata, audio and notes
// then load in the background in that order. A failing stage does not stop
// the next one. The channel receives a single report.
func (s *State) SetTrack(ctx context.Context, id, url string) <-chan LoadReport {
	s.StopSampling()

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.trackID = id
	s.trackURL = url
	s.loading = true
	s.resetLocked()
	s.mu.Unlock()

	s.hist.Reset()
	s.log.Infof("track changed to %s (%s)", id, url)

	ch := make(chan LoadReport, 1)
	go s.load(ctx, gen, id, url, ch)
	return ch
}

func (s *State) resetLocked() {
	s.currentTime = 0
	s.duration = 0
	s.metadata = nil
	s.audio = nil
	s.lyrics = nil
	s.notes = nil
	s.score = nil
	s.globalDelta = 0
	s.deltas = map[int]float64{}
	s.deltasDirty = false
	s.window = viewport.NewWindow(0, s.window.Span())
}

// apply runs fn under the lock unless a newer track took over.
func (s *State) apply(gen uint64, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return false
	}
	fn()
	return true
}

func (s *State) load(ctx context.Context, gen uint64, id, url string, ch chan<- LoadReport) {
	report := LoadReport{TrackID: id, Generation: gen, Errors: map[Stage]error{}}
	fresh := true

	// 1. Metadata and lyrics
	if err := ctx.Err(); err != nil {
		report.Errors[StageMetadata] = err
	} else if md, err := s.loader.LoadMetadata(ctx, url); err != nil {
		report.Errors[StageMetadata] = err
		s.log.Warnf("loading metadata for %s: %v", url, err)
	} else {
		lyrics := append([]models.LyricLine(nil), md.Lyrics...)
		media.SortLyrics(lyrics)
		md.Lyrics = lyrics
		fresh = s.apply(gen, func() {
			s.metadata = &md
			s.lyrics = lyrics
			if s.duration == 0 && md.Duration > 0 {
				s.duration = md.Duration
			}
		}) && fresh
	}

	// 2. Audio
	if err := ctx.Err(); err != nil {
		report.Errors[StageAudio] = err
	} else if src, err := s.loader.LoadAudio(ctx, url); err != nil {
		report.Errors[StageAudio] = err
		s.log.Warnf("loading audio for %s: %v", url, err)
	} else {
		fresh = s.apply(gen, func() { s.audio = &src }) && fresh
	}

	// 3. Notes
	if err := ctx.Err(); err != nil {
		report.Errors[StageNotes] = err
	} else if notes, err := s.loader.LoadNotes(ctx, url); err != nil {
		report.Errors[StageNotes] = err
		s.log.Warnf("loading notes for %s: %v", url, err)
	} else {
		fresh = s.apply(gen, func() {
			s.notes = notes
			s.score = nil
		}) && fresh
		s.log.Debugf("loaded %d notes for %s", len(notes), url)
	}

	// 4. Stored lyric deltas, unless the user already edited them
	if s.offsets != nil && id != "" {
		if stored, err := s.offsets.LoadOffsets(id); err != nil {
			report.Errors[StageOffsets] = err
			s.log.Warnf("loading offsets for %s: %v", id, err)
		} else {
			fresh = s.apply(gen, func() {
				if s.deltasDirty {
					return
				}
				s.globalDelta = stored.Global
				s.deltas = map[int]float64{}
				for i, d := range stored.PerIndex {
					if d != 0 && i >= 0 {
						s.deltas[i] = d
					}
				}
			}) && fresh
		}
	}

	fresh = s.apply(gen, func() { s.loading = false }) && fresh

	report.Stale = !fresh
	if report.Stale {
		s.log.Debugf("dropped stale load of %s", url)
	}
	ch <- report
	close(ch)
}
