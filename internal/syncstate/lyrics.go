package syncstate

import (
	"maps"

	"github.com/himanishpuri/klok/pkg/models"
)

// Lyric is a lyric line with its delta-adjusted time.
type Lyric struct {
	Index     int     `json:"index"`
	Time      float64 `json:"time"`
	Effective float64 `json:"effective"`
	Delta     float64 `json:"delta"`
	Text      string  `json:"text"`
}

// effectiveLocked is original time + global delta + per-line delta.
func (s *State) effectiveLocked(i int) float64 {
	return s.lyrics[i].Time + s.globalDelta + s.deltas[i]
}

// activeLocked returns the largest index whose effective time has been
// reached, or 0 when none has. Per-line deltas can reorder effective times,
// so every line is considered.
func (s *State) activeLocked() int {
	active := 0
	for i := range s.lyrics {
		if s.effectiveLocked(i) <= s.currentTime {
			active = i
		}
	}
	return active
}

func (s *State) ActiveIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeLocked()
}

func (s *State) EffectiveTime(i int) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.lyrics) {
		return 0, false
	}
	return s.effectiveLocked(i), true
}

func (s *State) Lyrics() []Lyric {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Lyric, len(s.lyrics))
	for i, l := range s.lyrics {
		out[i] = Lyric{
			Index:     i,
			Time:      l.Time,
			Effective: s.effectiveLocked(i),
			Delta:     s.deltas[i],
			Text:      l.Text,
		}
	}
	return out
}

func (s *State) SetGlobalDelta(d float64) {
	s.mu.Lock()
	s.globalDelta = d
	s.deltasDirty = true
	s.scheduleSaveLocked()
	s.mu.Unlock()
}

// SetDelta sets the delta of one lyric line. A zero delta removes the entry.
func (s *State) SetDelta(i int, d float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setDeltaLocked(i, d)
}

// NudgeDelta adds step to the delta of line i.
func (s *State) NudgeDelta(i int, step float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setDeltaLocked(i, s.deltas[i]+step)
}

func (s *State) setDeltaLocked(i int, d float64) error {
	if i < 0 || (s.lyrics != nil && i >= len(s.lyrics)) {
		return ErrInvalidIndex
	}
	if d == 0 {
		delete(s.deltas, i)
	} else {
		s.deltas[i] = d
	}
	s.deltasDirty = true
	s.scheduleSaveLocked()
	return nil
}

func (s *State) ClearDelta(i int) {
	s.mu.Lock()
	delete(s.deltas, i)
	s.deltasDirty = true
	s.scheduleSaveLocked()
	s.mu.Unlock()
}

// ClearDeltas drops every per-line delta and the global delta.
func (s *State) ClearDeltas() {
	s.mu.Lock()
	s.globalDelta = 0
	s.deltas = map[int]float64{}
	s.deltasDirty = true
	s.scheduleSaveLocked()
	s.mu.Unlock()
}

func (s *State) Offsets() models.LyricOffsets {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offsetsLocked()
}

func (s *State) offsetsLocked() models.LyricOffsets {
	return models.LyricOffsets{Global: s.globalDelta, PerIndex: maps.Clone(s.deltas)}
}

// scheduleSaveLocked queues a debounced write of the current deltas. The
// snapshot is taken now so a track switch before the write still lands on
// the right track.
func (s *State) scheduleSaveLocked() {
	if s.offsets == nil || s.trackID == "" {
		return
	}
	id, snap := s.trackID, s.offsetsLocked()
	store, log := s.offsets, s.log
	s.save(func() {
		if err := store.SaveOffsets(id, snap); err != nil {
			log.Warnf("saving offsets for %s: %v", id, err)
		}
	})
}
