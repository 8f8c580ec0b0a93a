package history

import (
	"sync"

	"github.com/himanishpuri/klok/pkg/models"
)

// DefaultCapacity is the number of samples kept when no capacity is given.
const DefaultCapacity = 500

// PitchHistory is a fixed-capacity FIFO of pitch samples. Once full, every
// Append evicts the oldest entry. Safe for concurrent use.
type PitchHistory struct {
	mu    sync.RWMutex
	buf   []models.PitchSample
	head  int // index of the oldest sample
	count int
}

func New(capacity int) *PitchHistory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &PitchHistory{buf: make([]models.PitchSample, capacity)}
}

// Append adds s and reports whether an older sample was evicted.
func (h *PitchHistory) Append(s models.PitchSample) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	capacity := len(h.buf)
	if h.count < capacity {
		h.buf[(h.head+h.count)%capacity] = s
		h.count++
		return false
	}
	h.buf[h.head] = s
	h.head = (h.head + 1) % capacity
	return true
}

func (h *PitchHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

func (h *PitchHistory) Cap() int {
	return len(h.buf)
}

// Snapshot copies the samples oldest first.
func (h *PitchHistory) Snapshot() []models.PitchSample {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]models.PitchSample, h.count)
	for i := 0; i < h.count; i++ {
		out[i] = h.buf[(h.head+i)%len(h.buf)]
	}
	return out
}

// Last returns the newest sample.
func (h *PitchHistory) Last() (models.PitchSample, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.count == 0 {
		return models.PitchSample{}, false
	}
	return h.buf[(h.head+h.count-1)%len(h.buf)], true
}

// Reset drops all samples and keeps the capacity.
func (h *PitchHistory) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	clear(h.buf)
	h.head = 0
	h.count = 0
}
