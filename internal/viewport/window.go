package viewport

import (
	"math"

	"github.com/himanishpuri/klok/pkg/models"
	"github.com/himanishpuri/klok/pkg/utils"
)

// Epsilon is the minimum window span in seconds.
const Epsilon = 0.001

// Window is the visible time range in seconds. Right > Left always holds for
// windows built with NewWindow.
type Window struct {
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
}

// NewWindow orders the bounds and floors the span to Epsilon.
func NewWindow(left, right float64) Window {
	if !utils.Finite(left) {
		left = 0
	}
	if !utils.Finite(right) {
		right = left
	}
	if right < left {
		left, right = right, left
	}
	if right-left < Epsilon {
		right = left + Epsilon
	}
	return Window{Left: left, Right: right}
}

func (w Window) Span() float64 {
	return math.Max(w.Right-w.Left, Epsilon)
}

// Contains reports whether t lies in [Left, Right].
func (w Window) Contains(t float64) bool {
	return t >= w.Left && t <= w.Right
}

// Intersects reports whether [start, end] overlaps the window. Touching
// counts as overlap.
func (w Window) Intersects(start, end float64) bool {
	if end < start {
		start, end = end, start
	}
	return end >= w.Left && start <= w.Right
}

// Shift moves the window by d seconds keeping its span.
func (w Window) Shift(d float64) Window {
	return NewWindow(w.Left+d, w.Right+d)
}

// Zoom scales the span by factor around anchor. factor < 1 zooms in.
func (w Window) Zoom(factor, anchor float64) Window {
	if !(factor > 0) || math.IsInf(factor, 0) {
		return w
	}
	left := anchor - (anchor-w.Left)*factor
	right := anchor + (w.Right-anchor)*factor
	return NewWindow(left, right)
}

// Follow returns a window of the same span placing t at fraction lead of it.
func (w Window) Follow(t, lead float64) Window {
	lead = utils.Clamp(lead, 0, 1)
	span := w.Span()
	left := t - span*lead
	return NewWindow(left, left+span)
}

// NoteRange is the visible pitch range in MIDI keys.
type NoteRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// DefaultRange is used when there are no notes to derive a range from.
var DefaultRange = NoteRange{Min: 48, Max: 72}

// RangeOf spans the notes with one semitone of headroom on each side,
// clamped to the MIDI key range.
func RangeOf(notes []models.MidiNote) NoteRange {
	if len(notes) == 0 {
		return DefaultRange
	}
	lo, hi := notes[0].Note, notes[0].Note
	for _, n := range notes[1:] {
		lo = utils.MinOf(lo, n.Note)
		hi = utils.MaxOf(hi, n.Note)
	}
	return NewRange(lo-1, hi+1)
}

// NewRange orders and clamps the bounds to [0,127].
func NewRange(lo, hi int) NoteRange {
	if hi < lo {
		lo, hi = hi, lo
	}
	return NoteRange{Min: utils.Clamp(lo, 0, 127), Max: utils.Clamp(hi, 0, 127)}
}

// Span is floored to one semitone.
func (r NoteRange) Span() float64 {
	return math.Max(float64(r.Max-r.Min), 1)
}

// VisibleRange returns the half-open index range [from, to) of notes that
// intersect w. notes must be sorted by start.
func VisibleRange(notes []models.MidiNote, w Window) (from, to int) {
	from, to = -1, -1
	for i, n := range notes {
		if !w.Intersects(n.Start, n.End()) {
			continue
		}
		if from < 0 {
			from = i
		}
		to = i + 1
	}
	if from < 0 {
		return 0, 0
	}
	return from, to
}
