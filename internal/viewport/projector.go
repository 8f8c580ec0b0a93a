package viewport

import (
	"math"
	"sort"

	"github.com/himanishpuri/klok/pkg/models"
	"github.com/himanishpuri/klok/pkg/utils"
)

const (
	// DefaultMargin is the vertical padding shared between top and bottom.
	DefaultMargin = 20.0
	// LabelWidth is the width reserved for the playhead label.
	LabelWidth = 48.0
	// DefaultMaxGap splits the pitch trace when samples are further apart.
	DefaultMaxGap = 1.0
)

// Projector maps (time, pitch) into canvas pixels for one window and range.
type Projector struct {
	Width  float64
	Height float64
	Margin float64
	Window Window
	Range  NoteRange
}

// New builds a projector. Negative or NaN sizes are treated as zero.
func New(width, height float64, w Window, r NoteRange) *Projector {
	return &Projector{
		Width:  nonNegative(width),
		Height: nonNegative(height),
		Margin: DefaultMargin,
		Window: NewWindow(w.Left, w.Right),
		Range:  NewRange(r.Min, r.Max),
	}
}

func nonNegative(v float64) float64 {
	if !(v > 0) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func (p *Projector) margin() float64 {
	return utils.Clamp(nonNegative(p.Margin), 0, p.Height)
}

// TimeToX clamps t into the window before scaling to the width.
func (p *Projector) TimeToX(t float64) float64 {
	if math.IsNaN(t) {
		t = p.Window.Left
	}
	f := (t - p.Window.Left) / p.Window.Span()
	return utils.Clamp(f, 0, 1) * p.Width
}

// NoteToY puts higher pitches nearer the top.
func (p *Projector) NoteToY(m float64) float64 {
	if math.IsNaN(m) {
		m = float64(p.Range.Min)
	}
	f := 1 - (m-float64(p.Range.Min))/p.Range.Span()
	margin := p.margin()
	return utils.Clamp(f, 0, 1)*(p.Height-margin) + margin/2
}

// RowHeight is the pixel height of one semitone.
func (p *Projector) RowHeight() float64 {
	return (p.Height - p.margin()) / p.Range.Span()
}

type NoteRect struct {
	Index  int      `json:"index"`
	Note   int      `json:"note"`
	X      float64  `json:"x"`
	Y      float64  `json:"y"`
	Width  float64  `json:"width"`
	Height float64  `json:"height"`
	Score  *float64 `json:"score,omitempty"`
}

// NoteRects projects notes that overlap the window. Notes partly outside are
// clipped at the window edges.
func (p *Projector) NoteRects(notes []models.MidiNote) []NoteRect {
	rects := make([]NoteRect, 0, len(notes))
	row := p.RowHeight()
	for i, n := range notes {
		end := utils.MaxOf(n.End(), n.Start+Epsilon)
		if !p.Window.Intersects(n.Start, end) {
			continue
		}
		x0 := p.TimeToX(n.Start)
		x1 := p.TimeToX(end)
		cy := p.NoteToY(float64(n.Note))
		top := utils.Clamp(cy-row/2, 0, p.Height)
		bottom := utils.Clamp(cy+row/2, 0, p.Height)
		rects = append(rects, NoteRect{
			Index:  i,
			Note:   n.Note,
			X:      x0,
			Y:      top,
			Width:  x1 - x0,
			Height: bottom - top,
		})
	}
	return rects
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// TraceSegments turns pitch samples into polylines. A new segment starts when
// consecutive samples are more than maxGap seconds apart or when a sample has
// no pitch. Segments outside the window are dropped; the rest keep one point
// on either side of the window so lines run to the edge.
func (p *Projector) TraceSegments(samples []models.PitchSample, maxGap float64) [][]Point {
	if !(maxGap > 0) {
		maxGap = DefaultMaxGap
	}

	sorted := make([]models.PitchSample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })

	var segments [][]models.PitchSample
	var cur []models.PitchSample
	flush := func() {
		if len(cur) > 0 {
			segments = append(segments, cur)
		}
		cur = nil
	}
	for _, s := range sorted {
		if !s.Valid() {
			flush()
			continue
		}
		if len(cur) > 0 && s.Time-cur[len(cur)-1].Time > maxGap {
			flush()
		}
		cur = append(cur, s)
	}
	flush()

	var out [][]Point
	for _, seg := range segments {
		if !p.Window.Intersects(seg[0].Time, seg[len(seg)-1].Time) {
			continue
		}
		from, to := 0, len(seg)
		for from+1 < len(seg) && seg[from+1].Time <= p.Window.Left {
			from++
		}
		for to-1 > from && seg[to-2].Time >= p.Window.Right {
			to--
		}
		pts := make([]Point, 0, to-from)
		for _, s := range seg[from:to] {
			pts = append(pts, Point{X: p.TimeToX(s.Time), Y: p.NoteToY(s.Midi)})
		}
		out = append(out, pts)
	}
	return out
}

type Playhead struct {
	Time   float64 `json:"time"`
	X      float64 `json:"x"`
	LabelX float64 `json:"labelX"`
}

// Playhead reports where the cursor for t sits, or false when t is outside
// the window.
func (p *Projector) Playhead(t float64) (Playhead, bool) {
	if !p.Window.Contains(t) {
		return Playhead{}, false
	}
	x := p.TimeToX(t)
	labelX := utils.Clamp(x, 0, math.Max(0, p.Width-LabelWidth))
	return Playhead{Time: t, X: x, LabelX: labelX}, true
}

type GridLine struct {
	Note  int     `json:"note"`
	Y     float64 `json:"y"`
	Label string  `json:"label"`
}

// GridLines marks every C (multiples of 12) inside the note range.
func (p *Projector) GridLines() []GridLine {
	var lines []GridLine
	first := (p.Range.Min + 11) / 12 * 12
	for m := first; m <= p.Range.Max; m += 12 {
		lines = append(lines, GridLine{Note: m, Y: p.NoteToY(float64(m)), Label: utils.NoteName(m)})
	}
	return lines
}

// Frame is everything needed to draw one view.
type Frame struct {
	Width      float64    `json:"width"`
	Height     float64    `json:"height"`
	Window     Window     `json:"window"`
	Range      NoteRange  `json:"range"`
	Notes      []NoteRect `json:"notes"`
	Trace      [][]Point  `json:"trace"`
	Grid       []GridLine `json:"grid"`
	Playhead   *Playhead  `json:"playhead,omitempty"`
	ActiveFrom int        `json:"activeFrom"`
	ActiveTo   int        `json:"activeTo"`
}

// Render builds a Frame. scores may be nil or shorter than notes.
func (p *Projector) Render(notes []models.MidiNote, samples []models.PitchSample, scores []models.NoteScore, now float64) Frame {
	rects := p.NoteRects(notes)
	for i := range rects {
		if idx := rects[i].Index; idx < len(scores) {
			s := scores[idx].Score
			rects[i].Score = &s
		}
	}

	from, to := VisibleRange(notes, p.Window)
	f := Frame{
		Width:      p.Width,
		Height:     p.Height,
		Window:     p.Window,
		Range:      p.Range,
		Notes:      rects,
		Trace:      p.TraceSegments(samples, DefaultMaxGap),
		Grid:       p.GridLines(),
		ActiveFrom: from,
		ActiveTo:   to,
	}
	if ph, ok := p.Playhead(now); ok {
		f.Playhead = &ph
	}
	return f
}
