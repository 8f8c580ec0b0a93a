package scoring

import (
	"math"
	"sort"

	"github.com/himanishpuri/klok/pkg/models"
	"github.com/himanishpuri/klok/pkg/utils"
)

// MinSpan is the smallest window, in seconds, a note is given.
const MinSpan = 0.001

// Normalize replaces out-of-range options with their defaults.
func Normalize(opts models.ScoreOptions) models.ScoreOptions {
	def := models.DefaultScoreOptions()
	if !(opts.Tolerance > 0) || math.IsInf(opts.Tolerance, 0) {
		opts.Tolerance = def.Tolerance
	}
	if !(opts.Margin >= 0) || math.IsInf(opts.Margin, 0) {
		opts.Margin = def.Margin
	}
	if opts.MinSamples < 1 {
		opts.MinSamples = def.MinSamples
	}
	return opts
}

// Window returns the inclusive time range whose samples are credited to n.
func Window(n models.MidiNote, margin float64) (lo, hi float64) {
	dur := n.Duration
	if !(dur >= MinSpan) {
		dur = MinSpan
	}
	lo = math.Max(0, n.Start-margin)
	hi = n.Start + dur + margin
	return lo, hi
}

// SampleScore maps a semitone error onto [0,1].
func SampleScore(err, tolerance float64) float64 {
	return math.Max(0, 1-err/tolerance)
}

// ScoreNotes scores every note against the samples that fall in its window.
// The result has one entry per note in input order. Never fails: missing
// samples give a zero score and no notes give an overall of zero.
func ScoreNotes(notes []models.MidiNote, history []models.PitchSample, opts models.ScoreOptions) models.ScoreResult {
	opts = Normalize(opts)

	samples := usable(history)

	result := models.ScoreResult{
		PerNote: make([]models.NoteScore, len(notes)),
		Options: opts,
	}

	var weighted, totalWeight float64
	for i, n := range notes {
		ns := scoreNote(i, n, samples, opts)
		result.PerNote[i] = ns

		w := 1.0
		if opts.WeightByDuration {
			w = math.Max(0, n.Duration)
			if !utils.Finite(w) {
				w = 0
			}
		}
		weighted += ns.Score * w
		totalWeight += w
	}

	if totalWeight > 0 {
		result.Overall = utils.Clamp(weighted/totalWeight, 0, 1)
	}
	return result
}

// usable drops samples without a finite pitch or time and sorts by time.
func usable(history []models.PitchSample) []models.PitchSample {
	out := make([]models.PitchSample, 0, len(history))
	for _, s := range history {
		if s.Valid() {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}

func scoreNote(idx int, n models.MidiNote, samples []models.PitchSample, opts models.ScoreOptions) models.NoteScore {
	ns := models.NoteScore{
		Index:    idx,
		Note:     n.Note,
		Start:    n.Start,
		Duration: n.Duration,
	}

	lo, hi := Window(n, opts.Margin)
	first := sort.Search(len(samples), func(i int) bool { return samples[i].Time >= lo })

	var errSum, scoreSum float64
	count := 0
	for _, s := range samples[first:] {
		if s.Time > hi {
			break
		}
		e := math.Abs(s.Midi - float64(n.Note))
		errSum += e
		scoreSum += SampleScore(e, opts.Tolerance)
		count++
	}

	if count == 0 {
		return ns
	}

	mean := errSum / float64(count)
	raw := scoreSum / float64(count)
	confidence := math.Min(1, float64(count)/float64(opts.MinSamples))

	ns.MeanError = &mean
	ns.SampleCount = count
	ns.Score = utils.Clamp(raw*confidence, 0, 1)
	return ns
}
