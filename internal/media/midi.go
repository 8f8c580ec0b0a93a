package media

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/himanishpuri/klok/pkg/models"
)

var ErrSMPTE = errors.New("SMPTE time formats are not supported")

type noteKey struct {
	channel uint8
	key     uint8
}

type openNote struct {
	tick     int64
	velocity uint8
}

type tickEvent struct {
	tick int64
	msg  smf.Message
}

// ReadNotesFile loads the notes of a standard MIDI file.
func ReadNotesFile(path string) ([]models.MidiNote, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading midi file: %w", err)
	}
	return ReadNotes(bytes.NewReader(data))
}

// ReadNotes pairs note-on and note-off events per (channel, key) across all
// tracks and converts ticks to seconds through the tempo map. A note-on with
// velocity 0 ends a note. Notes are returned sorted by start.
func ReadNotes(r io.Reader) (notes []models.MidiNote, err error) {
	// gomidi can panic on malformed input
	defer func() {
		if rec := recover(); rec != nil {
			notes = nil
			err = fmt.Errorf("parsing midi: %v", rec)
		}
	}()

	s, err := smf.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("parsing midi: %w", err)
	}
	if _, ok := s.TimeFormat.(smf.MetricTicks); !ok {
		return nil, ErrSMPTE
	}

	var events []tickEvent
	for _, track := range s.Tracks {
		var abs int64
		for _, ev := range track {
			abs += int64(ev.Delta)
			events = append(events, tickEvent{tick: abs, msg: ev.Message})
		}
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].tick < events[j].tick })

	seconds := func(tick int64) float64 {
		return float64(s.TimeAt(tick)) / 1e6
	}

	open := make(map[noteKey]openNote)
	closeNote := func(k noteKey, tick int64) {
		on, ok := open[k]
		if !ok {
			return
		}
		delete(open, k)
		start := seconds(on.tick)
		notes = append(notes, models.MidiNote{
			Note:     int(k.key),
			Start:    start,
			Duration: seconds(tick) - start,
			Velocity: int(on.velocity),
			Channel:  int(k.channel),
		})
	}

	for _, ev := range events {
		var ch, key, vel uint8
		switch {
		case ev.msg.GetNoteOn(&ch, &key, &vel):
			k := noteKey{channel: ch, key: key}
			if vel == 0 {
				closeNote(k, ev.tick)
				continue
			}
			open[k] = openNote{tick: ev.tick, velocity: vel}
		case ev.msg.GetNoteOff(&ch, &key, &vel):
			closeNote(noteKey{channel: ch, key: key}, ev.tick)
		}
	}

	sort.SliceStable(notes, func(i, j int) bool { return notes[i].Start < notes[j].Start })
	return notes, nil
}
