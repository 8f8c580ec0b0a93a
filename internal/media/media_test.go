package media

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/himanishpuri/klok/pkg/models"
)

// writeTestMIDI builds a file at 60 bpm so one quarter (960 ticks) is one
// second. Notes: C4 on ch0 [0,1), E4 on ch1 [1,1.5) closed by velocity 0,
// G4 on ch0 [0.5, 2) in a second track.
func writeTestMIDI(t *testing.T) []byte {
	t.Helper()

	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(960)

	var tr0 smf.Track
	tr0.Add(0, smf.MetaTempo(60))
	tr0.Add(0, midi.NoteOn(0, 60, 100))
	tr0.Add(960, midi.NoteOff(0, 60))
	tr0.Add(0, midi.NoteOn(1, 64, 90))
	tr0.Add(480, midi.NoteOn(1, 64, 0))
	tr0.Close(0)
	require.NoError(t, sm.Add(tr0))

	var tr1 smf.Track
	tr1.Add(480, midi.NoteOn(0, 67, 80))
	tr1.Add(1440, midi.NoteOff(0, 67))
	// dangling note-on without an end is dropped
	tr1.Add(0, midi.NoteOn(2, 70, 80))
	tr1.Close(0)
	require.NoError(t, sm.Add(tr1))

	var buf bytes.Buffer
	_, err := sm.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func TestReadNotes(t *testing.T) {
	notes, err := ReadNotes(bytes.NewReader(writeTestMIDI(t)))
	require.NoError(t, err)
	require.Len(t, notes, 3)

	assert.Equal(t, 60, notes[0].Note)
	assert.Equal(t, 0, notes[0].Channel)
	assert.Equal(t, 100, notes[0].Velocity)
	assert.InDelta(t, 0.0, notes[0].Start, 1e-6)
	assert.InDelta(t, 1.0, notes[0].Duration, 1e-6)
	assert.Nil(t, notes[0].Confidence)

	assert.Equal(t, 67, notes[1].Note)
	assert.InDelta(t, 0.5, notes[1].Start, 1e-6)
	assert.InDelta(t, 1.5, notes[1].Duration, 1e-6)

	assert.Equal(t, 64, notes[2].Note)
	assert.Equal(t, 1, notes[2].Channel)
	assert.InDelta(t, 1.0, notes[2].Start, 1e-6)
	assert.InDelta(t, 0.5, notes[2].Duration, 1e-6)
}

func TestReadNotesRejectsSMPTE(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("MThd")
	binary.Write(&buf, binary.BigEndian, uint32(6))
	binary.Write(&buf, binary.BigEndian, uint16(0))
	binary.Write(&buf, binary.BigEndian, uint16(1))
	// -25 fps, 40 ticks per frame
	buf.Write([]byte{0xE7, 0x28})
	buf.WriteString("MTrk")
	binary.Write(&buf, binary.BigEndian, uint32(4))
	buf.Write([]byte{0x00, 0xFF, 0x2F, 0x00})

	_, err := ReadNotes(&buf)
	assert.ErrorIs(t, err, ErrSMPTE)
}

func TestReadNotesGarbage(t *testing.T) {
	_, err := ReadNotes(strings.NewReader("definitely not midi"))
	assert.Error(t, err)
}

func TestParseLRC(t *testing.T) {
	src := `[ti:Song]
[ar:Some Singer]
[00:12.50]second line
[00:01.00][01:00.00]chorus

[00:05:25]third
not a lyric line
[00:12.50]same time, later in file
`
	lyr, err := ParseLRC(strings.NewReader(src))
	require.NoError(t, err)

	assert.Equal(t, "Some Singer", lyr.Tags["ar"])
	assert.Equal(t, "Song", lyr.Tags["ti"])
	assert.Equal(t, []models.LyricLine{
		{Time: 1, Text: "chorus"},
		{Time: 5.25, Text: "third"},
		{Time: 12.5, Text: "second line"},
		{Time: 12.5, Text: "same time, later in file"},
		{Time: 60, Text: "chorus"},
	}, lyr.Lines)
}

func TestMIMEType(t *testing.T) {
	assert.Equal(t, "audio/mpeg", MIMEType("a.MP3"))
	assert.Equal(t, "audio/mp4", MIMEType("a.m4a"))
	assert.Equal(t, "audio/flac", MIMEType("a.flac"))
	assert.Equal(t, "application/octet-stream", MIMEType("a.xyz"))
}

// writeWAV writes a silent 16-bit mono PCM file of the given length. info,
// when set, goes into a LIST chunk ahead of the data.
func writeWAV(t *testing.T, path string, rate, seconds int, info string) {
	t.Helper()
	dataLen := uint32(rate * seconds * 2)

	var list bytes.Buffer
	if info != "" {
		text := info + "\x00"
		if len(text)%2 == 1 {
			text += "\x00"
		}
		var sub bytes.Buffer
		sub.WriteString("INFO")
		sub.WriteString("ISFT")
		binary.Write(&sub, binary.LittleEndian, uint32(len(text)))
		sub.WriteString(text)

		list.WriteString("LIST")
		binary.Write(&list, binary.LittleEndian, uint32(sub.Len()))
		list.Write(sub.Bytes())
	}

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, 36+uint32(list.Len())+dataLen)
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(rate))
	binary.Write(&buf, binary.LittleEndian, uint32(rate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.Write(list.Bytes())
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataLen)
	buf.Write(make([]byte, dataLen))

	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestProbeDurationWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	writeWAV(t, path, 8000, 2, "")

	d, err := ProbeDuration(path)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, d, 1e-6)
}

func TestProbeDurationWAVIgnoresListChunk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tagged.wav")
	writeWAV(t, path, 8000, 3, strings.Repeat("klok test encoder ", 200))

	d, err := ProbeDuration(path)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, d, 1e-6)
}

func TestProbeDurationUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "song.m4a")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := ProbeDuration(path)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func setupLibrary(t *testing.T) *Library {
	t.Helper()
	root := t.TempDir()

	write := func(name string, data []byte) {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), data, 0o644))
	}
	write("song.mp3", []byte("not really mp3"))
	write("song_vocals.mp3", []byte("stem"))
	write("song_non_vocals.mp3", []byte("stem"))
	write("song.lrc", []byte("[ar:Singer]\n[00:03.00]hello\n[00:07.50]world\n"))
	write("song_vocals.mid", writeTestMIDI(t))
	write("other.flac", []byte("flac"))
	write("other.mid", writeTestMIDI(t))
	write("notes.txt", []byte("ignore me"))
	writeWAV(t, filepath.Join(root, "quiet.wav"), 8000, 3, "")
	require.NoError(t, os.Mkdir(filepath.Join(root, "nested.mp3"), 0o755))

	return NewLibrary(root)
}

func TestLibraryPlaylist(t *testing.T) {
	lib := setupLibrary(t)

	items, err := lib.Playlist()
	require.NoError(t, err)
	assert.Equal(t, []models.PlaylistItem{
		{Title: "other", URL: "other.flac"},
		{Title: "quiet", URL: "quiet.wav"},
		{Title: "song", URL: "song.mp3"},
	}, items)

	_, err = NewLibrary(filepath.Join(t.TempDir(), "missing")).Playlist()
	assert.Error(t, err)
}

func TestLibraryMetadata(t *testing.T) {
	lib := setupLibrary(t)

	md, err := lib.Metadata("song.mp3")
	require.NoError(t, err)
	assert.Equal(t, "song", md.Title)
	assert.Equal(t, "Singer", md.Artist)
	assert.Equal(t, "song.mp3", md.URL)
	require.Len(t, md.Lyrics, 2)
	// audio cannot be decoded, so last lyric + 10s
	assert.InDelta(t, 17.5, md.Duration, 1e-9)

	md, err = lib.Metadata("quiet.wav")
	require.NoError(t, err)
	assert.Equal(t, DefaultArtist, md.Artist)
	assert.Equal(t, []models.LyricLine{{Time: 0, Text: "quiet"}, {Time: 1, Text: NoLyricsText}}, md.Lyrics)
	assert.InDelta(t, 3.0, md.Duration, 1e-3)

	_, err = lib.Metadata("missing.lrc")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = lib.Metadata("")
	assert.Error(t, err)
}

func TestLibraryAudio(t *testing.T) {
	lib := setupLibrary(t)

	src, err := lib.Audio("song.mp3")
	require.NoError(t, err)
	assert.Equal(t, "audio/mpeg", src.MIME)
	assert.Equal(t, "data:audio/mpeg;base64,"+base64.StdEncoding.EncodeToString([]byte("not really mp3")), src.DataURL)

	_, err = lib.Audio("nope.mp3")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = lib.Audio("../outside.mp3")
	assert.Error(t, err)
}

func TestLibraryRejectsPathsOutsideRoot(t *testing.T) {
	lib := setupLibrary(t)

	secret := filepath.Join(t.TempDir(), "secret.mp3")
	require.NoError(t, os.WriteFile(secret, []byte("SECRET"), 0o644))

	_, err := lib.Resolve(secret)
	assert.Error(t, err)

	src, err := lib.Audio(secret)
	assert.Error(t, err)
	assert.Empty(t, src.DataURL)

	_, err = lib.Metadata(secret)
	assert.Error(t, err)

	inside, err := lib.Resolve(filepath.Join(lib.Root, "song.mp3"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(lib.Root, "song.mp3"), inside)
}

func TestLibraryNotesPrefersVocals(t *testing.T) {
	lib := setupLibrary(t)

	p, err := lib.NotesPath("song.mp3")
	require.NoError(t, err)
	assert.Equal(t, "song_vocals.mid", filepath.Base(p))

	p, err = lib.NotesPath("other.flac")
	require.NoError(t, err)
	assert.Equal(t, "other.mid", filepath.Base(p))

	notes, err := lib.Notes("song.mp3")
	require.NoError(t, err)
	assert.Len(t, notes, 3)

	_, err = lib.Notes("quiet.wav")
	assert.ErrorIs(t, err, ErrNotFound)
}
