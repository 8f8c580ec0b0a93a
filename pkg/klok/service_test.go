package klok

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/himanishpuri/klok/internal/sampler"
	"github.com/himanishpuri/klok/internal/syncstate"
	"github.com/himanishpuri/klok/pkg/logger"
	"github.com/himanishpuri/klok/pkg/models"
)

const testLRC = "[ar:Singer]\n[ti:Song]\n[00:00.00]one\n[00:02.00]two\n"

func writeMIDI(t *testing.T, path string) {
	t.Helper()

	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(960)

	var tr smf.Track
	tr.Add(0, smf.MetaTempo(60))
	tr.Add(0, midi.NoteOn(0, 60, 100))
	tr.Add(960, midi.NoteOff(0, 60))
	tr.Add(960, midi.NoteOn(0, 62, 100))
	tr.Add(960, midi.NoteOff(0, 62))
	tr.Close(0)
	require.NoError(t, sm.Add(tr))

	var buf bytes.Buffer
	_, err := sm.WriteTo(&buf)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

// setupResDir lays out one track with lyrics, a vocal transcription and a
// separated stem that the playlist must hide.
func setupResDir(t *testing.T) string {
	t.Helper()

	res := filepath.Join(t.TempDir(), "res")
	require.NoError(t, os.MkdirAll(res, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(res, "song.flac"), []byte("fLaC"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(res, "song_vocals.flac"), []byte("fLaC"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(res, "song.lrc"), []byte(testLRC), 0o644))
	writeMIDI(t, filepath.Join(res, "song_vocals.mid"))
	return res
}

func newTestService(t *testing.T, res, dbPath string, src sampler.Source) Service {
	t.Helper()

	svc, err := NewService(
		WithResDir(res),
		WithDBPath(dbPath),
		WithLogger(logger.Discard()),
		WithPitchSource(src),
		WithSampleInterval(10*time.Millisecond),
		WithSaveDelay(0),
	)
	require.NoError(t, err)
	return svc
}

func steadyPitch(midiNote float64, at float64) sampler.Source {
	return sampler.SourceFunc(func(context.Context) (models.PitchSample, error) {
		return models.PitchSample{Midi: midiNote, Time: at}, nil
	})
}

func selectAndWait(t *testing.T, svc Service, url string) string {
	t.Helper()

	id, ch, err := svc.SelectTrack(context.Background(), url)
	require.NoError(t, err)
	select {
	case r := <-ch:
		require.NoError(t, r.Err())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out loading track")
	}
	return id
}

func TestPlaylistSkipsStems(t *testing.T) {
	res := setupResDir(t)
	svc := newTestService(t, res, filepath.Join(t.TempDir(), "klok.sqlite3"), steadyPitch(60, 0.5))
	defer svc.Close()

	items, err := svc.Playlist()
	require.NoError(t, err)
	assert.Equal(t, []models.PlaylistItem{{Title: "song", URL: "song.flac"}}, items)
}

func TestSelectTrackRecordsTrack(t *testing.T) {
	res := setupResDir(t)
	svc := newTestService(t, res, filepath.Join(t.TempDir(), "klok.sqlite3"), steadyPitch(60, 0.5))
	defer svc.Close()

	id := selectAndWait(t, svc, "song.flac")

	snap := svc.Session().Snapshot()
	assert.Equal(t, id, snap.TrackID)
	assert.Equal(t, "Singer", snap.Artist)
	assert.Equal(t, 2, snap.NoteCount)
	assert.Equal(t, 2, snap.LyricCount)
	assert.True(t, snap.HasAudio)

	track, err := svc.GetTrack(id)
	require.NoError(t, err)
	assert.Equal(t, "song.flac", track.URL)
	assert.Equal(t, 12000, track.DurationMs)

	tracks, err := svc.Tracks()
	require.NoError(t, err)
	assert.Len(t, tracks, 1)

	_, err = svc.GetTrack("missing")
	assert.True(t, errors.Is(err, ErrTrackNotFound))

	_, _, err = svc.SelectTrack(context.Background(), "nope.mp3")
	assert.True(t, errors.Is(err, ErrTrackNotFound))
	_, _, err = svc.SelectTrack(context.Background(), "../escape.mp3")
	assert.Error(t, err)
}

func TestResourceLookups(t *testing.T) {
	res := setupResDir(t)
	svc := newTestService(t, res, filepath.Join(t.TempDir(), "klok.sqlite3"), steadyPitch(60, 0.5))
	defer svc.Close()

	md, err := svc.Metadata(context.Background(), "song.flac")
	require.NoError(t, err)
	assert.Equal(t, "song", md.Title)
	assert.InDelta(t, 12, md.Duration, 1e-9)

	notes, err := svc.Notes(context.Background(), "song.flac")
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.InDelta(t, 2.0, notes[1].Start, 1e-6)

	audio, err := svc.Audio(context.Background(), "song.flac")
	require.NoError(t, err)
	assert.Equal(t, "audio/flac", audio.MIME)
	assert.Contains(t, audio.DataURL, "data:audio/flac;base64,")
}

func TestOffsetsSurviveRestart(t *testing.T) {
	res := setupResDir(t)
	dbPath := filepath.Join(t.TempDir(), "klok.sqlite3")

	svc := newTestService(t, res, dbPath, steadyPitch(60, 0.5))
	selectAndWait(t, svc, "song.flac")
	require.NoError(t, svc.Session().SetDelta(1, -0.4))
	svc.Session().SetGlobalDelta(0.2)
	require.NoError(t, svc.Close())

	svc = newTestService(t, res, dbPath, steadyPitch(60, 0.5))
	defer svc.Close()
	selectAndWait(t, svc, "song.flac")

	off := svc.Session().Offsets()
	assert.InDelta(t, 0.2, off.Global, 1e-9)
	assert.InDelta(t, -0.4, off.PerIndex[1], 1e-9)
	eff, ok := svc.Session().EffectiveTime(1)
	require.True(t, ok)
	assert.InDelta(t, 1.8, eff, 1e-9)
}

func TestSamplingFeedsScore(t *testing.T) {
	res := setupResDir(t)
	svc := newTestService(t, res, filepath.Join(t.TempDir(), "klok.sqlite3"), steadyPitch(60, 0.5))
	defer svc.Close()

	selectAndWait(t, svc, "song.flac")
	session := svc.Session()
	require.NoError(t, session.StartSampling(0))
	assert.Eventually(t, func() bool { return session.History().Len() >= 3 }, time.Second, 5*time.Millisecond)
	session.StopSampling()

	res2 := session.Score()
	require.Len(t, res2.PerNote, 2)
	assert.InDelta(t, 1, res2.PerNote[0].Score, 1e-9)
	assert.Equal(t, 0, res2.PerNote[1].SampleCount)
	assert.InDelta(t, 0.5, res2.Overall, 1e-9)

	snap := session.Snapshot()
	require.NotNil(t, snap.Overall)
	assert.False(t, snap.Sampling)
}

func TestNoPitchSource(t *testing.T) {
	svc, err := NewService(
		WithResDir(setupResDir(t)),
		WithDBPath(filepath.Join(t.TempDir(), "klok.sqlite3")),
		WithLogger(logger.Discard()),
		WithPitchURL(""),
	)
	require.NoError(t, err)
	defer svc.Close()

	assert.ErrorIs(t, svc.Session().StartSampling(0), syncstate.ErrNoSource)
}
