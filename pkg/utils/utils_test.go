package utils

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoteName(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("C4", NoteName(60))
	assert.Equal("A4", NoteName(69))
	assert.Equal("C-1", NoteName(0))
	assert.Equal("G9", NoteName(127))
	assert.Equal("C#4", NoteNameFloat(60.6))
	assert.Equal("", NoteNameFloat(math.NaN()))
}

func TestClamp(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(0.0, Clamp(-1.5, 0, 1))
	assert.Equal(1.0, Clamp(3.0, 0, 1))
	assert.Equal(64, Clamp(64, 0, 127))
	assert.Equal(127, Clamp(200, 0, 127))
}

func TestPathHelpers(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("song", Stem("/res/song.mp3"))
	assert.Equal("/res/song.lrc", WithExtension("/res/song.mp3", ".lrc"))
	assert.Equal("/res/song_vocals.mid", WithSuffix("/res/song.mp3", "_vocals", ".mid"))

	root := t.TempDir()
	got, err := ResolveUnder(root, "a/b.mp3")
	assert.NoError(err)
	assert.Equal(filepath.Join(root, "a", "b.mp3"), got)

	_, err = ResolveUnder(root, "../escape.mp3")
	assert.Error(err)

	inside := filepath.Join(root, "a", "c.mp3")
	got, err = ResolveUnder(root, inside)
	assert.NoError(err)
	assert.Equal(inside, got)

	_, err = ResolveUnder(root, filepath.Join(filepath.Dir(root), "other", "secret.mp3"))
	assert.Error(err)
	_, err = ResolveUnder(root, root+"-sibling/x.mp3")
	assert.Error(err)
}

func TestTrackIDIsStable(t *testing.T) {
	assert.Equal(t, TrackID("song.mp3"), TrackID("song.mp3"))
	assert.NotEqual(t, TrackID("song.mp3"), TrackID("other.mp3"))
}

func TestSourceName(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("My Song", SourceName("https://youtu.be/abc123", "My Song!"))
	assert.Equal("abc123", SourceName("https://youtu.be/abc123", ""))
	assert.Equal("dQw4w9WgXcQ", SourceName("https://www.youtube.com/watch?v=dQw4w9WgXcQ", ""))
	assert.Equal("track", SourceName("https://example.com/files/track.mp3", ""))
}
