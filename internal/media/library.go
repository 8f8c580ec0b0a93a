package media

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/himanishpuri/klok/pkg/models"
	"github.com/himanishpuri/klok/pkg/utils"
)

var ErrNotFound = errors.New("resource not found")

const (
	// DefaultArtist is reported when neither the lyrics nor the catalog name one.
	DefaultArtist = "Unknown"
	// NoLyricsText is the second fallback line for songs without an .lrc.
	NoLyricsText = "No lyrics"
	// VocalsSuffix marks the separated vocal stem and its transcription.
	VocalsSuffix = "_vocals"
)

var skippedSuffixes = []string{"non_vocals", "vocals"}

// Library resolves track resources under a root directory. Paths handed to
// it are relative to Root.
type Library struct {
	Root       string
	Extensions []string
}

func NewLibrary(root string) *Library {
	return &Library{Root: root, Extensions: PlaylistExtensions}
}

// Resolve maps rel to an existing file under Root.
func (l *Library) Resolve(rel string) (string, error) {
	if rel == "" {
		return "", errors.New("path argument is empty")
	}
	p, err := utils.ResolveUnder(l.Root, rel)
	if err != nil {
		return "", err
	}
	if !utils.FileExists(p) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, rel)
	}
	return p, nil
}

// Playlist lists top-level audio files, skipping separated stems.
func (l *Library) Playlist() ([]models.PlaylistItem, error) {
	entries, err := os.ReadDir(l.Root)
	if err != nil {
		return nil, fmt.Errorf("reading resource dir %s: %w", l.Root, err)
	}

	var items []models.PlaylistItem
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		name := e.Name()
		if !l.hasExtension(name) {
			continue
		}
		title := utils.Stem(name)
		if isStem(title) {
			continue
		}
		items = append(items, models.PlaylistItem{Title: title, URL: name})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].URL < items[j].URL })
	return items, nil
}

func (l *Library) hasExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range l.Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

func isStem(title string) bool {
	for _, sfx := range skippedSuffixes {
		if strings.HasSuffix(title, sfx) {
			return true
		}
	}
	return false
}

// Metadata builds the track description: title from the file name, lyrics
// from the sibling .lrc, duration from the audio itself. Passing an .lrc path
// directly requires that file to exist.
func (l *Library) Metadata(rel string) (models.Metadata, error) {
	if rel == "" {
		return models.Metadata{}, errors.New("path argument is empty")
	}
	title := utils.Stem(rel)
	md := models.Metadata{Title: title, Artist: DefaultArtist, URL: rel}

	lrcRel := utils.WithExtension(rel, ".lrc")
	lrcPath, err := l.Resolve(lrcRel)
	switch {
	case err == nil:
		f, err := os.Open(lrcPath)
		if err != nil {
			return models.Metadata{}, fmt.Errorf("failed to read %s: %w", lrcPath, err)
		}
		lyr, err := ParseLRC(f)
		f.Close()
		if err != nil {
			return models.Metadata{}, fmt.Errorf("parsing %s: %w", lrcPath, err)
		}
		md.Lyrics = lyr.Lines
		if ar := lyr.Tags["ar"]; ar != "" {
			md.Artist = ar
		}
	case strings.EqualFold(filepath.Ext(rel), ".lrc"):
		return models.Metadata{}, fmt.Errorf(".lrc file not found for provided path %s: %w", rel, ErrNotFound)
	}

	if len(md.Lyrics) == 0 {
		md.Lyrics = []models.LyricLine{
			{Time: 0, Text: title},
			{Time: 1, Text: NoLyricsText},
		}
	}

	md.Duration = md.Lyrics[len(md.Lyrics)-1].Time + 10
	if audioPath, err := l.Resolve(rel); err == nil {
		if d, err := ProbeDuration(audioPath); err == nil && d > 0 {
			md.Duration = d
		}
	}
	return md, nil
}

// Audio loads the track audio as a data URL.
func (l *Library) Audio(rel string) (models.AudioSource, error) {
	p, err := l.Resolve(rel)
	if err != nil {
		return models.AudioSource{}, err
	}
	src, err := LoadAudio(p)
	if err != nil {
		return models.AudioSource{}, err
	}
	src.URL = rel
	return src, nil
}

// NotesPath finds the transcription for a track: <stem>_vocals.mid first,
// then <stem>.mid.
func (l *Library) NotesPath(rel string) (string, error) {
	if strings.EqualFold(filepath.Ext(rel), ".mid") {
		return l.Resolve(rel)
	}
	for _, cand := range []string{
		utils.WithSuffix(rel, VocalsSuffix, ".mid"),
		utils.WithExtension(rel, ".mid"),
	} {
		if p, err := l.Resolve(cand); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: no midi for %s", ErrNotFound, rel)
}

// Notes loads the reference notes for a track.
func (l *Library) Notes(rel string) ([]models.MidiNote, error) {
	p, err := l.NotesPath(rel)
	if err != nil {
		return nil, err
	}
	return ReadNotesFile(p)
}
