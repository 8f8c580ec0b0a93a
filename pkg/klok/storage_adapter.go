package klok

import (
	"context"
	"errors"
	"math"

	"github.com/himanishpuri/klok/internal/media"
	"github.com/himanishpuri/klok/pkg/klok/storage"
	"github.com/himanishpuri/klok/pkg/models"
)

var ErrTrackNotFound = errors.New("track not found")

// storageAdapter maps storage errors onto the package's own.
type storageAdapter struct {
	*storage.DBClient
}

// NewSQLiteStorage creates a new SQLite storage backend.
func NewSQLiteStorage(dbPath string) (Storage, error) {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return &storageAdapter{DBClient: db}, nil
}

func (s *storageAdapter) GetTrack(id string) (models.Track, error) {
	t, err := s.DBClient.GetTrack(id)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Track{}, ErrTrackNotFound
	}
	return t, err
}

func (s *storageAdapter) DeleteTrack(id string) error {
	err := s.DBClient.DeleteTrack(id)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrTrackNotFound
	}
	return err
}

// libraryLoader serves track resources from the media library and records
// each track in storage once its metadata is known.
type libraryLoader struct {
	lib     *media.Library
	storage Storage
	log     Logger
}

func (l *libraryLoader) LoadMetadata(ctx context.Context, url string) (models.Metadata, error) {
	md, err := l.lib.Metadata(url)
	if err != nil {
		return models.Metadata{}, err
	}
	if l.storage != nil {
		ms := int(math.Round(md.Duration * 1000))
		if _, err := l.storage.UpsertTrack(md.Title, md.Artist, url, ms); err != nil {
			l.log.Warnf("Failed to record track %s: %v", url, err)
		}
	}
	return md, nil
}

func (l *libraryLoader) LoadAudio(ctx context.Context, url string) (models.AudioSource, error) {
	return l.lib.Audio(url)
}

func (l *libraryLoader) LoadNotes(ctx context.Context, url string) ([]models.MidiNote, error) {
	return l.lib.Notes(url)
}
