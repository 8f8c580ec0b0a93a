package klok

import (
	"context"

	"github.com/himanishpuri/klok/internal/syncstate"
	"github.com/himanishpuri/klok/pkg/models"
)

type Service interface {
	Playlist() ([]models.PlaylistItem, error)
	Tracks() ([]models.Track, error)
	GetTrack(id string) (*models.Track, error)
	SelectTrack(ctx context.Context, url string) (string, <-chan syncstate.LoadReport, error)
	Metadata(ctx context.Context, url string) (models.Metadata, error)
	Notes(ctx context.Context, url string) ([]models.MidiNote, error)
	Audio(ctx context.Context, url string) (models.AudioSource, error)
	Session() *syncstate.State
	Close() error
}

type Storage interface {
	UpsertTrack(title, artist, url string, durationMs int) (models.Track, error)
	GetTrack(id string) (models.Track, error)
	ListTracks() ([]models.Track, error)
	DeleteTrack(id string) error
	SaveOffsets(trackID string, offsets models.LyricOffsets) error
	LoadOffsets(trackID string) (models.LyricOffsets, error)
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
