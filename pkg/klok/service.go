package klok

import (
	"context"
	"errors"
	"fmt"

	"github.com/himanishpuri/klok/internal/media"
	"github.com/himanishpuri/klok/internal/sampler"
	"github.com/himanishpuri/klok/internal/syncstate"
	"github.com/himanishpuri/klok/pkg/logger"
	"github.com/himanishpuri/klok/pkg/models"
	"github.com/himanishpuri/klok/pkg/utils"
)

// klokService is the default implementation of the Service interface.
type klokService struct {
	storage Storage
	library *media.Library
	session *syncstate.State
	log     Logger
	config  *Config
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	// Set default logger if none provided
	sessionLog := cfg.Logger
	if cfg.Logger == nil {
		l := logger.GetLogger()
		cfg.Logger = l
		sessionLog = l.Named("session")
	}

	// Create or use provided storage
	var stor Storage
	var err error
	if cfg.Storage != nil {
		stor = cfg.Storage
	} else {
		stor, err = NewSQLiteStorage(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	svc := &klokService{
		storage: stor,
		library: media.NewLibrary(cfg.ResDir),
		log:     cfg.Logger,
		config:  cfg,
	}

	stateOpts := []syncstate.Option{
		syncstate.WithLogger(sessionLog),
		syncstate.WithOffsetStore(stor),
		syncstate.WithHistoryCapacity(cfg.HistoryCapacity),
		syncstate.WithSampleInterval(cfg.SampleInterval),
		syncstate.WithScoreOptions(cfg.ScoreOptions),
		syncstate.WithSaveDelay(cfg.SaveDelay),
	}
	switch {
	case cfg.PitchSource != nil:
		stateOpts = append(stateOpts, syncstate.WithSource(cfg.PitchSource))
	case cfg.PitchURL != "":
		// samples without a time of their own are stamped with the playhead
		src := sampler.NewHTTPSource(cfg.PitchURL, func() float64 {
			return svc.session.CurrentTime()
		})
		stateOpts = append(stateOpts, syncstate.WithSource(src))
	}

	loader := &libraryLoader{lib: svc.library, storage: stor, log: cfg.Logger}
	svc.session = syncstate.New(loader, stateOpts...)
	return svc, nil
}

// Playlist lists the playable files of the resource directory.
func (s *klokService) Playlist() ([]models.PlaylistItem, error) {
	return s.library.Playlist()
}

// Tracks returns every track that has been loaded at least once.
func (s *klokService) Tracks() ([]models.Track, error) {
	return s.storage.ListTracks()
}

func (s *klokService) GetTrack(id string) (*models.Track, error) {
	t, err := s.storage.GetTrack(id)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// SelectTrack makes url the session track and returns its id. Loading
// continues in the background; the channel reports when it is done.
func (s *klokService) SelectTrack(ctx context.Context, url string) (string, <-chan syncstate.LoadReport, error) {
	if _, err := s.library.Resolve(url); err != nil {
		if errors.Is(err, media.ErrNotFound) {
			return "", nil, fmt.Errorf("%w: %s", ErrTrackNotFound, url)
		}
		return "", nil, err
	}

	id := utils.TrackID(url)
	s.log.Infof("Selecting track %s", url)
	return id, s.session.SetTrack(ctx, id, url), nil
}

func (s *klokService) Metadata(ctx context.Context, url string) (models.Metadata, error) {
	return s.library.Metadata(url)
}

func (s *klokService) Notes(ctx context.Context, url string) ([]models.MidiNote, error) {
	return s.library.Notes(url)
}

func (s *klokService) Audio(ctx context.Context, url string) (models.AudioSource, error) {
	return s.library.Audio(url)
}

// Session is the shared playback state.
func (s *klokService) Session() *syncstate.State {
	return s.session
}

// Close releases all resources held by the service.
func (s *klokService) Close() error {
	var errs []error
	if err := s.session.Close(); err != nil {
		errs = append(errs, fmt.Errorf("saving offsets: %w", err))
	}
	if err := s.storage.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
