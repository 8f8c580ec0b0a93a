package klok

import (
	"time"

	"github.com/himanishpuri/klok/internal/history"
	"github.com/himanishpuri/klok/internal/sampler"
	"github.com/himanishpuri/klok/internal/syncstate"
	"github.com/himanishpuri/klok/pkg/klok/storage"
	"github.com/himanishpuri/klok/pkg/models"
)

const (
	ResDirEnv   = "KLOK_RES_DIR"
	PitchURLEnv = "KLOK_PITCH_URL"

	DefaultResDir = "res"
)

type Config struct {
	DBPath          string
	ResDir          string
	PitchURL        string
	SampleInterval  time.Duration
	HistoryCapacity int
	ScoreOptions    models.ScoreOptions
	SaveDelay       time.Duration
	Logger          Logger
	Storage         Storage
	PitchSource     sampler.Source
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

// WithResDir sets the directory holding audio, .lrc and .mid files.
func WithResDir(dir string) Option {
	return func(c *Config) {
		c.ResDir = dir
	}
}

// WithPitchURL points the sampler at a pitch endpoint. An empty URL
// disables sampling unless a source is given with WithPitchSource.
func WithPitchURL(url string) Option {
	return func(c *Config) {
		c.PitchURL = url
	}
}

func WithSampleInterval(d time.Duration) Option {
	return func(c *Config) {
		c.SampleInterval = d
	}
}

func WithHistoryCapacity(n int) Option {
	return func(c *Config) {
		c.HistoryCapacity = n
	}
}

func WithScoreOptions(opts models.ScoreOptions) Option {
	return func(c *Config) {
		c.ScoreOptions = opts
	}
}

// WithSaveDelay sets how long offset edits settle before they are stored.
func WithSaveDelay(d time.Duration) Option {
	return func(c *Config) {
		c.SaveDelay = d
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithStorage(storage Storage) Option {
	return func(c *Config) {
		c.Storage = storage
	}
}

// WithPitchSource overrides the HTTP pitch source.
func WithPitchSource(src sampler.Source) Option {
	return func(c *Config) {
		c.PitchSource = src
	}
}

func defaultConfig() *Config {
	return &Config{
		DBPath:          storage.DefaultDBFile,
		ResDir:          DefaultResDir,
		PitchURL:        sampler.DefaultPitchURL,
		SampleInterval:  sampler.DefaultInterval,
		HistoryCapacity: history.DefaultCapacity,
		ScoreOptions:    models.DefaultScoreOptions(),
		SaveDelay:       syncstate.DefaultSaveDelay,
		Logger:          nil,
	}
}
