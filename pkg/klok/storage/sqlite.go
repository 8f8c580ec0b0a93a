package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/himanishpuri/klok/pkg/models"
	"github.com/himanishpuri/klok/pkg/utils"
)

const DefaultDBFile = "klok.sqlite3"
const errDBClientNil = "db client is nil"

// DBPathEnv overrides the database location used by NewDBClient.
const DBPathEnv = "KLOK_DB_PATH"

var ErrNotFound = errors.New("record not found")

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

type Track struct {
	ID         string `gorm:"primaryKey;type:varchar(36)"`
	Title      string `gorm:"index:idx_track_meta,priority:1" json:"title"`
	Artist     string `gorm:"index:idx_track_meta,priority:2" json:"artist"`
	URL        string `gorm:"uniqueIndex:idx_track_url" json:"url"`
	DurationMs int    `json:"duration_ms"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// LyricOffset is one stored lyric delta. LineIndex -1 holds the global delta.
type LyricOffset struct {
	TrackID   string  `gorm:"primaryKey;type:varchar(36)" json:"track_id"`
	LineIndex int     `gorm:"primaryKey" json:"line_index"`
	Delta     float64 `json:"delta"`
}

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv(DBPathEnv)
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=foreign_keys(1)"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	// sqlite serialises writers; one connection avoids SQLITE_BUSY
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Track{}, &LyricOffset{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func toModel(t Track) models.Track {
	return models.Track{
		ID:         t.ID,
		Title:      t.Title,
		Artist:     t.Artist,
		URL:        t.URL,
		DurationMs: t.DurationMs,
	}
}

// UpsertTrack registers a track by URL, updating title, artist and duration
// when it already exists. The id is derived from the URL.
func (c *DBClient) UpsertTrack(title, artist, url string, durationMs int) (models.Track, error) {
	if c == nil || c.DB == nil {
		return models.Track{}, errors.New(errDBClientNil)
	}
	if url == "" {
		return models.Track{}, errors.New("track url is empty")
	}

	row := Track{
		ID:         utils.TrackID(url),
		Title:      title,
		Artist:     artist,
		URL:        url,
		DurationMs: durationMs,
	}
	err := c.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "artist", "duration_ms", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return models.Track{}, fmt.Errorf("upserting track: %w", err)
	}
	return toModel(row), nil
}

func (c *DBClient) GetTrack(id string) (models.Track, error) {
	if c == nil || c.DB == nil {
		return models.Track{}, errors.New(errDBClientNil)
	}
	var row Track
	if err := c.DB.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Track{}, fmt.Errorf("track %s: %w", id, ErrNotFound)
		}
		return models.Track{}, fmt.Errorf("querying track: %w", err)
	}
	return toModel(row), nil
}

func (c *DBClient) GetTrackByURL(url string) (models.Track, error) {
	return c.GetTrack(utils.TrackID(url))
}

func (c *DBClient) ListTracks() ([]models.Track, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var rows []Track
	if err := c.DB.Order("title ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing tracks: %w", err)
	}
	out := make([]models.Track, len(rows))
	for i, r := range rows {
		out[i] = toModel(r)
	}
	return out, nil
}

func (c *DBClient) DeleteTrack(id string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	return c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("track_id = ?", id).Delete(&LyricOffset{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&Track{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("track %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

// SaveOffsets replaces the stored deltas of a track. Zero deltas are not
// stored.
func (c *DBClient) SaveOffsets(trackID string, offsets models.LyricOffsets) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}

	rows := make([]LyricOffset, 0, len(offsets.PerIndex)+1)
	if offsets.Global != 0 {
		rows = append(rows, LyricOffset{TrackID: trackID, LineIndex: models.GlobalOffsetIndex, Delta: offsets.Global})
	}
	for idx, d := range offsets.PerIndex {
		if d == 0 || idx < 0 {
			continue
		}
		rows = append(rows, LyricOffset{TrackID: trackID, LineIndex: idx, Delta: d})
	}

	return c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("track_id = ?", trackID).Delete(&LyricOffset{}).Error; err != nil {
			return fmt.Errorf("clearing offsets: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, 200).Error; err != nil {
			return fmt.Errorf("storing offsets: %w", err)
		}
		return nil
	})
}

func (c *DBClient) LoadOffsets(trackID string) (models.LyricOffsets, error) {
	out := models.LyricOffsets{PerIndex: map[int]float64{}}
	if c == nil || c.DB == nil {
		return out, errors.New(errDBClientNil)
	}
	var rows []LyricOffset
	if err := c.DB.Where("track_id = ?", trackID).Find(&rows).Error; err != nil {
		return out, fmt.Errorf("querying offsets: %w", err)
	}
	for _, r := range rows {
		if r.LineIndex == models.GlobalOffsetIndex {
			out.Global = r.Delta
			continue
		}
		out.PerIndex[r.LineIndex] = r.Delta
	}
	return out, nil
}
