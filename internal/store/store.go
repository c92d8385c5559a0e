// Package store persists alignment points in a SQLite database through gorm.
package store

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/thurmanmarka/nstaralign"
)

// MemoryDSN opens a shared in-memory database.
const MemoryDSN = "file::memory:?cache=shared"

// pointRecord is the stored form of an alignment point. Delta and the
// working-frame projections are derived and not stored.
type pointRecord struct {
	ID         int       `gorm:"primaryKey;autoIncrement:false"`
	AlignTime  time.Time `gorm:"index:idx_align_time"`
	EncoderRA  int64
	EncoderDec int64
	TargetRA   int64
	TargetDec  int64
	OrigRA     float64 // hours
	OrigDec    float64 // degrees
}

func (*pointRecord) TableName() string {
	return "alignment_points"
}

func toRecord(p nstaralign.AlignmentPoint) pointRecord {
	return pointRecord{
		ID:         p.ID,
		AlignTime:  p.AlignTime.UTC(),
		EncoderRA:  p.Encoder.RA,
		EncoderDec: p.Encoder.Dec,
		TargetRA:   p.Target.RA,
		TargetDec:  p.Target.Dec,
		OrigRA:     p.OrigRaDec.RA,
		OrigDec:    p.OrigRaDec.Dec,
	}
}

func (r pointRecord) point() nstaralign.AlignmentPoint {
	return nstaralign.AlignmentPoint{
		ID:        r.ID,
		AlignTime: r.AlignTime,
		Encoder:   nstaralign.EncoderPosition{RA: r.EncoderRA, Dec: r.EncoderDec},
		Target:    nstaralign.EncoderPosition{RA: r.TargetRA, Dec: r.TargetDec},
		OrigRaDec: nstaralign.AxisPosition{RA: r.OrigRA, Dec: r.OrigDec},
		Delta: nstaralign.EncoderPosition{
			RA:  r.TargetRA - r.EncoderRA,
			Dec: r.TargetDec - r.EncoderDec,
		},
	}
}

// Store reads and writes the alignment point table.
type Store struct {
	db     *gorm.DB
	path   string
	Logger zerolog.Logger
}

// Open connects to the SQLite database at path and migrates the schema.
// An empty path uses an in-memory database.
func Open(path string, log zerolog.Logger) (*Store, error) {
	dsn := path
	if dsn == "" {
		dsn = MemoryDSN
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite DB: %w", err)
	}

	if err := db.AutoMigrate(&pointRecord{}); err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.Close()
		}
		return nil, fmt.Errorf("failed to migrate alignment_points table: %w", err)
	}

	s := &Store{db: db, path: path, Logger: log.With().Str("component", "store").Logger()}
	if path == "" {
		s.Logger.Debug().Msg("Using SQLite DB in memory")
	} else {
		s.Logger.Debug().Str("path", path).Msg("Using local SQLite DB")
	}
	return s, nil
}

// Path returns the database path, empty for an in-memory database.
func (s *Store) Path() string {
	return s.path
}

// Load returns the stored points ordered by ID.
func (s *Store) Load() ([]nstaralign.AlignmentPoint, error) {
	var recs []pointRecord
	if err := s.db.Order("id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to load alignment points: %w", err)
	}

	points := make([]nstaralign.AlignmentPoint, len(recs))
	for i, r := range recs {
		points[i] = r.point()
	}
	s.Logger.Debug().Int("count", len(points)).Msg("Loaded alignment points")
	return points, nil
}

// Save replaces the stored points with points in a single transaction.
func (s *Store) Save(points []nstaralign.AlignmentPoint) error {
	recs := make([]pointRecord, len(points))
	for i, p := range points {
		recs[i] = toRecord(p)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&pointRecord{}).Error; err != nil {
			return err
		}
		if len(recs) == 0 {
			return nil
		}
		return tx.Create(&recs).Error
	})
	if err != nil {
		return fmt.Errorf("failed to save alignment points: %w", err)
	}

	s.Logger.Debug().Int("count", len(recs)).Msg("Saved alignment points")
	return nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	return sqlDB.Close()
}
