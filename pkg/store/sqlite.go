package store

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	errs "github.com/whatschanged/whatschanged/pkg/errors"
)

const insertBatchSize = 500

// SQLite is a [Store] backed by a SQLite file through gorm.
type SQLite struct {
	db *gorm.DB
}

// OpenSQLite opens (creating if needed) the database at path and migrates
// the releases table. Pass ":memory:" for a throwaway database.
func OpenSQLite(path string) (*SQLite, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errs.Wrap(errs.ErrCodeStorage, err, "create database dir")
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeStorage, err, "open sqlite database %s", path)
	}

	// A single connection keeps ":memory:" databases shared and serializes writers.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeStorage, err, "open sqlite database %s", path)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Row{}); err != nil {
		sqlDB.Close()
		return nil, errs.Wrap(errs.ErrCodeStorage, err, "auto migrating")
	}
	return &SQLite{db: db}, nil
}

// RowsFor implements [Store].
func (s *SQLite) RowsFor(ctx context.Context, name string) ([]Row, error) {
	var rows []Row
	if err := s.db.WithContext(ctx).Where("name = ?", name).Find(&rows).Error; err != nil {
		return nil, errs.Wrap(errs.ErrCodeStorage, err, "query releases for %s", name)
	}
	return rows, nil
}

// InsertRows implements [Store].
func (s *SQLite) InsertRows(ctx context.Context, rows []Row) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	assignIDs(rows)

	var inserted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for chunk := range slices.Chunk(rows, insertBatchSize) {
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&chunk)
			if res.Error != nil {
				return res.Error
			}
			inserted += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, errs.Wrap(errs.ErrCodeStorage, err, "insert %d releases", len(rows))
	}
	return int(inserted), nil
}

// HasAny implements [Store].
func (s *SQLite) HasAny(ctx context.Context, name string) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&Row{}).Where("name = ?", name).Limit(1).Count(&n).Error; err != nil {
		return false, errs.Wrap(errs.ErrCodeStorage, err, "query releases for %s", name)
	}
	return n > 0, nil
}

// Count implements [Store].
func (s *SQLite) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&Row{}).Count(&n).Error; err != nil {
		return 0, errs.Wrap(errs.ErrCodeStorage, err, "count releases")
	}
	return n, nil
}

// Close implements [Store].
func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func assignIDs(rows []Row) {
	for i := range rows {
		if strings.TrimSpace(rows[i].ID) == "" {
			rows[i].ID = uuid.NewString()
		}
	}
}

var _ Store = (*SQLite)(nil)
