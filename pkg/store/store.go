// Package store persists fetched releases so repeated resolutions of the
// same dependency avoid the release host.
//
// A [Store] is a backend holding one [Row] per (dependency name, tag).
// Rows only grow: inserting an existing (name, tag) pair is a no-op, and
// nothing in the resolution path deletes. Two backends are provided:
//   - [SQLite]: a single file, the default for the CLI
//   - [Mongo]: shared storage for several `serve` instances
//
// [ReleaseCache] wraps a Store with the version-aware lookup the resolver
// needs.
package store

import (
	"context"
	"time"
)

// Row is one cached release.
type Row struct {
	ID         string    `gorm:"primaryKey" bson:"_id"`
	Name       string    `gorm:"not null;uniqueIndex:idx_releases_name_tag" bson:"name"`
	TagName    string    `gorm:"not null;uniqueIndex:idx_releases_name_tag" bson:"tag_name"`
	Version    string    `gorm:"not null" bson:"version"`
	ReleaseURL string    `gorm:"not null" bson:"release_url"`
	Created    time.Time `gorm:"not null" bson:"created"`
}

// TableName pins the gorm table name.
func (Row) TableName() string { return "releases" }

// Store is a release row backend. Implementations must be safe for
// concurrent use.
type Store interface {
	// RowsFor returns every row stored under the normalized name.
	RowsFor(ctx context.Context, name string) ([]Row, error)

	// InsertRows stores rows in one transaction, skipping (name, tag)
	// pairs that already exist, and returns how many were inserted.
	// [Mongo] on a standalone server has no transactions and may store a
	// prefix of a failed batch; see its docs.
	InsertRows(ctx context.Context, rows []Row) (int, error)

	// HasAny reports whether any row exists under the normalized name.
	HasAny(ctx context.Context, name string) (bool, error)

	// Count returns the total number of rows.
	Count(ctx context.Context) (int64, error)

	Close() error
}
