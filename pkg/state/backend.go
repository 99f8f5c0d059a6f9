// Package state provides the sectioned JSON store behind bot settings,
// with file, redis and in-memory backends.
package state

import (
	"context"
	"errors"
)

// ErrCorrupt marks stored data that cannot be decoded.
var ErrCorrupt = errors.New("state: corrupt data")

// UpdateFunc receives the current raw section (nil when absent) and returns
// the replacement. Returning an error aborts the write.
type UpdateFunc func(current []byte) ([]byte, error)

// Backend stores one raw JSON document per section. Implementations must
// make Update atomic with respect to other Updates of the same section and
// must never touch sections other than the one named.
type Backend interface {
	// Load returns the raw section and whether it exists.
	Load(ctx context.Context, section string) ([]byte, bool, error)

	// Update atomically replaces a section with the output of fn.
	Update(ctx context.Context, section string, fn UpdateFunc) error

	// Sections lists the names of all stored sections.
	Sections(ctx context.Context) ([]string, error)

	// Close flushes pending writes and releases resources.
	Close() error
}

// BackendType represents the storage backend type.
type BackendType string

const (
	BackendFile   BackendType = "file"
	BackendRedis  BackendType = "redis"
	BackendMemory BackendType = "memory"
)

// Config configures the state backend.
type Config struct {
	Backend BackendType

	// File backend config
	FilePath      string
	AutoSave      bool
	SaveIntervalS int

	// Redis backend config
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}
