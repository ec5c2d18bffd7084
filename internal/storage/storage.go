// Package storage provides temporary artifact storage for a pipeline run.
// It defines the Storage interface (port) and implementations for local
// disk and for local disk with S3 staging of artifacts that must be
// reachable by a remote recognizer.
package storage

import (
	"context"
	"io"
	"time"
)

// Storage defines the interface for per-run temporary files.
type Storage interface {
	// TempPath reserves a unique, empty temporary file and returns its path.
	// The name and ext parameters are used as hints for the filename.
	// Concurrent runs never receive the same path.
	TempPath(ctx context.Context, name, ext string) (path string, err error)

	// LoadTemp reads a temporary file and returns a reader.
	// The caller is responsible for closing the returned ReadCloser.
	LoadTemp(ctx context.Context, path string) (io.ReadCloser, error)

	// CleanupTemp removes the specified temporary files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error
}

// Stager publishes a temporary artifact under a short-lived URL so that an
// out-of-process collaborator can fetch it.
type Stager interface {
	// Stage uploads data under key and returns a URL valid for ttl.
	// Returns ErrS3NotConfigured if staging is not configured.
	Stage(ctx context.Context, key string, data io.Reader, ttl time.Duration) (url string, err error)

	// Unstage deletes a previously staged object.
	Unstage(ctx context.Context, key string) error
}
