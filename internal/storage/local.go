package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// ErrS3NotConfigured is returned when staging operations are attempted
// without S3 configuration.
var ErrS3NotConfigured = errors.New("S3 storage is not configured")

// TempPrefix starts the name of every temporary file this package creates.
const TempPrefix = "subtitler-"

// LocalStorage implements the Storage interface using local disk.
// It stores temporary files in a configurable directory and does not
// support staging unless wrapped with S3Storage.
type LocalStorage struct {
	tempDir string
}

// NewLocalStorage creates a new LocalStorage instance.
// The tempDir parameter specifies where temporary files are stored.
// If tempDir is empty, a "subtitler" directory under os.TempDir() is used.
// The directory is created if it doesn't exist.
func NewLocalStorage(tempDir string) (*LocalStorage, error) {
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "subtitler")
	}

	if err := os.MkdirAll(tempDir, 0750); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}

	return &LocalStorage{tempDir: tempDir}, nil
}

// TempDir returns the temporary directory path.
func (s *LocalStorage) TempDir() string {
	return s.tempDir
}

// TempPath reserves a unique temporary file named
// subtitler-<name>-<random><ext> and returns its path.
func (s *LocalStorage) TempPath(ctx context.Context, name, ext string) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.CreateTemp(s.tempDir, TempPrefix+name+"-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	fileName := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(fileName)
		return "", fmt.Errorf("close temp file: %w", err)
	}

	return fileName, nil
}

// LoadTemp reads a temporary file and returns a reader.
// The caller is responsible for closing the returned ReadCloser.
func (s *LocalStorage) LoadTemp(ctx context.Context, path string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.Open(path) // #nosec G304 - path is provided by trusted caller
	if err != nil {
		return nil, fmt.Errorf("open temp file: %w", err)
	}

	return f, nil
}

// CleanupTemp removes the specified temporary files.
// It continues cleanup even if some files fail to delete,
// returning the first error encountered.
func (s *LocalStorage) CleanupTemp(ctx context.Context, paths []string) error {
	var firstErr error
	for _, p := range paths {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove temp file %s: %w", p, err)
			}
		}
	}
	return firstErr
}

// Stage is not supported by LocalStorage and returns ErrS3NotConfigured.
func (s *LocalStorage) Stage(_ context.Context, _ string, _ io.Reader, _ time.Duration) (string, error) {
	return "", ErrS3NotConfigured
}

// Unstage is not supported by LocalStorage and returns ErrS3NotConfigured.
func (s *LocalStorage) Unstage(_ context.Context, _ string) error {
	return ErrS3NotConfigured
}

// Compile-time checks that LocalStorage implements Storage and Stager.
var (
	_ Storage = (*LocalStorage)(nil)
	_ Stager  = (*LocalStorage)(nil)
)
