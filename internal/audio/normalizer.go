// Package audio converts arbitrary media into the canonical PCM artifact
// consumed by speech recognition.
package audio

import (
	"context"
	"errors"
	"time"

	"github.com/maauso/subtitler/internal/media"
)

// Canonical artifact profile.
const (
	// SampleRate is the artifact sample rate in Hz.
	SampleRate = 16000
	// Channels is the artifact channel count.
	Channels = 1
	// BitsPerSample is the signed little-endian sample width.
	BitsPerSample = 16
)

// ErrNormalizationFailed is returned when the transcoder is missing, exits
// non-zero, or produces no usable output.
var ErrNormalizationFailed = errors.New("audio normalization failed")

// Artifact is the normalized mono 16 kHz 16-bit PCM WAV file produced for
// one run. The pipeline owns it and removes it during cleanup.
type Artifact struct {
	// Path is the location of the WAV file.
	Path string
	// DataBytes is the size of the PCM payload, excluding headers.
	DataBytes int64
}

// Duration returns the playback length of the PCM payload.
func (a Artifact) Duration() time.Duration {
	bytesPerSecond := int64(SampleRate * Channels * BitsPerSample / 8)
	return time.Duration(a.DataBytes) * time.Second / time.Duration(bytesPerSecond)
}

// Empty reports whether the artifact carries no samples.
func (a Artifact) Empty() bool {
	return a.DataBytes <= 0
}

// Normalizer defines the interface for producing the canonical artifact.
type Normalizer interface {
	// Normalize re-encodes in into the canonical profile at dst, overwriting
	// anything already there.
	Normalize(ctx context.Context, in media.Input, dst string) (Artifact, error)
}
