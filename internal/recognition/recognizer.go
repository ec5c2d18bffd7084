// Package recognition runs speech recognition over the normalized audio
// artifact and returns the timed text segments the subtitle is built from.
// The local whisper.cpp backend and the remote RunPod and Beam backends
// are adapted to the common Recognizer interface.
package recognition

import (
	"context"
	"errors"

	"github.com/maauso/subtitler/internal/audio"
	"github.com/maauso/subtitler/internal/subtitle"
)

// ErrTranscriptionFailed is returned when the recognizer errors, returns no
// segments for non-empty audio, or returns segments that break ordering.
var ErrTranscriptionFailed = errors.New("transcription failed")

// Device selects the compute backend of the recognizer.
type Device string

const (
	// DeviceCPU runs recognition on the CPU in full precision.
	DeviceCPU Device = "cpu"
	// DeviceAccelerated runs recognition on an accelerator in mixed precision.
	DeviceAccelerated Device = "accelerated"
)

// IsValid returns true if the device is known.
func (d Device) IsValid() bool {
	return d == DeviceCPU || d == DeviceAccelerated
}

// DefaultCompressionRatioThreshold marks a decoded segment as degenerate
// when its gzip compression ratio exceeds it.
const DefaultCompressionRatioThreshold = 2.4

// Options configures one recognition call. Decoding is always deterministic:
// temperature 0 and a single candidate.
type Options struct {
	// Device is the compute backend hint.
	Device Device
	// Language forces a language code; empty lets the recognizer detect it.
	Language string
	// CompressionRatioThreshold is the degeneracy guard handed to the recognizer.
	CompressionRatioThreshold float64
}

// DefaultOptions returns CPU, auto language and the default degeneracy guard.
func DefaultOptions() Options {
	return Options{
		Device:                    DeviceCPU,
		CompressionRatioThreshold: DefaultCompressionRatioThreshold,
	}
}

// Temperature is the fixed decoding temperature.
func (o Options) Temperature() float64 { return 0 }

// BestOf is the fixed number of decoding candidates.
func (o Options) BestOf() int { return 1 }

// MixedPrecision reports whether half precision math should be enabled.
func (o Options) MixedPrecision() bool { return o.Device == DeviceAccelerated }

// Recognizer defines the interface for speech recognition backends.
type Recognizer interface {
	// Transcribe recognizes speech in artifact and returns segments in the
	// order the backend emitted them.
	Transcribe(ctx context.Context, artifact audio.Artifact, opts Options) ([]subtitle.Segment, error)

	// Release frees whatever compute context Transcribe acquired. It is safe
	// to call when Transcribe was never called or already finished.
	Release(ctx context.Context) error
}
