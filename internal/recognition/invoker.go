package recognition

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maauso/subtitler/internal/audio"
	"github.com/maauso/subtitler/internal/subtitle"
)

// Invoker runs a Recognizer and enforces the segment contract on its output.
type Invoker struct {
	recognizer Recognizer
	logger     *slog.Logger
}

// NewInvoker creates a new Invoker.
func NewInvoker(r Recognizer, logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{recognizer: r, logger: logger}
}

// Transcribe runs recognition over artifact. Any backend error, an empty
// result for non-empty audio, or a malformed sequence yields
// ErrTranscriptionFailed. Segments are returned exactly as emitted.
func (i *Invoker) Transcribe(ctx context.Context, artifact audio.Artifact, opts Options) ([]subtitle.Segment, error) {
	if !opts.Device.IsValid() {
		return nil, fmt.Errorf("%w: unknown device %q", ErrTranscriptionFailed, opts.Device)
	}

	i.logger.Debug("recognition started",
		slog.String("artifact", artifact.Path),
		slog.String("device", string(opts.Device)),
		slog.String("language", opts.Language),
		slog.Float64("compression_ratio_threshold", opts.CompressionRatioThreshold),
		slog.Float64("audio_sec", artifact.Duration().Seconds()),
	)

	segments, err := i.recognizer.Transcribe(ctx, artifact, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTranscriptionFailed, err)
	}

	if len(segments) == 0 && !artifact.Empty() {
		return nil, fmt.Errorf("%w: no segments for %.1fs of audio", ErrTranscriptionFailed, artifact.Duration().Seconds())
	}

	if err := subtitle.ValidateSequence(segments); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTranscriptionFailed, err)
	}

	i.logger.Debug("recognition finished",
		slog.Int("segments", len(segments)),
		slog.Float64("duration_sec", subtitle.TotalDuration(segments)),
	)

	return segments, nil
}

// Release releases the recognizer's compute context.
func (i *Invoker) Release(ctx context.Context) error {
	return i.recognizer.Release(ctx)
}
