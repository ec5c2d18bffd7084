package recognition

import (
	"context"

	"github.com/maauso/subtitler/internal/audio"
	"github.com/maauso/subtitler/internal/subtitle"
	"github.com/maauso/subtitler/internal/whispercpp"
)

// whisperRunner is the subset of whispercpp.Client used here.
type whisperRunner interface {
	Transcribe(ctx context.Context, audioPath string, p whispercpp.Params) ([]whispercpp.Segment, error)
}

// WhisperCPP recognizes speech with a local whisper.cpp process.
type WhisperCPP struct {
	client whisperRunner
}

// NewWhisperCPP creates a Recognizer backed by a whisper.cpp client.
func NewWhisperCPP(client *whispercpp.Client) *WhisperCPP {
	return &WhisperCPP{client: client}
}

// Transcribe runs whisper.cpp over the artifact. Empty audio yields no
// segments without starting the process.
func (w *WhisperCPP) Transcribe(ctx context.Context, artifact audio.Artifact, opts Options) ([]subtitle.Segment, error) {
	if artifact.Empty() {
		return nil, nil
	}

	raw, err := w.client.Transcribe(ctx, artifact.Path, whispercpp.Params{
		Language:         opts.Language,
		Temperature:      opts.Temperature(),
		BestOf:           opts.BestOf(),
		BeamSize:         1,
		// whisper.cpp has no compression ratio check. Its entropy threshold
		// is the closest degeneracy guard and triggers the same fallback,
		// so the configured ratio is reused as that threshold.
		EntropyThreshold: opts.CompressionRatioThreshold,
		NoGPU:            opts.Device == DeviceCPU,
		FlashAttention:   opts.MixedPrecision(),
	})
	if err != nil {
		return nil, err
	}

	segments := make([]subtitle.Segment, 0, len(raw))
	for _, s := range raw {
		segments = append(segments, subtitle.Segment{
			Start: float64(s.FromMs) / 1000,
			End:   float64(s.ToMs) / 1000,
			Text:  s.Text,
		})
	}
	return segments, nil
}

// Release is a no-op: the whisper.cpp process holds the model and exits
// when Transcribe returns.
func (w *WhisperCPP) Release(context.Context) error {
	return nil
}
