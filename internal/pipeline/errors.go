package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/maauso/subtitler/internal/audio"
	"github.com/maauso/subtitler/internal/media"
	"github.com/maauso/subtitler/internal/recognition"
	"github.com/maauso/subtitler/internal/subtitle"
)

// Kind classifies a run failure.
type Kind string

const (
	KindNotFound            Kind = "NotFound"
	KindUnsupportedFormat   Kind = "UnsupportedFormat"
	KindNormalizationFailed Kind = "NormalizationFailed"
	KindTranscriptionFailed Kind = "TranscriptionFailed"
	KindWriteFailed         Kind = "WriteFailed"
	KindInvalidTimestamp    Kind = "InvalidTimestamp"
	// KindInterrupted marks a run aborted by context cancellation.
	KindInterrupted Kind = "Interrupted"
)

// ExitCode returns the process exit status for the kind.
func (k Kind) ExitCode() int {
	switch k {
	case KindNotFound:
		return 2
	case KindUnsupportedFormat:
		return 3
	case KindNormalizationFailed:
		return 4
	case KindTranscriptionFailed:
		return 5
	case KindWriteFailed:
		return 6
	case KindInvalidTimestamp:
		return 7
	case KindInterrupted:
		return 130
	default:
		return 1
	}
}

// Error is a classified run failure.
type Error struct {
	Kind    Kind
	State   State
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a classified error and false for any other error.
func KindOf(err error) (Kind, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}

// stageMessages describe a failure in each stage.
var stageMessages = map[State]string{
	StateValidating:   "input rejected",
	StateNormalizing:  "audio normalization failed",
	StateTranscribing: "transcription failed",
	StateWriting:      "subtitle write failed",
}

// classify maps a stage error to its kind. Cancellation wins over the
// stage sentinel because the stage only failed because it was interrupted.
func classify(ctx context.Context, state State, err error) *Error {
	var kind Kind
	switch {
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		kind = KindInterrupted
	case errors.Is(err, media.ErrNotFound):
		kind = KindNotFound
	case errors.Is(err, media.ErrUnsupportedFormat):
		kind = KindUnsupportedFormat
	case errors.Is(err, audio.ErrNormalizationFailed):
		kind = KindNormalizationFailed
	case errors.Is(err, subtitle.ErrInvalidTimestamp):
		kind = KindInvalidTimestamp
	case errors.Is(err, subtitle.ErrWriteFailed):
		kind = KindWriteFailed
	case errors.Is(err, recognition.ErrTranscriptionFailed):
		kind = KindTranscriptionFailed
	default:
		kind = defaultKinds[state]
	}

	msg := stageMessages[state]
	if kind == KindInterrupted {
		msg = "interrupted"
	}
	return &Error{Kind: kind, State: state, Message: msg, Err: err}
}

// defaultKinds classifies unrecognized errors by the stage they came from.
var defaultKinds = map[State]Kind{
	StateValidating:   KindNotFound,
	StateNormalizing:  KindNormalizationFailed,
	StateTranscribing: KindTranscriptionFailed,
	StateWriting:      KindWriteFailed,
}
