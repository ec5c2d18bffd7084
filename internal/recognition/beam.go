package recognition

import (
	"context"
	"fmt"

	"github.com/maauso/subtitler/internal/beam"
	"github.com/maauso/subtitler/internal/subtitle"
)

// BeamProvider adapts the Beam client to the Provider interface.
type BeamProvider struct {
	client beam.Client
}

// NewBeamProvider creates a Provider for a Beam.cloud Whisper task queue.
func NewBeamProvider(client beam.Client) *BeamProvider {
	return &BeamProvider{client: client}
}

// Name implements Provider.
func (p *BeamProvider) Name() string { return "beam" }

// Submit sends a transcription task to Beam.
func (p *BeamProvider) Submit(ctx context.Context, req JobRequest) (string, error) {
	taskID, err := p.client.Submit(ctx, beam.TranscribeInput{
		AudioURL:                  req.AudioURL,
		AudioBase64:               req.AudioBase64,
		Language:                  req.Language,
		Temperature:               req.Temperature,
		BestOf:                    req.BestOf,
		BeamSize:                  req.BeamSize,
		CompressionRatioThreshold: req.CompressionRatioThreshold,
		FP16:                      req.MixedPrecision,
	})
	if err != nil {
		return "", fmt.Errorf("beam provider submit: %w", err)
	}
	return taskID, nil
}

// Poll checks the status of a Beam task. Transcripts of completed tasks
// are fetched from the task's output URL.
func (p *BeamProvider) Poll(ctx context.Context, jobID string) (JobResult, error) {
	result, err := p.client.Poll(ctx, jobID)
	if err != nil {
		return JobResult{}, fmt.Errorf("beam provider poll: %w", err)
	}

	var status JobStatus
	switch result.Status {
	case beam.StatusPending:
		status = JobPending
	case beam.StatusRunning:
		status = JobRunning
	case beam.StatusCompleted, beam.StatusComplete:
		status = JobCompleted
	case beam.StatusFailed, beam.StatusError:
		status = JobFailed
	case beam.StatusCanceled:
		status = JobCancelled
	case beam.StatusTimeout:
		status = JobTimedOut
	default:
		status = JobStatus(result.Status)
	}

	if status != JobCompleted {
		return JobResult{Status: status, Error: result.Error}, nil
	}
	if result.OutputURL == "" {
		return JobResult{Status: JobFailed, Error: result.Error}, nil
	}

	transcript, err := p.client.FetchTranscript(ctx, result.OutputURL)
	if err != nil {
		return JobResult{}, fmt.Errorf("beam provider fetch transcript: %w", err)
	}

	segments := make([]subtitle.Segment, 0, len(transcript.Segments))
	for _, s := range transcript.Segments {
		segments = append(segments, subtitle.Segment{Start: s.Start, End: s.End, Text: s.Text})
	}
	return JobResult{Status: JobCompleted, Segments: segments}, nil
}

// Cancel stops a Beam task.
func (p *BeamProvider) Cancel(ctx context.Context, jobID string) error {
	if err := p.client.Cancel(ctx, jobID); err != nil {
		return fmt.Errorf("beam provider cancel: %w", err)
	}
	return nil
}

// Compile-time check that BeamProvider implements Provider.
var _ Provider = (*BeamProvider)(nil)
