package recognition

import (
	"context"
	"fmt"

	"github.com/maauso/subtitler/internal/runpod"
	"github.com/maauso/subtitler/internal/subtitle"
)

// RunPodProvider adapts the RunPod client to the Provider interface.
type RunPodProvider struct {
	client runpod.Client
	model  string
}

// NewRunPodProvider creates a Provider for a faster-whisper RunPod endpoint.
// An empty model selects runpod.DefaultModel.
func NewRunPodProvider(client runpod.Client, model string) *RunPodProvider {
	if model == "" {
		model = runpod.DefaultModel
	}
	return &RunPodProvider{client: client, model: model}
}

// Name implements Provider.
func (p *RunPodProvider) Name() string { return "runpod" }

// Submit sends a transcription job to RunPod.
func (p *RunPodProvider) Submit(ctx context.Context, req JobRequest) (string, error) {
	jobID, err := p.client.Submit(ctx, runpod.TranscribeInput{
		AudioURL:                  req.AudioURL,
		AudioBase64:               req.AudioBase64,
		Model:                     p.model,
		Language:                  req.Language,
		Temperature:               req.Temperature,
		BestOf:                    req.BestOf,
		BeamSize:                  req.BeamSize,
		CompressionRatioThreshold: req.CompressionRatioThreshold,
	})
	if err != nil {
		return "", fmt.Errorf("runpod provider submit: %w", err)
	}
	return jobID, nil
}

// Poll checks the status of a RunPod job.
func (p *RunPodProvider) Poll(ctx context.Context, jobID string) (JobResult, error) {
	result, err := p.client.Poll(ctx, jobID)
	if err != nil {
		return JobResult{}, fmt.Errorf("runpod provider poll: %w", err)
	}

	var status JobStatus
	switch result.Status {
	case runpod.StatusInQueue:
		status = JobPending
	case runpod.StatusRunning, runpod.StatusInProgress:
		status = JobRunning
	case runpod.StatusCompleted:
		status = JobCompleted
	case runpod.StatusFailed:
		status = JobFailed
	case runpod.StatusCancelled:
		status = JobCancelled
	case runpod.StatusTimedOut:
		status = JobTimedOut
	default:
		status = JobStatus(result.Status)
	}

	out := JobResult{Status: status, Error: result.Error}
	if status == JobCompleted {
		out.Segments = make([]subtitle.Segment, 0, len(result.Segments))
		for _, s := range result.Segments {
			out.Segments = append(out.Segments, subtitle.Segment{Start: s.Start, End: s.End, Text: s.Text})
		}
	}
	return out, nil
}

// Cancel stops a RunPod job.
func (p *RunPodProvider) Cancel(ctx context.Context, jobID string) error {
	if err := p.client.Cancel(ctx, jobID); err != nil {
		return fmt.Errorf("runpod provider cancel: %w", err)
	}
	return nil
}

// Compile-time check that RunPodProvider implements Provider.
var _ Provider = (*RunPodProvider)(nil)
