package recognition

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/maauso/subtitler/internal/audio"
	"github.com/maauso/subtitler/internal/storage"
	"github.com/maauso/subtitler/internal/subtitle"
)

// Errors returned by the remote recognizer.
var (
	// ErrPayloadTooLarge is returned when the artifact exceeds the inline
	// limit and no stager is configured.
	ErrPayloadTooLarge = errors.New("audio exceeds inline payload limit and S3 staging is not configured")
	// ErrJobFailed is returned when the remote job ends in a non-completed state.
	ErrJobFailed = errors.New("remote transcription job failed")
)

// Defaults for the remote recognizer.
const (
	// DefaultInlineLimit is the largest artifact sent inline as base64.
	// RunPod rejects /run bodies above 10 MB.
	DefaultInlineLimit int64 = 7 << 20
	// DefaultPollInterval is the time between status polls.
	DefaultPollInterval = 2 * time.Second
	// stageTTL bounds the lifetime of presigned artifact URLs.
	stageTTL = 30 * time.Minute
)

// JobStatus represents the status of a remote job.
type JobStatus string

// Common job statuses across providers.
const (
	JobPending   JobStatus = "PENDING"   // Job submitted but not yet running
	JobRunning   JobStatus = "RUNNING"   // Job is currently processing
	JobCompleted JobStatus = "COMPLETED" // Job finished successfully
	JobFailed    JobStatus = "FAILED"    // Job failed with error
	JobCancelled JobStatus = "CANCELLED" // Job was cancelled
	JobTimedOut  JobStatus = "TIMED_OUT" // Job exceeded time limit
)

// IsTerminal returns true if the status represents a final state.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled, JobTimedOut:
		return true
	default:
		return false
	}
}

// JobRequest is a provider independent transcription request.
// Exactly one of AudioBase64 and AudioURL is set.
type JobRequest struct {
	AudioBase64               string
	AudioURL                  string
	Language                  string
	Temperature               float64
	BestOf                    int
	BeamSize                  int
	CompressionRatioThreshold float64
	MixedPrecision            bool
}

// JobResult contains the result of polling a job.
type JobResult struct {
	Status   JobStatus
	Segments []subtitle.Segment // Set when Status is JobCompleted
	Error    string             // Set when the job failed
}

// Provider submits transcription jobs to a serverless GPU platform.
type Provider interface {
	// Name identifies the provider in logs.
	Name() string

	// Submit starts a job and returns its ID.
	Submit(ctx context.Context, req JobRequest) (jobID string, err error)

	// Poll checks the status of a job. Segments are only returned for
	// completed jobs.
	Poll(ctx context.Context, jobID string) (JobResult, error)

	// Cancel stops a queued or running job.
	Cancel(ctx context.Context, jobID string) error
}

// Remote recognizes speech by submitting the artifact to a Provider and
// polling until the job finishes. One instance serves one run at a time.
type Remote struct {
	provider     Provider
	storage      storage.Storage
	stager       storage.Stager
	pollInterval time.Duration
	inlineLimit  int64
	logger       *slog.Logger

	mu        sync.Mutex
	jobID     string
	jobDone   bool
	stagedKey string
}

// RemoteOption is a function that configures a Remote recognizer.
type RemoteOption func(*Remote)

// WithStager enables S3 staging for artifacts above the inline limit.
func WithStager(s storage.Stager) RemoteOption {
	return func(r *Remote) {
		r.stager = s
	}
}

// WithPollInterval sets the time between status polls.
func WithPollInterval(d time.Duration) RemoteOption {
	return func(r *Remote) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

// WithInlineLimit sets the largest artifact sent inline.
func WithInlineLimit(n int64) RemoteOption {
	return func(r *Remote) {
		r.inlineLimit = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) RemoteOption {
	return func(r *Remote) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRemote creates a Recognizer backed by a remote provider.
func NewRemote(p Provider, store storage.Storage, opts ...RemoteOption) *Remote {
	r := &Remote{
		provider:     p,
		storage:      store,
		pollInterval: DefaultPollInterval,
		inlineLimit:  DefaultInlineLimit,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Transcribe uploads the artifact, submits a job and polls it to completion.
func (r *Remote) Transcribe(ctx context.Context, artifact audio.Artifact, opts Options) ([]subtitle.Segment, error) {
	if artifact.Empty() {
		return nil, nil
	}

	req := JobRequest{
		Language:                  opts.Language,
		Temperature:               opts.Temperature(),
		BestOf:                    opts.BestOf(),
		BeamSize:                  1,
		CompressionRatioThreshold: opts.CompressionRatioThreshold,
		MixedPrecision:            opts.MixedPrecision(),
	}
	if err := r.attachAudio(ctx, artifact, &req); err != nil {
		return nil, err
	}

	jobID, err := r.provider.Submit(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("submit job: %w", err)
	}
	r.mu.Lock()
	r.jobID = jobID
	r.jobDone = false
	r.mu.Unlock()
	r.logger.Info("remote job submitted",
		slog.String("provider", r.provider.Name()),
		slog.String("job_id", jobID),
	)

	result, err := r.poll(ctx, jobID)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("remote job completed",
		slog.String("job_id", jobID),
		slog.Int("segments", len(result.Segments)),
	)
	return result.Segments, nil
}

// attachAudio sets either the inline payload or a staged URL on req.
func (r *Remote) attachAudio(ctx context.Context, artifact audio.Artifact, req *JobRequest) error {
	rc, err := r.storage.LoadTemp(ctx, artifact.Path)
	if err != nil {
		return fmt.Errorf("load artifact: %w", err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("read artifact: %w", err)
	}

	if int64(len(data)) <= r.inlineLimit {
		req.AudioBase64 = base64.StdEncoding.EncodeToString(data)
		return nil
	}

	if r.stager == nil {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(data))
	}

	key := filepath.Base(artifact.Path)
	url, err := r.stager.Stage(ctx, key, bytes.NewReader(data), stageTTL)
	if err != nil {
		return fmt.Errorf("stage artifact: %w", err)
	}
	r.mu.Lock()
	r.stagedKey = key
	r.mu.Unlock()
	req.AudioURL = url
	return nil
}

// poll waits for the job to reach a terminal status.
func (r *Remote) poll(ctx context.Context, jobID string) (JobResult, error) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return JobResult{}, fmt.Errorf("poll job %s: %w", jobID, err)
		}
		select {
		case <-ctx.Done():
			return JobResult{}, fmt.Errorf("poll job %s: %w", jobID, ctx.Err())
		case <-ticker.C:
		}

		result, err := r.provider.Poll(ctx, jobID)
		if err != nil {
			return JobResult{}, fmt.Errorf("poll job %s: %w", jobID, err)
		}
		if !result.Status.IsTerminal() {
			r.logger.Debug("remote job pending", slog.String("job_id", jobID), slog.String("status", string(result.Status)))
			continue
		}

		r.mu.Lock()
		r.jobDone = true
		r.mu.Unlock()

		if result.Status != JobCompleted {
			return JobResult{}, fmt.Errorf("%w: job %s %s: %s", ErrJobFailed, jobID, result.Status, result.Error)
		}
		return result, nil
	}
}

// Release cancels a job that has not finished and deletes any staged
// artifact.
func (r *Remote) Release(ctx context.Context) error {
	r.mu.Lock()
	jobID, done, key := r.jobID, r.jobDone, r.stagedKey
	r.jobID, r.jobDone, r.stagedKey = "", false, ""
	r.mu.Unlock()

	var errs []error
	if jobID != "" && !done {
		if err := r.provider.Cancel(ctx, jobID); err != nil {
			errs = append(errs, fmt.Errorf("cancel job %s: %w", jobID, err))
		}
	}
	if key != "" && r.stager != nil {
		if err := r.stager.Unstage(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("unstage %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}
