package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/maauso/subtitler/internal/audio"
	"github.com/maauso/subtitler/internal/media"
	"github.com/maauso/subtitler/internal/recognition"
	"github.com/maauso/subtitler/internal/storage"
	"github.com/maauso/subtitler/internal/subtitle"
)

// Validator checks a user supplied path.
type Validator interface {
	Validate(path string) (media.Input, error)
}

// Result is the outcome of a successful run.
type Result struct {
	// RunID identifies the run in logs.
	RunID string
	// OutputPath is the written subtitle file.
	OutputPath string
	// Duration is the end time of the last segment in seconds.
	Duration float64
	// Segments is the number of subtitle blocks written.
	Segments int
	// Elapsed is the wall time of the run, cleanup excluded.
	Elapsed time.Duration
}

// Controller sequences the stages of a run and guarantees cleanup.
// A Controller runs one input at a time.
type Controller struct {
	validator  Validator
	storage    storage.Storage
	normalizer audio.Normalizer
	recognizer recognition.Recognizer
	writer     subtitle.Writer

	outputDir string
	options   recognition.Options
	logger    *slog.Logger
	stateHook func(State)
}

// Option is a function that configures a Controller.
type Option func(*Controller)

// WithOutputDir sets the directory the subtitle file is written to.
func WithOutputDir(dir string) Option {
	return func(c *Controller) {
		if dir != "" {
			c.outputDir = dir
		}
	}
}

// WithRecognitionOptions sets the options passed to the recognizer.
func WithRecognitionOptions(opts recognition.Options) Option {
	return func(c *Controller) {
		c.options = opts
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithStateHook registers fn to be called on every state change.
func WithStateHook(fn func(State)) Option {
	return func(c *Controller) {
		c.stateHook = fn
	}
}

// NewController creates a new Controller. The subtitle is written to the
// current directory unless WithOutputDir is given.
func NewController(
	v Validator,
	store storage.Storage,
	n audio.Normalizer,
	r recognition.Recognizer,
	w subtitle.Writer,
	opts ...Option,
) *Controller {
	c := &Controller{
		validator:  v,
		storage:    store,
		normalizer: n,
		recognizer: r,
		writer:     w,
		outputDir:  ".",
		options:    recognition.DefaultOptions(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run converts the media file at inputPath into <output dir>/<base name>.srt.
// Failures are returned as *Error. Cleanup runs before Run returns whatever
// the outcome, and its own failures are only logged.
func (c *Controller) Run(ctx context.Context, inputPath string) (Result, error) {
	run := NewRun(inputPath)
	logger := c.logger.With(slog.String("run_id", run.ID))
	defer c.cleanup(ctx, run, logger)

	logger.Info("run started", slog.String("input", inputPath))

	if err := c.advance(ctx, run, StateValidating, logger); err != nil {
		return Result{}, err
	}
	in, err := c.validator.Validate(inputPath)
	if err != nil {
		return Result{}, c.fail(ctx, run, err, logger)
	}

	if err := c.advance(ctx, run, StateNormalizing, logger); err != nil {
		return Result{}, err
	}
	artifactPath, err := c.storage.TempPath(ctx, run.ID, ".wav")
	if err != nil {
		return Result{}, c.fail(ctx, run, err, logger)
	}
	run.setArtifact(artifactPath)
	artifact, err := c.normalizer.Normalize(ctx, in, artifactPath)
	if err != nil {
		return Result{}, c.fail(ctx, run, err, logger)
	}
	logger.Debug("audio normalized",
		slog.String("artifact", artifact.Path),
		slog.Float64("audio_sec", artifact.Duration().Seconds()),
	)

	if err := c.advance(ctx, run, StateTranscribing, logger); err != nil {
		return Result{}, err
	}
	segments, err := c.recognizer.Transcribe(ctx, artifact, c.options)
	if err != nil {
		return Result{}, c.fail(ctx, run, err, logger)
	}

	if err := c.advance(ctx, run, StateWriting, logger); err != nil {
		return Result{}, err
	}
	outputPath := filepath.Join(c.outputDir, in.BaseName()+".srt")
	run.setOutput(outputPath)
	if err := c.writer.Write(segments, outputPath); err != nil {
		return Result{}, c.fail(ctx, run, err, logger)
	}

	// The file is in place; a late cancellation no longer fails the run.
	if err := run.TransitionTo(StateDone); err != nil {
		return Result{}, err
	}
	logger.Debug("state changed", slog.String("state", string(StateDone)))
	c.notify(StateDone)

	result := Result{
		RunID:      run.ID,
		OutputPath: outputPath,
		Duration:   subtitle.TotalDuration(segments),
		Segments:   len(segments),
		Elapsed:    run.Elapsed(),
	}
	logger.Info("run completed",
		slog.String("output", outputPath),
		slog.Int("segments", result.Segments),
		slog.Float64("duration_sec", result.Duration),
	)
	return result, nil
}

// advance moves the run to next unless ctx was cancelled in between.
func (c *Controller) advance(ctx context.Context, run *Run, next State, logger *slog.Logger) error {
	if err := ctx.Err(); err != nil {
		return c.fail(ctx, run, err, logger)
	}
	if err := run.TransitionTo(next); err != nil {
		return err
	}
	logger.Debug("state changed", slog.String("state", string(next)))
	c.notify(next)
	return nil
}

// fail classifies err against the current state and moves the run to
// StateFailed.
func (c *Controller) fail(ctx context.Context, run *Run, err error, logger *slog.Logger) error {
	state := run.GetState()
	perr := classify(ctx, state, err)

	_ = run.TransitionTo(StateFailed)
	c.notify(StateFailed)

	logger.Error("run failed",
		slog.String("state", string(state)),
		slog.String("kind", string(perr.Kind)),
		slog.String("error", err.Error()),
	)
	return perr
}

func (c *Controller) notify(state State) {
	if c.stateHook != nil {
		c.stateHook(state)
	}
}

// cleanup deletes the artifact and releases the recognizer. It ignores
// cancellation of ctx so an interrupted run is still cleaned up.
func (c *Controller) cleanup(ctx context.Context, run *Run, logger *slog.Logger) {
	cctx := context.WithoutCancel(ctx)

	if path := run.artifact(); path != "" {
		if err := c.storage.CleanupTemp(cctx, []string{path}); err != nil {
			logger.Warn("failed to remove audio artifact",
				slog.String("artifact", path),
				slog.String("error", err.Error()),
			)
		}
	}

	if run.Entered(StateTranscribing) {
		if err := c.recognizer.Release(cctx); err != nil {
			logger.Warn("failed to release recognizer",
				slog.String("error", err.Error()),
			)
		}
	}
}
