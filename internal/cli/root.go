// Package cli implements the subtitler command line.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/maauso/subtitler/internal/bootstrap"
	"github.com/maauso/subtitler/internal/config"
	"github.com/maauso/subtitler/internal/pipeline"
	"github.com/maauso/subtitler/internal/preflight"
)

// ExitUsage is the exit code for configuration and usage errors.
const ExitUsage = 1

// ErrInputRequired is returned when no input path is given and stdin is
// not a terminal.
var ErrInputRequired = errors.New("an input media path is required")

// exitError carries the process exit code of a failed invocation.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// ExitCode maps an error returned by the root command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if kind, ok := pipeline.KindOf(err); ok {
		return kind.ExitCode()
	}
	return ExitUsage
}

// prober checks external tools.
type prober interface {
	Probe(name, command string) preflight.Capability
	OS() string
}

// buildFunc creates the controller for a loaded configuration.
type buildFunc func(cfg *config.Config, logger *slog.Logger, hook func(pipeline.State)) (*pipeline.Controller, error)

// app holds the collaborators of one invocation.
type app struct {
	prober     prober
	build      buildFunc
	isTerminal func(io.Reader) bool
}

func defaultApp() *app {
	return &app{
		prober: preflight.NewProber(),
		build: func(cfg *config.Config, logger *slog.Logger, hook func(pipeline.State)) (*pipeline.Controller, error) {
			deps, err := bootstrap.NewDependencies(cfg, logger, hook)
			if err != nil {
				return nil, err
			}
			return deps.Controller, nil
		},
		isTerminal: stdinIsTerminal,
	}
}

// Execute runs the root command with SIGINT and SIGTERM cancelling the run
// and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCommand()
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	}
	return ExitCode(err)
}

// NewRootCommand builds the subtitler command.
func NewRootCommand() *cobra.Command {
	return defaultApp().command()
}

func (a *app) command() *cobra.Command {
	var overrides config.Overrides

	cmd := &cobra.Command{
		Use:   "subtitler [media file]",
		Short: "Transcribe an audio or video file into an .srt subtitle",
		Long: "subtitler converts one media file into <name>.srt using ffmpeg for audio\n" +
			"normalization and whisper (local whisper.cpp, a RunPod endpoint or a Beam task\n" +
			"queue) for speech recognition. Without an argument the path is prompted for\n" +
			"on a terminal.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, args, overrides)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&overrides.Language, "language", "l", "", "Force the spoken language code (default: auto detect)")
	flags.StringVarP(&overrides.Device, "device", "d", "", "Compute device: cpu or accelerated")
	flags.StringVarP(&overrides.OutputDir, "output-dir", "o", "", "Directory the .srt file is written to")
	flags.StringVarP(&overrides.Backend, "backend", "b", "", "Recognition backend: whispercpp, runpod or beam")

	return cmd
}

func (a *app) run(cmd *cobra.Command, args []string, overrides config.Overrides) error {
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	cfg, err := config.LoadWithOverrides(overrides)
	if err != nil {
		return &exitError{code: ExitUsage, err: err}
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)
	logger.Debug("configuration loaded", slog.String("config", cfg.String()))

	fmt.Fprintf(out, "System: %s\n", a.prober.OS())

	if err := a.preflight(cfg, errOut); err != nil {
		return err
	}

	fmt.Fprintf(out, "Using device: %s\n", cfg.Device)
	fmt.Fprintf(out, "Using backend: %s\n", cfg.Backend)

	inputPath, err := a.inputPath(cmd, args)
	if err != nil {
		return &exitError{code: ExitUsage, err: err}
	}

	controller, err := a.build(cfg, logger, stageReporter(out))
	if err != nil {
		return &exitError{code: ExitUsage, err: err}
	}

	result, err := controller.Run(cmd.Context(), inputPath)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\nSaved to: %s\n", result.OutputPath)
	fmt.Fprintf(out, "Processing time: %.1fs\n", result.Duration)
	return nil
}

// preflight reports missing tools with install hints. A missing transcoder
// fails as NormalizationFailed, a missing local recognizer as
// TranscriptionFailed.
func (a *app) preflight(cfg *config.Config, errOut io.Writer) error {
	ffmpeg := a.prober.Probe("ffmpeg", cfg.FFmpegPath)
	if !ffmpeg.Present {
		fmt.Fprintf(errOut, "FFmpeg is not installed or not in system PATH\n%s\n", ffmpeg.Hint)
		return &pipeline.Error{
			Kind:    pipeline.KindNormalizationFailed,
			State:   pipeline.StateIdle,
			Message: fmt.Sprintf("%s not found", cfg.FFmpegPath),
		}
	}

	if cfg.Backend == config.BackendWhisperCPP {
		whisper := a.prober.Probe("whisper.cpp", cfg.WhisperCPPPath)
		if !whisper.Present {
			fmt.Fprintf(errOut, "whisper.cpp is not installed or not in system PATH\n%s\n", whisper.Hint)
			return &pipeline.Error{
				Kind:    pipeline.KindTranscriptionFailed,
				State:   pipeline.StateIdle,
				Message: fmt.Sprintf("%s not found", cfg.WhisperCPPPath),
			}
		}
	}
	return nil
}

// inputPath returns the positional argument, or prompts for it when stdin
// is a terminal.
func (a *app) inputPath(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}

	in := cmd.InOrStdin()
	if !a.isTerminal(in) {
		return "", ErrInputRequired
	}

	fmt.Fprint(cmd.OutOrStdout(), "\nAudio file path: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read input path: %w", err)
	}
	path := strings.Trim(strings.TrimSpace(line), `"'`)
	if path == "" {
		return "", ErrInputRequired
	}
	return path, nil
}

// stageMessages are printed when the pipeline enters a stage.
var stageMessages = map[pipeline.State]string{
	pipeline.StateValidating:   "Validating input...",
	pipeline.StateNormalizing:  "Optimizing audio...",
	pipeline.StateTranscribing: "Starting transcription...",
	pipeline.StateWriting:      "Writing subtitles...",
}

func stageReporter(out io.Writer) func(pipeline.State) {
	return func(s pipeline.State) {
		if msg, ok := stageMessages[s]; ok {
			fmt.Fprintln(out, msg)
		}
	}
}

func stdinIsTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
