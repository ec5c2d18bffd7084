package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/maauso/subtitler/internal/media"
)

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stderr string, err error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

// Run executes one command and captures stderr.
func (execRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stderr.String(), err
}

// FFmpegNormalizer implements Normalizer using the ffmpeg CLI.
type FFmpegNormalizer struct {
	ffmpegPath string
	runner     commandRunner
}

// NewFFmpegNormalizer creates a new FFmpegNormalizer.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found in PATH).
func NewFFmpegNormalizer(ffmpegPath string) *FFmpegNormalizer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegNormalizer{ffmpegPath: ffmpegPath, runner: execRunner{}}
}

// Normalize implements Normalizer.Normalize.
func (n *FFmpegNormalizer) Normalize(ctx context.Context, in media.Input, dst string) (Artifact, error) {
	args := buildArgs(in.Path, dst)

	stderr, err := n.runner.Run(ctx, n.ffmpegPath, args...)
	if err != nil {
		if ctx.Err() != nil {
			return Artifact{}, fmt.Errorf("%w: %w", ErrNormalizationFailed, ctx.Err())
		}
		if errors.Is(err, exec.ErrNotFound) {
			return Artifact{}, fmt.Errorf("%w: %s not found: %w", ErrNormalizationFailed, n.ffmpegPath, err)
		}
		return Artifact{}, fmt.Errorf("%w: ffmpeg error: %w, stderr: %s", ErrNormalizationFailed, err, strings.TrimSpace(stderr))
	}

	dataBytes, err := wavDataSize(dst)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: inspect output %s: %w", ErrNormalizationFailed, dst, err)
	}

	return Artifact{Path: dst, DataBytes: dataBytes}, nil
}

// buildArgs builds ffmpeg args for mono 16 kHz signed 16-bit PCM WAV output.
// Metadata is dropped and bitexact flags set so identical input yields
// identical bytes.
func buildArgs(inputPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-loglevel", "error",
		"-y", // Overwrite output
		"-i", inputPath,
		"-vn",
		"-map_metadata", "-1",
		"-fflags", "+bitexact",
		"-flags:a", "+bitexact",
		"-ac", strconv.Itoa(Channels),
		"-ar", strconv.Itoa(SampleRate),
		"-c:a", "pcm_s16le",
		"-f", "wav",
		outPath,
	}
}

// wavDataSize walks the RIFF chunks of a WAV file and returns the size of
// the "data" chunk.
func wavDataSize(path string) (int64, error) {
	f, err := os.Open(path) // #nosec G304 - path is chosen by the pipeline
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	var riff [12]byte
	if _, err := io.ReadFull(f, riff[:]); err != nil {
		return 0, fmt.Errorf("read RIFF header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return 0, errors.New("not a RIFF/WAVE file")
	}

	var hdr [8]byte
	for {
		if _, err := io.ReadFull(f, hdr[:]); err != nil {
			return 0, fmt.Errorf("data chunk not found: %w", err)
		}
		size := int64(binary.LittleEndian.Uint32(hdr[4:8]))
		if string(hdr[0:4]) == "data" {
			return size, nil
		}
		// Chunks are word aligned.
		if _, err := f.Seek(size+size%2, io.SeekCurrent); err != nil {
			return 0, fmt.Errorf("skip chunk %q: %w", string(hdr[0:4]), err)
		}
	}
}

// Verify interface implementation at compile time.
var _ Normalizer = (*FFmpegNormalizer)(nil)
