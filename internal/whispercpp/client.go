// Package whispercpp runs the whisper.cpp command line tool and parses its
// JSON transcript.
package whispercpp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Static errors for whisper.cpp operations.
var (
	// ErrModelRequired is returned when no model path is configured.
	ErrModelRequired = errors.New("whispercpp: model path is required")
	// ErrModelNotFound is returned when no .bin or .gguf model can be located.
	ErrModelNotFound = errors.New("whispercpp: model not found")
	// ErrRunFailed is returned when the whisper.cpp process fails.
	ErrRunFailed = errors.New("whispercpp: run failed")
)

// Segment is one transcript entry with offsets in milliseconds.
type Segment struct {
	FromMs int64
	ToMs   int64
	Text   string
}

// Params configures one transcription run.
type Params struct {
	// Language is a language code, or empty for auto detection.
	Language string
	// Temperature is the initial sampling temperature.
	Temperature float64
	// BestOf is the number of candidates when sampling.
	BestOf int
	// BeamSize is the beam width; 1 selects greedy decoding.
	BeamSize int
	// EntropyThreshold triggers the decoder fallback for degenerate output.
	// It is a token entropy bound, not a compression ratio.
	EntropyThreshold float64
	// NoGPU disables the accelerator.
	NoGPU bool
	// FlashAttention enables half precision flash attention kernels.
	FlashAttention bool
}

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

// Run executes one command and captures stdout/stderr and exit code.
func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}

	return result, nil
}

// Client invokes a whisper.cpp binary.
type Client struct {
	binary    string
	modelPath string
	threads   int
	runner    commandRunner
}

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// WithBinary sets the whisper.cpp executable name or path.
func WithBinary(path string) ClientOption {
	return func(c *Client) {
		if path != "" {
			c.binary = path
		}
	}
}

// WithThreads sets the number of CPU threads.
func WithThreads(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.threads = n
		}
	}
}

// NewClient creates a Client for the given model. modelPath may point at a
// model file or at a directory holding .bin/.gguf models, in which case the
// first one in lexical order is used.
func NewClient(modelPath string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		binary:  "whisper-cli",
		threads: 4,
		runner:  &execRunner{},
	}
	for _, opt := range opts {
		opt(c)
	}

	resolved, err := resolveModelPath(modelPath)
	if err != nil {
		return nil, err
	}
	c.modelPath = resolved

	return c, nil
}

// ModelPath returns the resolved model file.
func (c *Client) ModelPath() string {
	return c.modelPath
}

// Transcribe runs whisper.cpp over a 16 kHz WAV file and returns its
// segments. The JSON transcript is written next to the audio and removed
// before returning.
func (c *Client) Transcribe(ctx context.Context, audioPath string, p Params) ([]Segment, error) {
	outBase := strings.TrimSuffix(audioPath, filepath.Ext(audioPath)) + "-transcript"
	jsonPath := outBase + ".json"
	defer func() { _ = os.Remove(jsonPath) }()

	args := buildArgs(c.modelPath, audioPath, outBase, c.threads, p)
	result, err := c.runner.Run(ctx, c.binary, args...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrRunFailed, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %s exit=%d: %w, stderr: %s",
			ErrRunFailed, c.binary, result.ExitCode, err, lastLine(result.Stderr))
	}

	data, err := os.ReadFile(jsonPath) // #nosec G304 - path derived from pipeline artifact
	if err != nil {
		return nil, fmt.Errorf("%w: transcript missing: %w", ErrRunFailed, err)
	}

	return parseTranscript(data)
}

// buildArgs builds whisper.cpp args for JSON transcript export.
func buildArgs(modelPath, audioPath, outBase string, threads int, p Params) []string {
	lang := strings.TrimSpace(p.Language)
	if lang == "" {
		lang = "auto"
	}

	args := []string{
		"-m", modelPath,
		"-f", audioPath,
		"-of", outBase,
		"-oj",
		"-np",
		"-t", strconv.Itoa(threads),
		"-l", lang,
		"-tp", strconv.FormatFloat(p.Temperature, 'f', -1, 64),
		"-bo", strconv.Itoa(max(p.BestOf, 1)),
		"-bs", strconv.Itoa(max(p.BeamSize, 1)),
	}
	if p.EntropyThreshold > 0 {
		args = append(args, "-et", strconv.FormatFloat(p.EntropyThreshold, 'f', -1, 64))
	}
	if p.NoGPU {
		args = append(args, "-ng")
	}
	if p.FlashAttention {
		args = append(args, "-fa")
	}
	return args
}

type transcriptFile struct {
	Transcription []transcriptEntry `json:"transcription"`
}

type transcriptEntry struct {
	Offsets struct {
		From int64 `json:"from"`
		To   int64 `json:"to"`
	} `json:"offsets"`
	Text string `json:"text"`
}

// parseTranscript decodes the -oj output of whisper.cpp.
func parseTranscript(data []byte) ([]Segment, error) {
	var payload transcriptFile
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: parse transcript json: %w", ErrRunFailed, err)
	}

	segments := make([]Segment, 0, len(payload.Transcription))
	for _, entry := range payload.Transcription {
		segments = append(segments, Segment{
			FromMs: entry.Offsets.From,
			ToMs:   entry.Offsets.To,
			Text:   entry.Text,
		})
	}
	return segments, nil
}

// resolveModelPath returns model file path from file or directory input.
func resolveModelPath(rawPath string) (string, error) {
	modelPath := strings.TrimSpace(rawPath)
	if modelPath == "" {
		return "", ErrModelRequired
	}

	info, err := os.Stat(modelPath)
	if err != nil {
		return "", fmt.Errorf("%w: cannot access %s", ErrModelNotFound, modelPath)
	}
	if !info.IsDir() {
		return modelPath, nil
	}

	entries, err := os.ReadDir(modelPath)
	if err != nil {
		return "", fmt.Errorf("%w: cannot read directory %s", ErrModelNotFound, modelPath)
	}

	modelNames := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".bin" || ext == ".gguf" {
			modelNames = append(modelNames, entry.Name())
		}
	}
	if len(modelNames) == 0 {
		return "", fmt.Errorf("%w: no .bin or .gguf files in %s", ErrModelNotFound, modelPath)
	}

	sort.Strings(modelNames)
	return filepath.Join(modelPath, modelNames[0]), nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.LastIndexByte(s, '\n'); idx >= 0 {
		return s[idx+1:]
	}
	return s
}
