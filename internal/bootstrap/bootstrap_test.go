package bootstrap

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/subtitler/internal/beam"
	"github.com/maauso/subtitler/internal/config"
	"github.com/maauso/subtitler/internal/pipeline"
	"github.com/maauso/subtitler/internal/recognition"
	"github.com/maauso/subtitler/internal/whispercpp"
)

func baseConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		TempDir:                   t.TempDir(),
		OutputDir:                 t.TempDir(),
		FFmpegPath:                "ffmpeg",
		AcceptVideo:               true,
		Device:                    "cpu",
		CompressionRatioThreshold: 2.4,
		WhisperCPPPath:            "whisper-cli",
		WhisperThreads:            2,
		WhisperModelName:          "turbo",
		RemotePollInterval:        time.Second,
	}
}

func TestNewDependencies_WhisperCPP(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Backend = config.BackendWhisperCPP
	cfg.WhisperModel = filepath.Join(t.TempDir(), "ggml-small.bin")
	require.NoError(t, os.WriteFile(cfg.WhisperModel, []byte("m"), 0o600))

	deps, err := NewDependencies(cfg, slog.Default(), nil)
	require.NoError(t, err)
	assert.NotNil(t, deps.Controller)
}

func TestNewDependencies_WhisperCPPMissingModel(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Backend = config.BackendWhisperCPP
	cfg.WhisperModel = filepath.Join(t.TempDir(), "missing")

	_, err := NewDependencies(cfg, slog.Default(), nil)
	assert.ErrorIs(t, err, whispercpp.ErrModelNotFound)
}

func TestNewDependencies_RunPod(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Backend = config.BackendRunPod
	cfg.RunPodAPIKey = "key"
	cfg.RunPodEndpointID = "endpoint"
	cfg.AcceptVideo = false

	deps, err := NewDependencies(cfg, slog.Default(), nil)
	require.NoError(t, err)
	require.NotNil(t, deps.Controller)

	// Video containers are rejected before any processing starts.
	movie := filepath.Join(t.TempDir(), "clip.mkv")
	require.NoError(t, os.WriteFile(movie, []byte("mkv"), 0o600))
	_, err = deps.Controller.Run(context.Background(), movie)
	kind, ok := pipeline.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, pipeline.KindUnsupportedFormat, kind)
}

func TestNewDependencies_RunPodWithS3(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Backend = config.BackendRunPod
	cfg.RunPodAPIKey = "key"
	cfg.RunPodEndpointID = "endpoint"
	cfg.S3Bucket = "bucket"
	cfg.S3Region = "us-east-1"
	cfg.S3Endpoint = "http://localhost:9000"
	cfg.AWSAccessKeyID = "id"
	cfg.AWSSecretAccessKey = "secret"

	deps, err := NewDependencies(cfg, slog.Default(), nil)
	require.NoError(t, err)
	assert.NotNil(t, deps.Controller)
}

func TestNewDependencies_Beam(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Backend = config.BackendBeam
	cfg.BeamToken = "token"
	cfg.BeamQueueURL = "https://app.beam.cloud/taskqueue/whisper/v1"

	deps, err := NewDependencies(cfg, slog.Default(), nil)
	require.NoError(t, err)
	assert.NotNil(t, deps.Controller)
}

func TestNewDependencies_BeamMissingQueue(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Backend = config.BackendBeam
	cfg.BeamToken = "token"

	_, err := NewDependencies(cfg, slog.Default(), nil)
	assert.ErrorIs(t, err, beam.ErrQueueURLRequired)
}

func TestNewDependencies_UnknownBackend(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Backend = "vosk"

	_, err := NewDependencies(cfg, slog.Default(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vosk")
}

func TestRecognitionOptions(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Device = "accelerated"
	cfg.Language = "sv"
	cfg.CompressionRatioThreshold = 2.0

	assert.Equal(t, recognition.Options{
		Device:                    recognition.DeviceAccelerated,
		Language:                  "sv",
		CompressionRatioThreshold: 2.0,
	}, RecognitionOptions(cfg))
}
