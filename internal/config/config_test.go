package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"TEMP_DIR", "OUTPUT_DIR", "FFMPEG_PATH", "ACCEPT_VIDEO",
	"ASR_BACKEND", "DEVICE", "ASR_LANGUAGE", "LANGUAGE", "COMPRESSION_RATIO_THRESHOLD",
	"WHISPER_CPP_PATH", "WHISPER_MODEL", "WHISPER_THREADS", "WHISPER_MODEL_NAME",
	"RUNPOD_API_KEY", "RUNPOD_ENDPOINT_ID", "BEAM_TOKEN", "BEAM_QUEUE_URL",
	"ASR_POLL_INTERVAL", "ASR_MAX_RETRIES",
	"S3_BUCKET", "S3_REGION", "S3_ENDPOINT", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY",
	"LOG_FORMAT", "LOG_LEVEL",
}

// clearEnv unsets every key this package reads and restores them after the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

// inDir runs the test from dir so .env lookups are isolated.
func inDir(t *testing.T, dir string) {
	t.Helper()
	t.Chdir(dir)
}

func TestLoad_RequiredVariables(t *testing.T) {
	inDir(t, t.TempDir())

	t.Run("missing WHISPER_MODEL for local backend", func(t *testing.T) {
		clearEnv(t)

		_, err := Load()
		assert.ErrorIs(t, err, ErrWhisperModelRequired)
	})

	t.Run("missing RUNPOD_API_KEY for remote backend", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ASR_BACKEND", "runpod")
		t.Setenv("RUNPOD_ENDPOINT_ID", "test-endpoint")

		_, err := Load()
		assert.ErrorIs(t, err, ErrRunPodAPIKeyRequired)
	})

	t.Run("missing RUNPOD_ENDPOINT_ID for remote backend", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ASR_BACKEND", "runpod")
		t.Setenv("RUNPOD_API_KEY", "test-api-key")

		_, err := Load()
		assert.ErrorIs(t, err, ErrRunPodEndpointIDRequired)
	})

	t.Run("missing BEAM_TOKEN for beam backend", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ASR_BACKEND", "beam")
		t.Setenv("BEAM_QUEUE_URL", "https://app.beam.cloud/taskqueue/whisper/v1")

		_, err := Load()
		assert.ErrorIs(t, err, ErrBeamTokenRequired)
	})

	t.Run("missing BEAM_QUEUE_URL for beam backend", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ASR_BACKEND", "beam")
		t.Setenv("BEAM_TOKEN", "token")

		_, err := Load()
		assert.ErrorIs(t, err, ErrBeamQueueURLRequired)
	})

	t.Run("remote backend does not need a local model", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ASR_BACKEND", "runpod")
		t.Setenv("RUNPOD_API_KEY", "test-api-key")
		t.Setenv("RUNPOD_ENDPOINT_ID", "test-endpoint")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, BackendRunPod, cfg.Backend)
	})
}

func TestLoad_Defaults(t *testing.T) {
	inDir(t, t.TempDir())
	clearEnv(t)
	t.Setenv("WHISPER_MODEL", "/models")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendWhisperCPP, cfg.Backend)
	assert.Equal(t, "cpu", cfg.Device)
	assert.Empty(t, cfg.Language)
	assert.InDelta(t, 2.4, cfg.CompressionRatioThreshold, 1e-9)
	assert.Equal(t, ".", cfg.OutputDir)
	assert.Empty(t, cfg.TempDir)
	assert.Equal(t, "ffmpeg", cfg.FFmpegPath)
	assert.True(t, cfg.AcceptVideo)
	assert.Equal(t, "whisper-cli", cfg.WhisperCPPPath)
	assert.Equal(t, 4, cfg.WhisperThreads)
	assert.Equal(t, "turbo", cfg.WhisperModelName)
	assert.Equal(t, 2*time.Second, cfg.RemotePollInterval)
	assert.Zero(t, cfg.MaxRetries)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_CustomValues(t *testing.T) {
	inDir(t, t.TempDir())
	clearEnv(t)
	t.Setenv("ASR_BACKEND", "runpod")
	t.Setenv("RUNPOD_API_KEY", "custom-api-key")
	t.Setenv("RUNPOD_ENDPOINT_ID", "custom-endpoint")
	t.Setenv("ASR_POLL_INTERVAL", "500ms")
	t.Setenv("ASR_MAX_RETRIES", "3")
	t.Setenv("DEVICE", "accelerated")
	t.Setenv("ASR_LANGUAGE", "pt")
	t.Setenv("ACCEPT_VIDEO", "false")
	t.Setenv("TEMP_DIR", "/custom/temp")
	t.Setenv("S3_BUCKET", "my-bucket")
	t.Setenv("S3_REGION", "us-east-1")
	t.Setenv("S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("AWS_ACCESS_KEY_ID", "access-key")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret-key")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "custom-api-key", cfg.RunPodAPIKey)
	assert.Equal(t, "custom-endpoint", cfg.RunPodEndpointID)
	assert.Equal(t, 500*time.Millisecond, cfg.RemotePollInterval)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, "accelerated", cfg.Device)
	assert.Equal(t, "pt", cfg.Language)
	assert.False(t, cfg.AcceptVideo)
	assert.Equal(t, "/custom/temp", cfg.TempDir)
	assert.True(t, cfg.S3Enabled())
	assert.Equal(t, "http://localhost:9000", cfg.S3Endpoint)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_InvalidValues(t *testing.T) {
	inDir(t, t.TempDir())

	tests := []struct {
		key, value string
	}{
		{"ASR_BACKEND", "vosk"},
		{"DEVICE", "tpu"},
		{"WHISPER_THREADS", "0"},
		{"COMPRESSION_RATIO_THRESHOLD", "0"},
		{"ASR_LANGUAGE", "en_US"},
		{"ASR_LANGUAGE", "english"},
		{"ASR_POLL_INTERVAL", "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("WHISPER_MODEL", "/models")
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}

	t.Run("unparsable integer", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("WHISPER_MODEL", "/models")
		t.Setenv("WHISPER_THREADS", "many")

		_, err := Load()
		require.Error(t, err)
	})
}

func TestLoad_IgnoresLocaleLanguageList(t *testing.T) {
	inDir(t, t.TempDir())
	clearEnv(t)
	t.Setenv("WHISPER_MODEL", "/models")
	t.Setenv("LANGUAGE", "en_US:en")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Language)
}

func TestLoadWithOverrides_RejectsMalformedLanguage(t *testing.T) {
	inDir(t, t.TempDir())
	clearEnv(t)
	t.Setenv("WHISPER_MODEL", "/models")

	_, err := LoadWithOverrides(Overrides{Language: "en_US:en"})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("WHISPER_MODEL=/from/dotenv\nASR_LANGUAGE=it\n"), 0o600))
	inDir(t, dir)
	clearEnv(t)
	t.Setenv("ASR_LANGUAGE", "fr")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/from/dotenv", cfg.WhisperModel)
	assert.Equal(t, "fr", cfg.Language, "environment wins over .env")
}

func TestLoadWithOverrides(t *testing.T) {
	inDir(t, t.TempDir())
	clearEnv(t)
	t.Setenv("RUNPOD_API_KEY", "key")
	t.Setenv("RUNPOD_ENDPOINT_ID", "endpoint")
	t.Setenv("ASR_LANGUAGE", "en")

	cfg, err := LoadWithOverrides(Overrides{
		Backend:   "runpod",
		Device:    "accelerated",
		Language:  "ko",
		OutputDir: "/out",
	})
	require.NoError(t, err)

	assert.Equal(t, BackendRunPod, cfg.Backend)
	assert.Equal(t, "accelerated", cfg.Device)
	assert.Equal(t, "ko", cfg.Language)
	assert.Equal(t, "/out", cfg.OutputDir)
}

func TestConfig_S3Enabled(t *testing.T) {
	tests := []struct {
		name     string
		bucket   string
		region   string
		expected bool
	}{
		{"both set", "bucket", "region", true},
		{"only bucket", "bucket", "", false},
		{"only region", "", "region", false},
		{"neither set", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				S3Bucket: tt.bucket,
				S3Region: tt.region,
			}
			assert.Equal(t, tt.expected, cfg.S3Enabled())
		})
	}
}

func TestConfig_String(t *testing.T) {
	cfg := &Config{
		Backend:            "runpod",
		RunPodAPIKey:       "secret-key",
		RunPodEndpointID:   "endpoint-123",
		AWSSecretAccessKey: "aws-secret",
		TempDir:            "/tmp/test",
		LogFormat:          "json",
		LogLevel:           "info",
	}

	str := cfg.String()

	assert.Contains(t, str, "runpod")
	assert.Contains(t, str, "endpoint-123")
	assert.Contains(t, str, "/tmp/test")

	assert.NotContains(t, str, "secret-key")
	assert.NotContains(t, str, "aws-secret")
}

func TestConfig_JSONMasksSecrets(t *testing.T) {
	cfg := &Config{RunPodAPIKey: "secret-key", BeamToken: "beam-token", AWSAccessKeyID: "akid"}

	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	assert.NotContains(t, string(data), "secret-key")
	assert.NotContains(t, string(data), "beam-token")
	assert.NotContains(t, string(data), "akid")
}

func TestConfig_NewLogger(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		cfg := &Config{LogFormat: "json", LogLevel: "info"}

		cfg.newLogger(&buf).Info("test message", slog.String("run_id", "run-1"))

		assert.Contains(t, buf.String(), `"msg":"test message"`)
		assert.Contains(t, buf.String(), `"run_id":"run-1"`)
	})

	t.Run("text filters below level", func(t *testing.T) {
		var buf bytes.Buffer
		cfg := &Config{LogFormat: "text", LogLevel: "warn"}
		logger := cfg.newLogger(&buf)

		logger.Info("hidden")
		logger.Warn("shown")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "msg=shown")
	})

	t.Run("default writes to stderr", func(t *testing.T) {
		assert.NotNil(t, (&Config{}).NewLogger())
	})
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}
