// Package config provides configuration loading from environment variables
// and an optional .env file.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Recognition backends.
const (
	BackendWhisperCPP = "whispercpp"
	BackendRunPod     = "runpod"
	BackendBeam       = "beam"
)

// Static errors for configuration validation.
var (
	// ErrWhisperModelRequired is returned when WHISPER_MODEL is not set for the local backend.
	ErrWhisperModelRequired = errors.New("config: WHISPER_MODEL is required for the whispercpp backend")
	// ErrRunPodAPIKeyRequired is returned when RUNPOD_API_KEY is not set for the remote backend.
	ErrRunPodAPIKeyRequired = errors.New("config: RUNPOD_API_KEY is required for the runpod backend")
	// ErrRunPodEndpointIDRequired is returned when RUNPOD_ENDPOINT_ID is not set for the remote backend.
	ErrRunPodEndpointIDRequired = errors.New("config: RUNPOD_ENDPOINT_ID is required for the runpod backend")
	// ErrBeamTokenRequired is returned when BEAM_TOKEN is not set for the beam backend.
	ErrBeamTokenRequired = errors.New("config: BEAM_TOKEN is required for the beam backend")
	// ErrBeamQueueURLRequired is returned when BEAM_QUEUE_URL is not set for the beam backend.
	ErrBeamQueueURLRequired = errors.New("config: BEAM_QUEUE_URL is required for the beam backend")
	// ErrInvalid is returned for any other rejected value.
	ErrInvalid = errors.New("config: invalid value")
)

// Config holds all configuration for the application.
type Config struct {
	// Paths
	TempDir   string `env:"TEMP_DIR" json:"temp_dir"`
	OutputDir string `env:"OUTPUT_DIR, default=." json:"output_dir" validate:"required"`

	// Input and normalization settings
	FFmpegPath  string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path" validate:"required"`
	AcceptVideo bool   `env:"ACCEPT_VIDEO, default=true" json:"accept_video"`

	// Recognition settings
	Backend                   string  `env:"ASR_BACKEND, default=whispercpp" json:"backend" validate:"oneof=whispercpp runpod beam"`
	Device                    string  `env:"DEVICE, default=cpu" json:"device" validate:"oneof=cpu accelerated"`
	Language                  string  `env:"ASR_LANGUAGE" json:"language,omitempty" validate:"omitempty,alpha,min=2,max=3"`
	CompressionRatioThreshold float64 `env:"COMPRESSION_RATIO_THRESHOLD, default=2.4" json:"compression_ratio_threshold" validate:"gt=0"`

	// whisper.cpp settings
	WhisperCPPPath string `env:"WHISPER_CPP_PATH, default=whisper-cli" json:"whisper_cpp_path"`
	WhisperModel   string `env:"WHISPER_MODEL" json:"whisper_model" validate:"required_if=Backend whispercpp"`
	WhisperThreads int    `env:"WHISPER_THREADS, default=4" json:"whisper_threads" validate:"min=1"`

	// RunPod settings
	WhisperModelName string `env:"WHISPER_MODEL_NAME, default=turbo" json:"whisper_model_name"`
	RunPodAPIKey     string `env:"RUNPOD_API_KEY" json:"-" validate:"required_if=Backend runpod"` // Masked in JSON
	RunPodEndpointID string `env:"RUNPOD_ENDPOINT_ID" json:"runpod_endpoint_id" validate:"required_if=Backend runpod"`

	// Beam settings
	BeamToken    string `env:"BEAM_TOKEN" json:"-" validate:"required_if=Backend beam"` // Masked in JSON
	BeamQueueURL string `env:"BEAM_QUEUE_URL" json:"beam_queue_url" validate:"required_if=Backend beam"`

	// Shared remote settings
	RemotePollInterval time.Duration `env:"ASR_POLL_INTERVAL, default=2s" json:"poll_interval" validate:"gt=0"`
	MaxRetries         int           `env:"ASR_MAX_RETRIES, default=0" json:"max_retries" validate:"min=0"`

	// Optional S3 staging settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// Overrides holds command line values that take precedence over the
// environment. Empty fields are ignored.
type Overrides struct {
	Backend   string
	Device    string
	Language  string
	OutputDir string
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from a .env file in the working directory, if
// present, and from environment variables. Variables already set in the
// environment win over the file.
func Load() (*Config, error) {
	return LoadWithOverrides(Overrides{})
}

// LoadWithOverrides is Load with command line overrides applied before
// validation.
func LoadWithOverrides(o Overrides) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := &Config{}
	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg.apply(o)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) apply(o Overrides) {
	if o.Backend != "" {
		c.Backend = o.Backend
	}
	if o.Device != "" {
		c.Device = o.Device
	}
	if o.Language != "" {
		c.Language = o.Language
	}
	if o.OutputDir != "" {
		c.OutputDir = o.OutputDir
	}
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	for _, fe := range verrs {
		switch fe.StructField() {
		case "WhisperModel":
			return ErrWhisperModelRequired
		case "RunPodAPIKey":
			return ErrRunPodAPIKeyRequired
		case "RunPodEndpointID":
			return ErrRunPodEndpointIDRequired
		case "BeamToken":
			return ErrBeamTokenRequired
		case "BeamQueueURL":
			return ErrBeamQueueURLRequired
		}
	}

	fe := verrs[0]
	return fmt.Errorf("%w: %s=%v fails %q", ErrInvalid, fe.StructField(), fe.Value(), fe.ActualTag())
}

// NewLogger creates a structured logger based on the configuration.
// Logs go to stderr so stdout only carries user-facing output.
func (c *Config) NewLogger() *slog.Logger {
	return c.newLogger(os.Stderr)
}

func (c *Config) newLogger(w io.Writer) *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Backend: %s, Device: %s, Language: %q, OutputDir: %s, TempDir: %s, FFmpegPath: %s, WhisperCPPPath: %s, WhisperModel: %s, WhisperModelName: %s, RunPodEndpointID: %s, BeamQueueURL: %s, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Backend,
		c.Device,
		c.Language,
		c.OutputDir,
		c.TempDir,
		c.FFmpegPath,
		c.WhisperCPPPath,
		c.WhisperModel,
		c.WhisperModelName,
		c.RunPodEndpointID,
		c.BeamQueueURL,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
