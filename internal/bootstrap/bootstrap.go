// Package bootstrap wires the pipeline and its collaborators from configuration.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/maauso/subtitler/internal/audio"
	"github.com/maauso/subtitler/internal/beam"
	"github.com/maauso/subtitler/internal/config"
	"github.com/maauso/subtitler/internal/media"
	"github.com/maauso/subtitler/internal/pipeline"
	"github.com/maauso/subtitler/internal/recognition"
	"github.com/maauso/subtitler/internal/runpod"
	"github.com/maauso/subtitler/internal/storage"
	"github.com/maauso/subtitler/internal/subtitle"
	"github.com/maauso/subtitler/internal/whispercpp"
)

// Dependencies holds all initialized dependencies for one CLI invocation.
type Dependencies struct {
	Controller *pipeline.Controller
}

// NewDependencies creates and initializes all dependencies for the application.
// hook, when non-nil, receives every pipeline state change.
func NewDependencies(cfg *config.Config, logger *slog.Logger, hook func(pipeline.State)) (*Dependencies, error) {
	store, stager, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	recognizer, err := initRecognizer(cfg, store, stager, logger)
	if err != nil {
		return nil, err
	}

	controller := pipeline.NewController(
		media.NewValidator(cfg.AcceptVideo),
		store,
		audio.NewFFmpegNormalizer(cfg.FFmpegPath),
		recognition.NewInvoker(recognizer, logger),
		subtitle.NewFileWriter(),
		pipeline.WithOutputDir(cfg.OutputDir),
		pipeline.WithRecognitionOptions(RecognitionOptions(cfg)),
		pipeline.WithLogger(logger),
		pipeline.WithStateHook(hook),
	)

	return &Dependencies{Controller: controller}, nil
}

// RecognitionOptions maps configuration onto recognizer options.
func RecognitionOptions(cfg *config.Config) recognition.Options {
	return recognition.Options{
		Device:                    recognition.Device(cfg.Device),
		Language:                  cfg.Language,
		CompressionRatioThreshold: cfg.CompressionRatioThreshold,
	}
}

// initStorage creates the temp store, plus an S3 stager when configured.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, storage.Stager, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			Prefix:          "staging/",
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Debug("S3 staging configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Debug("local storage configured",
		slog.String("temp_dir", localStore.TempDir()),
	)
	return localStore, nil, nil
}

// initRecognizer builds the configured recognition backend.
func initRecognizer(cfg *config.Config, store storage.Storage, stager storage.Stager, logger *slog.Logger) (recognition.Recognizer, error) {
	remoteOpts := []recognition.RemoteOption{
		recognition.WithPollInterval(cfg.RemotePollInterval),
		recognition.WithLogger(logger),
	}
	if stager != nil {
		remoteOpts = append(remoteOpts, recognition.WithStager(stager))
	}

	switch cfg.Backend {
	case config.BackendRunPod:
		client, err := runpod.NewClient(cfg.RunPodEndpointID,
			runpod.WithAPIKey(cfg.RunPodAPIKey),
			runpod.WithMaxRetries(cfg.MaxRetries),
		)
		if err != nil {
			return nil, fmt.Errorf("create RunPod client: %w", err)
		}
		provider := recognition.NewRunPodProvider(client, cfg.WhisperModelName)
		return recognition.NewRemote(provider, store, remoteOpts...), nil

	case config.BackendBeam:
		client, err := beam.NewClient(cfg.BeamQueueURL,
			beam.WithToken(cfg.BeamToken),
			beam.WithMaxRetries(cfg.MaxRetries),
		)
		if err != nil {
			return nil, fmt.Errorf("create Beam client: %w", err)
		}
		return recognition.NewRemote(recognition.NewBeamProvider(client), store, remoteOpts...), nil

	case config.BackendWhisperCPP, "":
		client, err := whispercpp.NewClient(cfg.WhisperModel,
			whispercpp.WithBinary(cfg.WhisperCPPPath),
			whispercpp.WithThreads(cfg.WhisperThreads),
		)
		if err != nil {
			return nil, fmt.Errorf("create whisper.cpp client: %w", err)
		}
		logger.Debug("whisper.cpp model resolved", slog.String("model", client.ModelPath()))
		return recognition.NewWhisperCPP(client), nil

	default:
		return nil, fmt.Errorf("unknown recognition backend %q", cfg.Backend)
	}
}
