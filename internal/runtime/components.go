package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/loqalabs/loqa-speech/internal/bus"
	"github.com/loqalabs/loqa-speech/internal/config"
	"github.com/loqalabs/loqa-speech/internal/index"
	"github.com/loqalabs/loqa-speech/internal/objectstore"
	"github.com/loqalabs/loqa-speech/internal/speech"
	"github.com/loqalabs/loqa-speech/internal/tts"
)

func newSynthesizer(cfg config.TTSConfig) (tts.Synthesizer, error) {
	switch cfg.Mode {
	case "", "mock":
		return tts.NewMock(0), nil
	case "elevenlabs":
		return tts.NewElevenLabs(cfg.APIKey, cfg.Voice,
			tts.WithEndpoint(cfg.Endpoint),
			tts.WithModel(cfg.Model),
			tts.WithOutputFormat(cfg.OutputFormat),
		)
	case "exec":
		return tts.NewExec(cfg.Command, cfg.Voice, cfg.SampleRate, cfg.Channels)
	default:
		return nil, fmt.Errorf("unknown tts mode %q", cfg.Mode)
	}
}

// openRemote builds the remote tier. It returns nil when the tier is
// disabled. busClient is only needed for the nats object driver.
func openRemote(ctx context.Context, cfg config.RemoteConfig, busClient *bus.Client, logger *slog.Logger) (*speech.Remote, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	var (
		idx speech.Index
		err error
	)
	switch cfg.Index.Driver {
	case "sqlite":
		idx, err = index.OpenSQLite(ctx, cfg.Index.Path, logger)
	case "postgres":
		idx, err = index.OpenPostgres(ctx, cfg.Index.DSN, cfg.Index.MaxConns, logger)
	default:
		err = fmt.Errorf("unknown index driver %q", cfg.Index.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open speech index: %w", err)
	}

	var objects speech.ObjectStore
	switch cfg.Objects.Driver {
	case "nats":
		if busClient == nil {
			err = errors.New("nats object driver requires a bus connection")
			break
		}
		objects, err = objectstore.OpenNATS(ctx, busClient.JetStream(), cfg.Objects.Bucket, logger)
	case "redis":
		objects, err = objectstore.OpenRedis(ctx, cfg.Objects.RedisURL, logger)
	default:
		err = fmt.Errorf("unknown object driver %q", cfg.Objects.Driver)
	}
	if err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("open speech objects: %w", err)
	}

	if cfg.Objects.Compress {
		compressed, err := objectstore.NewCompressed(objects)
		if err != nil {
			_ = idx.Close()
			_ = objects.Close()
			return nil, err
		}
		objects = compressed
	}
	return &speech.Remote{Index: idx, Objects: objects}, nil
}

func resolveLanguages(codes []string) (*speech.Languages, error) {
	if len(codes) == 0 {
		codes = speech.DefaultLanguages
	}
	return speech.NewLanguages(codes)
}
