package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	LogFormat    string `yaml:"log_format"` // json, text
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	RuntimeName string          `yaml:"runtime_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Bus         BusConfig       `yaml:"bus"`
	Speech      SpeechConfig    `yaml:"speech"`
	TTS         TTSConfig       `yaml:"tts"`
	Remote      RemoteConfig    `yaml:"remote"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type SpeechConfig struct {
	// Languages is the supported set; empty means the built-in course list.
	Languages          []string `yaml:"languages"`
	CacheDir           string   `yaml:"cache_dir"`
	ConcurrencyLimit   int      `yaml:"concurrency_limit"`
	RequestTimeoutMS   int      `yaml:"request_timeout_ms"`
	SynthesisTimeoutMS int      `yaml:"synthesis_timeout_ms"`
}

type TTSConfig struct {
	Mode         string `yaml:"mode"` // mock, elevenlabs, exec
	Endpoint     string `yaml:"endpoint"`
	APIKey       string `yaml:"api_key"`
	Voice        string `yaml:"voice"`
	Model        string `yaml:"model"`
	OutputFormat string `yaml:"output_format"`
	Command      string `yaml:"command"`
	SampleRate   int    `yaml:"sample_rate"`
	Channels     int    `yaml:"channels"`
}

type RemoteConfig struct {
	Enabled          bool         `yaml:"enabled"`
	PersistAttempts  int          `yaml:"persist_attempts"`
	PersistTimeoutMS int          `yaml:"persist_timeout_ms"`
	LookupTimeoutMS  int          `yaml:"lookup_timeout_ms"`
	Index            IndexConfig  `yaml:"index"`
	Objects          ObjectConfig `yaml:"objects"`
}

type IndexConfig struct {
	Driver   string `yaml:"driver"` // sqlite, postgres
	Path     string `yaml:"path"`
	DSN      string `yaml:"dsn"`
	MaxConns int    `yaml:"max_conns"`
}

type ObjectConfig struct {
	Driver   string `yaml:"driver"` // nats, redis
	Bucket   string `yaml:"bucket"`
	RedisURL string `yaml:"redis_url"`
	Compress bool   `yaml:"compress"`
}

func Default() Config {
	return Config{
		RuntimeName: "loqa-speech",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			LogFormat:    "json",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Speech: SpeechConfig{
			CacheDir:           "./data/speech",
			ConcurrencyLimit:   4,
			RequestTimeoutMS:   30000,
			SynthesisTimeoutMS: 60000,
		},
		TTS: TTSConfig{
			Mode:         "mock",
			Endpoint:     "https://api.elevenlabs.io",
			Voice:        "21m00Tcm4TlvDq8ikWAM",
			Model:        "eleven_multilingual_v2",
			OutputFormat: "mp3_44100_128",
			SampleRate:   22050,
			Channels:     1,
		},
		Remote: RemoteConfig{
			Enabled:          false,
			PersistAttempts:  3,
			PersistTimeoutMS: 30000,
			LookupTimeoutMS:  5000,
			Index: IndexConfig{
				Driver:   "sqlite",
				Path:     "./data/speech-index.db",
				MaxConns: 4,
			},
			Objects: ObjectConfig{
				Driver:   "nats",
				Bucket:   "speech-audio",
				RedisURL: "redis://localhost:6379/0",
				Compress: true,
			},
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "LOQA_RUNTIME_NAME")
	overrideString(&cfg.Environment, "LOQA_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "LOQA_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "LOQA_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "LOQA_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.LogFormat, "LOQA_TELEMETRY_LOG_FORMAT")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "LOQA_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "LOQA_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Bus.Embedded, "LOQA_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "LOQA_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "LOQA_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "LOQA_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "LOQA_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "LOQA_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "LOQA_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "LOQA_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "LOQA_BUS_CONNECT_TIMEOUT_MS")
	overrideStringSlice(&cfg.Speech.Languages, "LOQA_SPEECH_LANGUAGES")
	overrideString(&cfg.Speech.CacheDir, "LOQA_SPEECH_CACHE_DIR")
	overrideInt(&cfg.Speech.ConcurrencyLimit, "LOQA_SPEECH_CONCURRENCY_LIMIT")
	overrideInt(&cfg.Speech.RequestTimeoutMS, "LOQA_SPEECH_REQUEST_TIMEOUT_MS")
	overrideInt(&cfg.Speech.SynthesisTimeoutMS, "LOQA_SPEECH_SYNTHESIS_TIMEOUT_MS")
	overrideString(&cfg.TTS.Mode, "LOQA_TTS_MODE")
	overrideString(&cfg.TTS.Endpoint, "LOQA_TTS_ENDPOINT")
	overrideString(&cfg.TTS.APIKey, "ELEVENLABS_API_KEY")
	overrideString(&cfg.TTS.APIKey, "LOQA_TTS_API_KEY")
	overrideString(&cfg.TTS.Voice, "LOQA_TTS_VOICE")
	overrideString(&cfg.TTS.Model, "LOQA_TTS_MODEL")
	overrideString(&cfg.TTS.OutputFormat, "LOQA_TTS_OUTPUT_FORMAT")
	overrideString(&cfg.TTS.Command, "LOQA_TTS_COMMAND")
	overrideInt(&cfg.TTS.SampleRate, "LOQA_TTS_SAMPLE_RATE")
	overrideInt(&cfg.TTS.Channels, "LOQA_TTS_CHANNELS")
	overrideBool(&cfg.Remote.Enabled, "LOQA_REMOTE_ENABLED")
	overrideInt(&cfg.Remote.PersistAttempts, "LOQA_REMOTE_PERSIST_ATTEMPTS")
	overrideInt(&cfg.Remote.PersistTimeoutMS, "LOQA_REMOTE_PERSIST_TIMEOUT_MS")
	overrideInt(&cfg.Remote.LookupTimeoutMS, "LOQA_REMOTE_LOOKUP_TIMEOUT_MS")
	overrideString(&cfg.Remote.Index.Driver, "LOQA_REMOTE_INDEX_DRIVER")
	overrideString(&cfg.Remote.Index.Path, "LOQA_REMOTE_INDEX_PATH")
	overrideString(&cfg.Remote.Index.DSN, "LOQA_REMOTE_INDEX_DSN")
	overrideInt(&cfg.Remote.Index.MaxConns, "LOQA_REMOTE_INDEX_MAX_CONNS")
	overrideString(&cfg.Remote.Objects.Driver, "LOQA_REMOTE_OBJECTS_DRIVER")
	overrideString(&cfg.Remote.Objects.Bucket, "LOQA_REMOTE_OBJECTS_BUCKET")
	overrideString(&cfg.Remote.Objects.RedisURL, "LOQA_REMOTE_OBJECTS_REDIS_URL")
	overrideBool(&cfg.Remote.Objects.Compress, "LOQA_REMOTE_OBJECTS_COMPRESS")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	switch cfg.Telemetry.LogFormat {
	case "json", "text":
	default:
		return errors.New("telemetry.log_format must be one of json|text")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
		if cfg.Bus.StoreDir == "" {
			return errors.New("bus.store_dir must not be empty when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Speech.CacheDir == "" {
		return errors.New("speech.cache_dir must not be empty")
	}
	if cfg.Speech.ConcurrencyLimit <= 0 {
		return errors.New("speech.concurrency_limit must be >= 1")
	}
	if cfg.Speech.RequestTimeoutMS <= 0 {
		return errors.New("speech.request_timeout_ms must be positive")
	}
	if cfg.Speech.SynthesisTimeoutMS <= 0 {
		return errors.New("speech.synthesis_timeout_ms must be positive")
	}
	switch cfg.TTS.Mode {
	case "mock":
	case "elevenlabs":
		if cfg.TTS.APIKey == "" {
			return errors.New("tts.api_key must be set when mode=elevenlabs")
		}
		if cfg.TTS.Voice == "" {
			return errors.New("tts.voice must be set when mode=elevenlabs")
		}
	case "exec":
		if cfg.TTS.Command == "" {
			return errors.New("tts.command must be set when mode=exec")
		}
		if cfg.TTS.SampleRate <= 0 {
			return errors.New("tts.sample_rate must be positive")
		}
		if cfg.TTS.Channels <= 0 {
			return errors.New("tts.channels must be positive")
		}
	default:
		return errors.New("tts.mode must be one of mock|elevenlabs|exec")
	}
	if cfg.Remote.Enabled {
		if cfg.Remote.PersistAttempts <= 0 {
			return errors.New("remote.persist_attempts must be >= 1")
		}
		if cfg.Remote.LookupTimeoutMS <= 0 {
			return errors.New("remote.lookup_timeout_ms must be positive")
		}
		switch cfg.Remote.Index.Driver {
		case "sqlite":
			if cfg.Remote.Index.Path == "" {
				return errors.New("remote.index.path must be set when driver=sqlite")
			}
		case "postgres":
			if cfg.Remote.Index.DSN == "" {
				return errors.New("remote.index.dsn must be set when driver=postgres")
			}
		default:
			return errors.New("remote.index.driver must be one of sqlite|postgres")
		}
		switch cfg.Remote.Objects.Driver {
		case "nats":
			if cfg.Remote.Objects.Bucket == "" {
				return errors.New("remote.objects.bucket must be set when driver=nats")
			}
		case "redis":
			if cfg.Remote.Objects.RedisURL == "" {
				return errors.New("remote.objects.redis_url must be set when driver=redis")
			}
		default:
			return errors.New("remote.objects.driver must be one of nats|redis")
		}
	}
	return nil
}
