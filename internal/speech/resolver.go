package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/loqalabs/loqa-speech/internal/tts"
)

// Source names the tier that answered a resolve.
type Source string

const (
	SourceLocal       Source = "local"
	SourceRemote      Source = "remote"
	SourceSynthesized Source = "synthesized"
)

var errEmptyObject = errors.New("stored object is empty")

// Entry describes resolved audio. CreatedAt is zero for local hits.
type Entry struct {
	Key       Key
	Path      string
	Source    Source
	SizeBytes int64
	CreatedAt time.Time
}

// ResolverConfig tunes the resolver. Zero values fall back to defaults.
type ResolverConfig struct {
	// Voice is passed through to the synthesizer.
	Voice string
	// SynthesisTimeout bounds one admitted vendor call. Default: 60s.
	SynthesisTimeout time.Duration
	// RemoteTimeout bounds the remote index lookup and object download of
	// one resolve. Default: 5s.
	RemoteTimeout time.Duration
}

// Resolver answers "where is the audio for this text?" by consulting the
// local tier, then the remote tier, and only then the synthesizer.
type Resolver struct {
	languages *Languages
	local     *LocalStore
	remote    *Remote
	queue     *AdmissionQueue
	synth     tts.Synthesizer
	writer    *Writer
	metrics   *Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
	clock     func() time.Time

	voice            string
	synthesisTimeout time.Duration
	remoteTimeout    time.Duration

	flight singleflight.Group
}

// ResolverDeps gathers the collaborators of a Resolver. Remote, Metrics and
// TracerProvider are optional.
type ResolverDeps struct {
	Languages   *Languages
	Local       *LocalStore
	Remote      *Remote
	Queue       *AdmissionQueue
	Synthesizer tts.Synthesizer
	Writer      *Writer
	Metrics     *Metrics
	Logger      *slog.Logger

	TracerProvider trace.TracerProvider
}

// NewResolver wires a Resolver.
func NewResolver(deps ResolverDeps, cfg ResolverConfig) (*Resolver, error) {
	switch {
	case deps.Languages == nil:
		return nil, errors.New("resolver requires a language set")
	case deps.Local == nil:
		return nil, errors.New("resolver requires a local store")
	case deps.Queue == nil:
		return nil, errors.New("resolver requires an admission queue")
	case deps.Synthesizer == nil:
		return nil, errors.New("resolver requires a synthesizer")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	writer := deps.Writer
	if writer == nil {
		writer = NewWriter(deps.Local, deps.Remote, WriterConfig{}, deps.Metrics, logger)
	}
	if cfg.SynthesisTimeout <= 0 {
		cfg.SynthesisTimeout = 60 * time.Second
	}
	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = 5 * time.Second
	}
	tp := deps.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Resolver{
		languages:        deps.Languages,
		local:            deps.Local,
		remote:           deps.Remote,
		queue:            deps.Queue,
		synth:            deps.Synthesizer,
		writer:           writer,
		metrics:          deps.Metrics,
		logger:           logger.With(slog.String("component", "speech-resolver")),
		tracer:           tp.Tracer("github.com/loqalabs/loqa-speech/internal/speech"),
		clock:            time.Now,
		voice:            cfg.Voice,
		synthesisTimeout: cfg.SynthesisTimeout,
		remoteTimeout:    cfg.RemoteTimeout,
	}, nil
}

// Resolve returns the local path of the audio for text in language.
func (r *Resolver) Resolve(ctx context.Context, text, language string) (string, error) {
	entry, err := r.ResolveEntry(ctx, text, language)
	if err != nil {
		return "", err
	}
	return entry.Path, nil
}

// ResolveEntry is Resolve with the full entry, including which tier answered.
func (r *Resolver) ResolveEntry(ctx context.Context, text, language string) (Entry, error) {
	start := r.clock()
	ctx, span := r.tracer.Start(ctx, "speech.resolve", trace.WithAttributes(
		attribute.String("speech.language", language),
		attribute.Int("speech.text_length", utf8.RuneCountInString(text)),
	))
	defer span.End()

	entry, err := r.resolve(ctx, text, language)
	r.metrics.recordResolve(ctx, entry.Source, err, r.clock().Sub(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrorCode(err))
		return Entry{}, err
	}
	span.SetAttributes(
		attribute.String("speech.source", string(entry.Source)),
		attribute.String("speech.key", entry.Key.Stem()),
	)
	return entry, nil
}

func (r *Resolver) resolve(ctx context.Context, text, language string) (Entry, error) {
	lang, err := r.languages.Canonical(language)
	if err != nil {
		return Entry{}, err
	}
	if text == "" {
		return Entry{}, ErrEmptyText
	}
	key := NewKey(text, lang)

	if entry, ok := r.lookupLocal(key); ok {
		return entry, nil
	}

	ch := r.flight.DoChan(key.Stem(), func() (any, error) {
		return r.fill(context.WithoutCancel(ctx), key, text)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return Entry{}, res.Err
		}
		return res.Val.(Entry), nil
	case <-ctx.Done():
		return Entry{}, ctx.Err()
	}
}

// fill resolves a local miss. It runs once per key no matter how many
// callers are waiting on it.
func (r *Resolver) fill(ctx context.Context, key Key, text string) (Entry, error) {
	// A concurrent fill may have finished between the first check and now.
	if entry, ok := r.lookupLocal(key); ok {
		return entry, nil
	}

	if r.remote != nil {
		entry, found, err := r.fetchRemote(ctx, key, text)
		if err != nil {
			return Entry{}, err
		}
		if found {
			return entry, nil
		}
	}
	return r.synthesize(ctx, key, text)
}

func (r *Resolver) lookupLocal(key Key) (Entry, bool) {
	path, size, ok := r.local.Lookup(key)
	if !ok {
		return Entry{}, false
	}
	return Entry{Key: key, Path: path, Source: SourceLocal, SizeBytes: size}, true
}

// fetchRemote consults the remote tier under r.remoteTimeout. A stalled index
// counts as a miss; a stalled download is a CacheDownloadError.
func (r *Resolver) fetchRemote(ctx context.Context, key Key, text string) (Entry, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.remoteTimeout)
	defer cancel()

	row, found, err := r.remote.Index.Lookup(ctx, text, key.Language)
	if err != nil {
		r.logger.Warn("remote index lookup failed; treating as miss",
			slog.String("key", key.Stem()),
			slogError(err))
		return Entry{}, false, nil
	}
	if !found {
		return Entry{}, false, nil
	}

	data, err := r.remote.Objects.Get(ctx, row.StoragePath)
	if err == nil && len(data) == 0 {
		err = errEmptyObject
	}
	if err != nil {
		return Entry{}, false, &CacheDownloadError{Key: key, Ref: row.StoragePath, Err: err}
	}

	path, err := r.local.Write(key, data)
	if err != nil {
		return Entry{}, false, fmt.Errorf("populate local cache from remote: %w", err)
	}
	r.logger.Debug("resolved from remote tier",
		slog.String("key", key.Stem()),
		slog.String("ref", row.StoragePath))
	return Entry{
		Key:       key,
		Path:      path,
		Source:    SourceRemote,
		SizeBytes: int64(len(data)),
		CreatedAt: row.CreatedAt,
	}, true, nil
}

func (r *Resolver) synthesize(ctx context.Context, key Key, text string) (Entry, error) {
	req := tts.SynthRequest{Text: text, Language: key.Language, Voice: r.voice}
	audio, err := r.queue.Do(ctx, func(ctx context.Context) (tts.Audio, error) {
		ctx, cancel := context.WithTimeout(ctx, r.synthesisTimeout)
		defer cancel()
		start := r.clock()
		audio, err := r.synth.Synthesize(ctx, req)
		if err == nil && len(audio.Data) == 0 {
			err = tts.ErrEmptyAudio
		}
		r.metrics.recordSynthesis(ctx, err, r.clock().Sub(start))
		return audio, err
	})
	if err != nil {
		r.logger.Warn("synthesis failed",
			slog.String("key", key.Stem()),
			slogError(err))
		return Entry{}, &SynthesisError{Key: key, Err: err}
	}

	path, err := r.writer.PersistLocal(key, audio)
	if err != nil {
		return Entry{}, err
	}
	r.writer.PersistRemoteAsync(ctx, key, path, text, key.Language)
	r.logger.Info("synthesized speech",
		slog.String("key", key.Stem()),
		slog.Int("bytes", len(audio.Data)))
	return Entry{
		Key:       key,
		Path:      path,
		Source:    SourceSynthesized,
		SizeBytes: int64(len(audio.Data)),
		CreatedAt: r.clock().UTC(),
	}, nil
}

// Languages returns the supported language set.
func (r *Resolver) Languages() *Languages { return r.languages }

// QueueStats exposes the admission queue counters.
func (r *Resolver) QueueStats() QueueStats { return r.queue.Stats() }

// Wait blocks until background remote persistence has drained.
func (r *Resolver) Wait() { r.writer.Wait() }
