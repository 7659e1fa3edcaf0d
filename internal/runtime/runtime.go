package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loqalabs/loqa-speech/internal/bus"
	"github.com/loqalabs/loqa-speech/internal/config"
	"github.com/loqalabs/loqa-speech/internal/natsserver"
	"github.com/loqalabs/loqa-speech/internal/speech"
)

type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	embedded    *natsserver.EmbeddedServer
	bus         *bus.Client
	remote      *speech.Remote
	resolver    *speech.Resolver
	service     *speech.Service
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tel, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = tel.shutdown
	defer r.shutdown()

	if err := r.startBus(ctx); err != nil {
		return err
	}

	handler, err := r.startSpeech(ctx, tel)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	mux.Handle("/v1/speech", handler)
	if tel.metricHandler != nil {
		mux.Handle("/metrics", tel.metricHandler)
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
			cancel()
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started", slog.String("addr", addr))

	<-ctx.Done()
	r.ready.Store(false)
	r.logger.Info("runtime stopping")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	return nil
}

func (r *Runtime) startBus(ctx context.Context) error {
	busCfg := r.cfg.Bus
	embedded, err := natsserver.Start(busCfg, r.logger)
	if err != nil {
		return err
	}
	r.embedded = embedded
	if embedded != nil {
		busCfg.Servers = []string{embedded.ClientURL()}
	}

	client, err := bus.Connect(ctx, busCfg, r.logger)
	if err != nil {
		return err
	}
	r.bus = client
	return nil
}

func (r *Runtime) startSpeech(ctx context.Context, tel *telemetry) (http.Handler, error) {
	cfg := r.cfg

	languages, err := resolveLanguages(cfg.Speech.Languages)
	if err != nil {
		return nil, err
	}
	synth, err := newSynthesizer(cfg.TTS)
	if err != nil {
		return nil, fmt.Errorf("create synthesizer: %w", err)
	}
	local, err := speech.NewLocalStore(cfg.Speech.CacheDir, synth.Format().Extension)
	if err != nil {
		return nil, err
	}
	remote, err := openRemote(ctx, cfg.Remote, r.bus, r.logger)
	if err != nil {
		return nil, err
	}
	r.remote = remote

	metrics, err := speech.NewMetrics(tel.meterProvider)
	if err != nil {
		return nil, fmt.Errorf("create speech metrics: %w", err)
	}
	queue := speech.NewAdmissionQueue(cfg.Speech.ConcurrencyLimit)
	if err := metrics.ObserveQueue(queue); err != nil {
		return nil, fmt.Errorf("observe admission queue: %w", err)
	}

	writer := speech.NewWriter(local, remote, speech.WriterConfig{
		Attempts: cfg.Remote.PersistAttempts,
		Timeout:  time.Duration(cfg.Remote.PersistTimeoutMS) * time.Millisecond,
	}, metrics, r.logger)

	resolver, err := speech.NewResolver(speech.ResolverDeps{
		Languages:   languages,
		Local:       local,
		Remote:      remote,
		Queue:       queue,
		Synthesizer: synth,
		Writer:      writer,
		Metrics:     metrics,
		Logger:      r.logger,
	}, speech.ResolverConfig{
		Voice:            cfg.TTS.Voice,
		SynthesisTimeout: time.Duration(cfg.Speech.SynthesisTimeoutMS) * time.Millisecond,
		RemoteTimeout:    time.Duration(cfg.Remote.LookupTimeoutMS) * time.Millisecond,
	})
	if err != nil {
		return nil, err
	}
	r.resolver = resolver

	requestTimeout := time.Duration(cfg.Speech.RequestTimeoutMS) * time.Millisecond
	r.service = speech.NewService(ctx, resolver, r.bus.Conn(), requestTimeout, r.logger)
	if err := r.service.Start(); err != nil {
		return nil, fmt.Errorf("start speech service: %w", err)
	}

	r.logger.Info("speech pipeline ready",
		slog.String("tts_mode", cfg.TTS.Mode),
		slog.String("cache_dir", local.Dir()),
		slog.Int("concurrency_limit", cfg.Speech.ConcurrencyLimit),
		slog.Bool("remote", remote != nil),
		slog.Int("languages", len(languages.List())))

	return speech.NewHandler(resolver, synth.Format(), requestTimeout, r.logger), nil
}

// shutdown releases components in reverse start order. Background uploads
// are drained before the stores they write to are closed.
func (r *Runtime) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if r.service != nil {
		r.service.Close()
	}
	if r.resolver != nil {
		r.resolver.Wait()
	}
	if err := r.remote.Close(); err != nil {
		r.logger.Error("remote tier close error", slog.String("error", err.Error()))
	}
	r.bus.Close()
	r.embedded.Shutdown()

	if r.tracerClose != nil {
		if err := r.tracerClose(ctx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() && r.bus.Healthy() && r.service != nil && r.service.Healthy() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
