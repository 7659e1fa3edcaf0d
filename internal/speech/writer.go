package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/loqalabs/loqa-speech/internal/tts"
)

// Remote persistence outcomes, as recorded in metrics.
const (
	persistStored         = "stored"
	persistUploadFailed   = "upload_failed"
	persistRolledBack     = "rolled_back"
	persistRollbackFailed = "rollback_failed"
	persistRollbackKept   = "rollback_skipped"
	persistReadFailed     = "read_failed"
)

// WriterConfig tunes remote persistence.
type WriterConfig struct {
	// Attempts caps tries per remote step (upload, index insert). Default: 3.
	Attempts int
	// Timeout bounds one detached persistence run. Default: 30s.
	Timeout time.Duration
	// RetryInterval is the first backoff interval. Default: 200ms.
	RetryInterval time.Duration
}

// Writer persists audio to the local tier and, best-effort, the remote tier.
type Writer struct {
	local         *LocalStore
	remote        *Remote
	attempts      uint
	timeout       time.Duration
	retryInterval time.Duration
	metrics       *Metrics
	logger        *slog.Logger
	clock         func() time.Time

	wg sync.WaitGroup
}

// NewWriter creates a Writer. remote may be nil, in which case only the
// local tier is written.
func NewWriter(local *LocalStore, remote *Remote, cfg WriterConfig, metrics *Metrics, logger *slog.Logger) *Writer {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 200 * time.Millisecond
	}
	return &Writer{
		local:         local,
		remote:        remote,
		attempts:      uint(cfg.Attempts),
		timeout:       cfg.Timeout,
		retryInterval: cfg.RetryInterval,
		metrics:       metrics,
		logger:        logger.With(slog.String("component", "speech-writer")),
		clock:         time.Now,
	}
}

// PersistLocal writes audio to the local tier and returns its path.
func (w *Writer) PersistLocal(key Key, audio tts.Audio) (string, error) {
	path, err := w.local.Write(key, audio.Data)
	if err != nil {
		return "", fmt.Errorf("persist %s locally: %w", key.Stem(), err)
	}
	return path, nil
}

// PersistRemote uploads the file at localPath and then indexes it. When the
// index insert fails after a successful upload the object is deleted again,
// so the store never holds audio the index cannot reach. Object names are
// deterministic, so the delete is skipped when the index already points at
// the name: that object belongs to a committed row.
func (w *Writer) PersistRemote(ctx context.Context, key Key, localPath, text, language string) error {
	if w.remote == nil {
		return nil
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		w.metrics.recordPersist(ctx, persistReadFailed)
		return fmt.Errorf("read %s: %w", localPath, err)
	}
	name := key.ObjectName(filepath.Ext(localPath))

	if err := w.retry(ctx, func() error {
		return w.remote.Objects.Put(ctx, name, data)
	}); err != nil {
		w.metrics.recordPersist(ctx, persistUploadFailed)
		return fmt.Errorf("upload %s: %w", name, err)
	}

	row := IndexRow{
		Text:        text,
		Language:    language,
		Hash:        key.Hash,
		StoragePath: name,
		SizeBytes:   int64(len(data)),
		CreatedAt:   w.clock().UTC(),
	}
	insertErr := w.retry(ctx, func() error {
		return w.remote.Index.Insert(ctx, row)
	})
	if insertErr == nil {
		w.metrics.recordPersist(ctx, persistStored)
		return nil
	}

	rollbackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	existing, found, lookupErr := w.remote.Index.Lookup(rollbackCtx, text, language)
	switch {
	case lookupErr != nil:
		w.metrics.recordPersist(ctx, persistRollbackKept)
		return errors.Join(
			fmt.Errorf("index %s: %w", name, insertErr),
			fmt.Errorf("check index before rollback of %s: %w", name, lookupErr),
		)
	case found && existing.StoragePath == name:
		w.logger.Debug("index already references object; keeping upload",
			slog.String("key", key.Stem()),
			slogError(insertErr))
		w.metrics.recordPersist(ctx, persistStored)
		return nil
	}
	if err := w.remote.Objects.Delete(rollbackCtx, name); err != nil {
		w.metrics.recordPersist(ctx, persistRollbackFailed)
		return errors.Join(
			fmt.Errorf("index %s: %w", name, insertErr),
			fmt.Errorf("roll back upload %s: %w", name, err),
		)
	}
	w.metrics.recordPersist(ctx, persistRolledBack)
	return fmt.Errorf("index %s (upload rolled back): %w", name, insertErr)
}

// PersistRemoteAsync runs PersistRemote in the background. The caller's
// cancellation does not reach it; failures are only logged.
func (w *Writer) PersistRemoteAsync(ctx context.Context, key Key, localPath, text, language string) {
	if w.remote == nil {
		return
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				w.logger.Error("remote persistence panicked",
					slog.String("key", key.Stem()),
					slog.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
		defer cancel()
		if err := w.PersistRemote(ctx, key, localPath, text, language); err != nil {
			w.logger.Warn("remote persistence failed",
				slog.String("key", key.Stem()),
				slogError(err))
			return
		}
		w.logger.Debug("remote persistence complete", slog.String("key", key.Stem()))
	}()
}

// Wait blocks until every background persistence run has finished.
func (w *Writer) Wait() {
	w.wg.Wait()
}

func (w *Writer) retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.retryInterval
	b.MaxInterval = 20 * w.retryInterval
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, op()
	}, backoff.WithBackOff(b), backoff.WithMaxTries(w.attempts))
	return err
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
