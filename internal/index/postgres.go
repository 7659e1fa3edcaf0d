package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loqalabs/loqa-speech/internal/speech"
)

// Postgres is an Index shared by every speech node through PostgreSQL.
// All methods are safe for concurrent use.
type Postgres struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// OpenPostgres connects to dsn and ensures the schema exists.
func OpenPostgres(ctx context.Context, dsn string, maxConns int, log *slog.Logger) (*Postgres, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	p := &Postgres{pool: pool, log: log.With(slog.String("component", "speech-index"))}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	p.log.Info("speech index opened", slog.String("driver", "postgres"))
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS speech_audio (
		    id           BIGSERIAL PRIMARY KEY,
		    language     TEXT        NOT NULL,
		    text_hash    TEXT        NOT NULL,
		    text         TEXT        NOT NULL,
		    storage_path TEXT        NOT NULL,
		    size_bytes   BIGINT      NOT NULL,
		    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		    UNIQUE (language, text_hash, text)
		)`
	if _, err := p.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("speech index: migrate: %w", err)
	}
	return nil
}

// Lookup implements speech.Index.
func (p *Postgres) Lookup(ctx context.Context, text, language string) (speech.IndexRow, bool, error) {
	const q = `
		SELECT text_hash, storage_path, size_bytes, created_at
		FROM   speech_audio
		WHERE  language = $1 AND text_hash = $2 AND text = $3`

	row := speech.IndexRow{Text: text, Language: language}
	err := p.pool.QueryRow(ctx, q, language, speech.Fingerprint(text), text).
		Scan(&row.Hash, &row.StoragePath, &row.SizeBytes, &row.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return speech.IndexRow{}, false, nil
	}
	if err != nil {
		return speech.IndexRow{}, false, fmt.Errorf("speech index: lookup: %w", err)
	}
	return row, true, nil
}

// Insert implements speech.Index. Duplicate rows are ignored.
func (p *Postgres) Insert(ctx context.Context, row speech.IndexRow) error {
	const q = `
		INSERT INTO speech_audio (language, text_hash, text, storage_path, size_bytes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (language, text_hash, text) DO NOTHING`

	if row.Hash == "" {
		row.Hash = speech.Fingerprint(row.Text)
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	if _, err := p.pool.Exec(ctx, q,
		row.Language, row.Hash, row.Text, row.StoragePath, row.SizeBytes, row.CreatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("speech index: insert: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}
