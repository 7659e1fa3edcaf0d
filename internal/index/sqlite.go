// Package index implements the remote tier's lookup table: a mapping from
// (text, language) to the object that holds the synthesized audio.
package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/loqalabs/loqa-speech/internal/speech"
)

// SQLite is an Index stored in a single SQLite file. It suits single-host
// deployments where the "remote" tier is a shared volume.
type SQLite struct {
	db  *sql.DB
	log *slog.Logger
}

// OpenSQLite opens (and if needed creates) the index at path.
func OpenSQLite(ctx context.Context, path string, log *slog.Logger) (*SQLite, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &SQLite{db: db, log: log.With(slog.String("component", "speech-index"))}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	s.log.Info("speech index opened", slog.String("driver", "sqlite"), slog.String("path", path))
	return s, nil
}

func (s *SQLite) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS speech_audio (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    language TEXT NOT NULL,
    text_hash TEXT NOT NULL,
    text TEXT NOT NULL,
    storage_path TEXT NOT NULL,
    size_bytes INTEGER NOT NULL,
    created_at TEXT NOT NULL,
    UNIQUE(language, text_hash, text)
);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("init speech index schema: %w", err)
	}
	return nil
}

// Lookup implements speech.Index.
func (s *SQLite) Lookup(ctx context.Context, text, language string) (speech.IndexRow, bool, error) {
	row := speech.IndexRow{Text: text, Language: language}
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT text_hash, storage_path, size_bytes, created_at
		 FROM speech_audio WHERE language = ? AND text_hash = ? AND text = ?`,
		language, speech.Fingerprint(text), text,
	).Scan(&row.Hash, &row.StoragePath, &row.SizeBytes, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return speech.IndexRow{}, false, nil
	}
	if err != nil {
		return speech.IndexRow{}, false, fmt.Errorf("query speech index: %w", err)
	}
	if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
		row.CreatedAt = ts
	}
	return row, true, nil
}

// Insert implements speech.Index. Inserting a row that already exists is a
// no-op: storage paths are deterministic, so the existing row is equivalent.
func (s *SQLite) Insert(ctx context.Context, row speech.IndexRow) error {
	if row.Hash == "" {
		row.Hash = speech.Fingerprint(row.Text)
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO speech_audio(language, text_hash, text, storage_path, size_bytes, created_at)
		 VALUES(?, ?, ?, ?, ?, ?)
		 ON CONFLICT(language, text_hash, text) DO NOTHING`,
		row.Language, row.Hash, row.Text, row.StoragePath, row.SizeBytes,
		row.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert speech index row: %w", err)
	}
	return nil
}

// Close releases underlying resources.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
