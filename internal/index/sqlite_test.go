package index

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/loqalabs/loqa-speech/internal/speech"
)

var _ speech.Index = (*SQLite)(nil)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func openTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	idx, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "nested", "index.db"), newLogger())
	if err != nil {
		t.Fatalf("open sqlite index: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestSQLiteInsertAndLookup(t *testing.T) {
	ctx := context.Background()
	idx := openTestSQLite(t)

	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	row := speech.IndexRow{
		Text:        "Hola",
		Language:    "es-ES",
		StoragePath: "es-ES/es-ES-4abc.mp3",
		SizeBytes:   42,
		CreatedAt:   created,
	}
	if err := idx.Insert(ctx, row); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, ok, err := idx.Lookup(ctx, "Hola", "es-ES")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !ok {
		t.Fatal("expected hit")
	}
	if got.StoragePath != row.StoragePath || got.SizeBytes != 42 {
		t.Fatalf("unexpected row %+v", got)
	}
	if got.Hash != speech.Fingerprint("Hola") {
		t.Fatalf("expected hash to be derived from text, got %q", got.Hash)
	}
	if !got.CreatedAt.Equal(created) {
		t.Fatalf("expected created_at %v, got %v", created, got.CreatedAt)
	}
}

func TestSQLiteLookupIsExact(t *testing.T) {
	ctx := context.Background()
	idx := openTestSQLite(t)

	if err := idx.Insert(ctx, speech.IndexRow{Text: "Hola", Language: "es-ES", StoragePath: "a", SizeBytes: 1}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	for _, tc := range []struct{ text, lang string }{
		{"hola", "es-ES"},
		{"Hola", "es-MX"},
		{"Hola ", "es-ES"},
	} {
		if _, ok, err := idx.Lookup(ctx, tc.text, tc.lang); err != nil || ok {
			t.Fatalf("lookup(%q, %q) = ok %v err %v, want miss", tc.text, tc.lang, ok, err)
		}
	}
}

func TestSQLiteInsertDuplicateKeepsFirst(t *testing.T) {
	ctx := context.Background()
	idx := openTestSQLite(t)

	first := speech.IndexRow{Text: "Hello", Language: "en-US", StoragePath: "first", SizeBytes: 1}
	if err := idx.Insert(ctx, first); err != nil {
		t.Fatalf("insert: %v", err)
	}
	second := first
	second.StoragePath = "second"
	if err := idx.Insert(ctx, second); err != nil {
		t.Fatalf("duplicate insert should be a no-op, got %v", err)
	}

	got, ok, err := idx.Lookup(ctx, "Hello", "en-US")
	if err != nil || !ok {
		t.Fatalf("lookup: ok=%v err=%v", ok, err)
	}
	if got.StoragePath != "first" {
		t.Fatalf("expected first row to win, got %q", got.StoragePath)
	}
}
