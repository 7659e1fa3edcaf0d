//go:build integration

package index

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/loqalabs/loqa-speech/internal/speech"
)

var _ speech.Index = (*Postgres)(nil)

func TestPostgresInsertAndLookup(t *testing.T) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("speech"),
		postgres.WithUsername("speech"),
		postgres.WithPassword("speech"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	idx, err := OpenPostgres(ctx, dsn, 2, newLogger())
	if err != nil {
		t.Fatalf("open postgres index: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })

	if _, ok, err := idx.Lookup(ctx, "Bonjour", "fr-FR"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	row := speech.IndexRow{Text: "Bonjour", Language: "fr-FR", StoragePath: "fr-FR/x.mp3", SizeBytes: 9}
	if err := idx.Insert(ctx, row); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := idx.Insert(ctx, row); err != nil {
		t.Fatalf("duplicate insert: %v", err)
	}

	got, ok, err := idx.Lookup(ctx, "Bonjour", "fr-FR")
	if err != nil || !ok {
		t.Fatalf("lookup: ok=%v err=%v", ok, err)
	}
	if got.StoragePath != "fr-FR/x.mp3" || got.SizeBytes != 9 {
		t.Fatalf("unexpected row %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Fatal("expected created_at to be set")
	}
}
