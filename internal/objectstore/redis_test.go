//go:build integration

package objectstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/loqalabs/loqa-speech/internal/speech"
)

func TestRedisRoundTrip(t *testing.T) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}

	store, err := OpenRedis(ctx, fmt.Sprintf("redis://%s:%s/0", host, port.Port()), newLogger())
	if err != nil {
		t.Fatalf("open redis: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.Put(ctx, "de-DE/x.mp3", []byte("hallo")); err != nil {
		t.Fatalf("put: %v", err)
	}
	data, err := store.Get(ctx, "de-DE/x.mp3")
	if err != nil || string(data) != "hallo" {
		t.Fatalf("get: %q %v", data, err)
	}
	if err := store.Delete(ctx, "de-DE/x.mp3"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "de-DE/x.mp3"); !errors.Is(err, speech.ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}
