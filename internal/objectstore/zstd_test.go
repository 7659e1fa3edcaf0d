package objectstore

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/loqalabs/loqa-speech/internal/speech"
)

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	closed  bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte)}
}

func (m *memoryStore) Put(_ context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[name] = append([]byte(nil), data...)
	return nil
}

func (m *memoryStore) Get(_ context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[name]
	if !ok {
		return nil, speech.ErrObjectNotFound
	}
	return data, nil
}

func (m *memoryStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, name)
	return nil
}

func (m *memoryStore) Close() error {
	m.closed = true
	return nil
}

func TestCompressedRoundTrip(t *testing.T) {
	inner := newMemoryStore()
	store, err := NewCompressed(inner)
	if err != nil {
		t.Fatalf("new compressed: %v", err)
	}
	ctx := context.Background()

	payload := bytes.Repeat([]byte("MOCK:en-US:hello "), 256)
	if err := store.Put(ctx, "a", payload); err != nil {
		t.Fatalf("put: %v", err)
	}
	stored := inner.objects["a"]
	if !bytes.HasPrefix(stored, zstdMagic) {
		t.Fatal("expected stored object to be zstd framed")
	}
	if len(stored) >= len(payload) {
		t.Fatalf("expected compression, stored %d of %d bytes", len(stored), len(payload))
	}

	got, err := store.Get(ctx, "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("round trip mismatch")
	}

	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !inner.closed {
		t.Fatal("expected inner store to be closed")
	}
}

func TestCompressedPassesThroughPlainObjects(t *testing.T) {
	inner := newMemoryStore()
	_ = inner.Put(context.Background(), "legacy", []byte("ID3 plain mp3"))
	store, err := NewCompressed(inner)
	if err != nil {
		t.Fatalf("new compressed: %v", err)
	}
	defer store.Close()

	got, err := store.Get(context.Background(), "legacy")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "ID3 plain mp3" {
		t.Fatalf("unexpected data %q", got)
	}

	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, speech.ErrObjectNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
