package speech

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/loqalabs/loqa-speech/internal/tts"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeSynth counts calls and can be made to fail or to block until released.
type fakeSynth struct {
	calls atomic.Int32
	err   error
	gate  chan struct{}
}

func (f *fakeSynth) Format() tts.AudioFormat { return tts.FormatFor("mp3_44100_128") }

func (f *fakeSynth) Synthesize(ctx context.Context, req tts.SynthRequest) (tts.Audio, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return tts.Audio{}, ctx.Err()
		}
	}
	if f.err != nil {
		return tts.Audio{}, f.err
	}
	return tts.Audio{Data: []byte("AUDIO:" + req.Language + ":" + req.Text), Format: f.Format()}, nil
}

type memIndex struct {
	mu        sync.Mutex
	rows      map[string]IndexRow
	lookups   atomic.Int32
	lookupErr error
	insertErr error
}

func newMemIndex() *memIndex { return &memIndex{rows: make(map[string]IndexRow)} }

func (m *memIndex) Lookup(_ context.Context, text, language string) (IndexRow, bool, error) {
	m.lookups.Add(1)
	if m.lookupErr != nil {
		return IndexRow{}, false, m.lookupErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[language+"\x00"+text]
	return row, ok, nil
}

func (m *memIndex) Insert(_ context.Context, row IndexRow) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[row.Language+"\x00"+row.Text] = row
	return nil
}

func (m *memIndex) Close() error { return nil }

func (m *memIndex) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type memObjects struct {
	mu        sync.Mutex
	objects   map[string][]byte
	gets      atomic.Int32
	putErr    error
	getErr    error
	deleteErr error
	deletes   atomic.Int32
}

func newMemObjects() *memObjects { return &memObjects{objects: make(map[string][]byte)} }

func (m *memObjects) Put(_ context.Context, name string, data []byte) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[name] = append([]byte(nil), data...)
	return nil
}

func (m *memObjects) Get(_ context.Context, name string) ([]byte, error) {
	m.gets.Add(1)
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[name]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return data, nil
}

func (m *memObjects) Delete(_ context.Context, name string) error {
	m.deletes.Add(1)
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, name)
	return nil
}

func (m *memObjects) Close() error { return nil }

func (m *memObjects) has(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[name]
	return ok
}

type testPipeline struct {
	resolver *Resolver
	local    *LocalStore
	index    *memIndex
	objects  *memObjects
	synth    *fakeSynth
}

func newTestPipeline(t *testing.T, withRemote bool) *testPipeline {
	t.Helper()
	p := &testPipeline{synth: &fakeSynth{}}

	local, err := NewLocalStore(t.TempDir(), ".mp3")
	if err != nil {
		t.Fatalf("local store: %v", err)
	}
	p.local = local

	var remote *Remote
	if withRemote {
		p.index = newMemIndex()
		p.objects = newMemObjects()
		remote = &Remote{Index: p.index, Objects: p.objects}
	}

	languages, err := NewLanguages([]string{"en-US", "es-ES", "fr-FR"})
	if err != nil {
		t.Fatalf("languages: %v", err)
	}
	writer := NewWriter(local, remote, WriterConfig{Attempts: 2, RetryInterval: 1}, nil, newLogger())
	resolver, err := NewResolver(ResolverDeps{
		Languages:   languages,
		Local:       local,
		Remote:      remote,
		Queue:       NewAdmissionQueue(2),
		Synthesizer: p.synth,
		Writer:      writer,
		Logger:      newLogger(),
	}, ResolverConfig{})
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	p.resolver = resolver
	t.Cleanup(resolver.Wait)
	return p
}
