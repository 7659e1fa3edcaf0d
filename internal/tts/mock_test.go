package tts

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMockIsDeterministic(t *testing.T) {
	m := NewMock(0)
	a, err := m.Synthesize(context.Background(), SynthRequest{Text: "Hello", Language: "en-US"})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	b, _ := m.Synthesize(context.Background(), SynthRequest{Text: "Hello", Language: "en-US"})
	if string(a.Data) != string(b.Data) || string(a.Data) != "MOCK:en-US:Hello" {
		t.Fatalf("unexpected mock audio %q / %q", a.Data, b.Data)
	}
}

func TestMockHonoursContext(t *testing.T) {
	m := NewMock(time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Synthesize(ctx, SynthRequest{Text: "Hello"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
