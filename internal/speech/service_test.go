package speech

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/loqalabs/loqa-speech/internal/natsserver"
	"github.com/loqalabs/loqa-speech/internal/protocol"
)

func startTestService(t *testing.T, p *testPipeline) *nats.Conn {
	t.Helper()
	srv, err := natsserver.StartLocal(t.TempDir(), newLogger())
	if err != nil {
		t.Fatalf("start nats: %v", err)
	}
	t.Cleanup(srv.Shutdown)

	nc, err := nats.Connect(srv.ClientURL())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(nc.Close)

	svc := NewService(context.Background(), p.resolver, nc, 5*time.Second, newLogger())
	if err := svc.Start(); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(svc.Close)
	if !svc.Healthy() {
		t.Fatal("expected healthy service after start")
	}
	return nc
}

func request(t *testing.T, nc *nats.Conn, req protocol.SpeechRequest) protocol.SpeechResponse {
	t.Helper()
	data, _ := json.Marshal(req)
	msg, err := nc.Request(protocol.SubjectSpeechResolve, data, 5*time.Second)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	var resp protocol.SpeechResponse
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestServiceResolvesAndAnnounces(t *testing.T) {
	p := newTestPipeline(t, false)
	nc := startTestService(t, p)

	cached, err := nc.SubscribeSync(protocol.SubjectSpeechCached)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := nc.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	resp := request(t, nc, protocol.SpeechRequest{RequestID: "req-1", Text: "Hello", Language: "en-US"})
	if resp.Error != nil {
		t.Fatalf("unexpected error %+v", resp.Error)
	}
	key := NewKey("Hello", "en-US")
	if resp.RequestID != "req-1" || resp.Source != "synthesized" || resp.Key != key.Stem() {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Path != p.local.Path(key) {
		t.Fatalf("unexpected path %s", resp.Path)
	}

	msg, err := cached.NextMsg(2 * time.Second)
	if err != nil {
		t.Fatalf("expected speech.cached event: %v", err)
	}
	var event protocol.SpeechCached
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if event.Key != key.Stem() || event.Language != "en-US" {
		t.Fatalf("unexpected event %+v", event)
	}

	resp = request(t, nc, protocol.SpeechRequest{Text: "Hello", Language: "en-US"})
	if resp.Source != "local" {
		t.Fatalf("expected local hit, got %+v", resp)
	}
	if resp.RequestID == "" {
		t.Fatal("expected generated request id")
	}
}

func TestServiceReportsErrorCodes(t *testing.T) {
	p := newTestPipeline(t, false)
	nc := startTestService(t, p)

	resp := request(t, nc, protocol.SpeechRequest{Text: "Hello", Language: "xx-YY"})
	if resp.Error == nil || resp.Error.Code != CodeUnsupportedLanguage {
		t.Fatalf("expected unsupported_language, got %+v", resp)
	}

	msg, err := nc.Request(protocol.SubjectSpeechResolve, []byte("{not json"), 5*time.Second)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	var malformed protocol.SpeechResponse
	if err := json.Unmarshal(msg.Data, &malformed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if malformed.Error == nil || malformed.Error.Code != CodeInvalidRequest {
		t.Fatalf("expected invalid_request, got %+v", malformed)
	}
}
