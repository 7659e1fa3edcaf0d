package tts

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	path := filepath.Join(t.TempDir(), "engine.sh")
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return "sh '" + path + "'"
}

func TestExecConcatenatesFrames(t *testing.T) {
	cmd := writeScript(t, `cat > /dev/null
echo '{"pcm_base64":"AAEC","final":false}'
echo ''
echo '{"pcm_base64":"AwQ=","final":true}'
echo '{"pcm_base64":"BQY=","final":false}'
`)
	engine, err := NewExec(cmd, "amy", 22050, 1)
	if err != nil {
		t.Fatalf("new exec: %v", err)
	}
	audio, err := engine.Synthesize(context.Background(), SynthRequest{Text: "Hello", Language: "en-US"})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if want := []byte{0, 1, 2, 3, 4}; string(audio.Data) != string(want) {
		t.Fatalf("expected frames up to final, got %v", audio.Data)
	}
	if audio.Format.Extension != ".pcm" || audio.Format.Name != "pcm_22050" {
		t.Fatalf("unexpected format %+v", audio.Format)
	}
}

func TestExecReceivesRequest(t *testing.T) {
	dir := t.TempDir()
	capture := filepath.Join(dir, "request.json")
	cmd := writeScript(t, `cat > '`+capture+`'
echo '{"pcm_base64":"AA==","final":true}'
`)
	engine, err := NewExec(cmd, "amy", 16000, 1)
	if err != nil {
		t.Fatalf("new exec: %v", err)
	}
	if _, err := engine.Synthesize(context.Background(), SynthRequest{Text: "Guten Tag", Language: "de-DE"}); err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	data, err := os.ReadFile(capture)
	if err != nil {
		t.Fatalf("read captured request: %v", err)
	}
	for _, want := range []string{`"text":"Guten Tag"`, `"language":"de-DE"`, `"voice":"amy"`, `"sample_rate":16000`} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("request %s missing %s", data, want)
		}
	}
}

func TestExecNonZeroExit(t *testing.T) {
	cmd := writeScript(t, `cat > /dev/null
echo 'model not found' >&2
exit 3
`)
	engine, err := NewExec(cmd, "amy", 22050, 1)
	if err != nil {
		t.Fatalf("new exec: %v", err)
	}
	_, err = engine.Synthesize(context.Background(), SynthRequest{Text: "Hello"})
	var vendorErr *VendorError
	if !errors.As(err, &vendorErr) {
		t.Fatalf("expected VendorError, got %v", err)
	}
	if vendorErr.Status != 3 || vendorErr.Body != "model not found" {
		t.Fatalf("unexpected vendor error %+v", vendorErr)
	}
}

func TestExecMalformedFrame(t *testing.T) {
	cmd := writeScript(t, `cat > /dev/null
echo 'not json'
`)
	engine, _ := NewExec(cmd, "amy", 22050, 1)
	if _, err := engine.Synthesize(context.Background(), SynthRequest{Text: "Hello"}); err == nil || !strings.Contains(err.Error(), "decode tts frame") {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestExecNoAudio(t *testing.T) {
	cmd := writeScript(t, "cat > /dev/null\n")
	engine, _ := NewExec(cmd, "amy", 22050, 1)
	if _, err := engine.Synthesize(context.Background(), SynthRequest{Text: "Hello"}); !errors.Is(err, ErrEmptyAudio) {
		t.Fatalf("expected ErrEmptyAudio, got %v", err)
	}
}

func TestExecTimeout(t *testing.T) {
	cmd := writeScript(t, "exec sleep 5\n")
	engine, _ := NewExec(cmd, "amy", 22050, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := engine.Synthesize(ctx, SynthRequest{Text: "Hello"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestNewExecRejectsEmptyCommand(t *testing.T) {
	if _, err := NewExec("   ", "amy", 22050, 1); err == nil {
		t.Fatal("expected error for empty command")
	}
}
