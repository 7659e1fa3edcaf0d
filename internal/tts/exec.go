package tts

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/mattn/go-shellwords"
)

// Exec runs a local engine (a Piper wrapper, for example) as a subprocess per
// request. The process receives one JSON request on stdin and answers with
// newline-delimited JSON frames on stdout.
type Exec struct {
	cmd        []string
	voice      string
	sampleRate int
	channels   int
	format     AudioFormat
}

type execRequest struct {
	Text       string `json:"text"`
	Language   string `json:"language,omitempty"`
	Voice      string `json:"voice"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

type execResponse struct {
	PCMBase64 string `json:"pcm_base64"`
	Final     bool   `json:"final"`
}

// NewExec parses command with shell quoting rules.
func NewExec(command, voice string, sampleRate, channels int) (*Exec, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse tts command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("tts command empty")
	}
	return &Exec{
		cmd:        args,
		voice:      voice,
		sampleRate: sampleRate,
		channels:   channels,
		format:     AudioFormat{Name: fmt.Sprintf("pcm_%d", sampleRate), Extension: ".pcm", ContentType: "audio/L16"},
	}, nil
}

// Format reports raw PCM at the configured sample rate.
func (e *Exec) Format() AudioFormat { return e.format }

// Synthesize runs the engine once and concatenates every frame it emits.
func (e *Exec) Synthesize(ctx context.Context, req SynthRequest) (Audio, error) {
	voice := req.Voice
	if voice == "" {
		voice = e.voice
	}
	payload, err := json.Marshal(execRequest{
		Text:       req.Text,
		Language:   req.Language,
		Voice:      voice,
		SampleRate: e.sampleRate,
		Channels:   e.channels,
	})
	if err != nil {
		return Audio{}, err
	}

	cmd := exec.CommandContext(ctx, e.cmd[0], e.cmd[1:]...)
	cmd.Stdin = bytes.NewReader(payload)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Audio{}, err
	}
	if err := cmd.Start(); err != nil {
		return Audio{}, fmt.Errorf("start tts command: %w", err)
	}

	var (
		audio bytes.Buffer
		final bool
	)
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64<<10), 16<<20)
	var decodeErr error
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if final {
			continue
		}
		var frame execResponse
		if err := json.Unmarshal(line, &frame); err != nil {
			decodeErr = fmt.Errorf("decode tts frame: %w", err)
			break
		}
		pcm, err := base64.StdEncoding.DecodeString(frame.PCMBase64)
		if err != nil {
			decodeErr = fmt.Errorf("decode tts pcm: %w", err)
			break
		}
		audio.Write(pcm)
		final = frame.Final
	}
	if decodeErr == nil {
		decodeErr = scanner.Err()
	}
	if decodeErr != nil {
		_ = cmd.Process.Kill()
	}

	waitErr := cmd.Wait()
	if decodeErr != nil {
		return Audio{}, decodeErr
	}
	if waitErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Audio{}, ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return Audio{}, &VendorError{
				Vendor: "exec",
				Status: exitErr.ExitCode(),
				Body:   strings.TrimSpace(stderr.String()),
			}
		}
		return Audio{}, waitErr
	}
	if audio.Len() == 0 {
		return Audio{}, ErrEmptyAudio
	}
	return Audio{Data: audio.Bytes(), Format: e.format}, nil
}
