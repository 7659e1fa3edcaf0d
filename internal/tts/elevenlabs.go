package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	defaultElevenLabsEndpoint = "https://api.elevenlabs.io"
	defaultElevenLabsModel    = "eleven_multilingual_v2"
	defaultElevenLabsFormat   = "mp3_44100_128"
	maxErrorBody              = 4 << 10
)

// ElevenLabsOption configures an ElevenLabs synthesizer.
type ElevenLabsOption func(*ElevenLabs)

// WithEndpoint overrides the API base URL.
func WithEndpoint(endpoint string) ElevenLabsOption {
	return func(e *ElevenLabs) {
		if endpoint != "" {
			e.endpoint = strings.TrimRight(endpoint, "/")
		}
	}
}

// WithModel sets the model ID (e.g. "eleven_flash_v2_5").
func WithModel(model string) ElevenLabsOption {
	return func(e *ElevenLabs) {
		if model != "" {
			e.model = model
		}
	}
}

// WithOutputFormat sets the output format (e.g. "mp3_44100_128", "pcm_24000").
func WithOutputFormat(format string) ElevenLabsOption {
	return func(e *ElevenLabs) {
		if format != "" {
			e.format = FormatFor(format)
		}
	}
}

// WithHTTPClient replaces the HTTP client used for vendor calls.
func WithHTTPClient(client *http.Client) ElevenLabsOption {
	return func(e *ElevenLabs) {
		if client != nil {
			e.httpClient = client
		}
	}
}

// ElevenLabs synthesizes speech through the ElevenLabs REST API.
type ElevenLabs struct {
	apiKey     string
	voice      string
	endpoint   string
	model      string
	format     AudioFormat
	httpClient *http.Client
}

// NewElevenLabs creates an ElevenLabs synthesizer. apiKey and the default
// voice must be non-empty.
func NewElevenLabs(apiKey, voice string, opts ...ElevenLabsOption) (*ElevenLabs, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: api key must not be empty")
	}
	if voice == "" {
		return nil, errors.New("elevenlabs: voice must not be empty")
	}
	e := &ElevenLabs{
		apiKey:     apiKey,
		voice:      voice,
		endpoint:   defaultElevenLabsEndpoint,
		model:      defaultElevenLabsModel,
		format:     FormatFor(defaultElevenLabsFormat),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Format reports the audio format requested from the vendor.
func (e *ElevenLabs) Format() AudioFormat { return e.format }

type elevenLabsRequest struct {
	Text          string                   `json:"text"`
	ModelID       string                   `json:"model_id"`
	VoiceSettings *elevenLabsVoiceSettings `json:"voice_settings,omitempty"`
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize performs one vendor call. Non-2xx replies become *VendorError.
func (e *ElevenLabs) Synthesize(ctx context.Context, req SynthRequest) (Audio, error) {
	voice := req.Voice
	if voice == "" {
		voice = e.voice
	}
	body, err := json.Marshal(elevenLabsRequest{
		Text:    req.Text,
		ModelID: e.model,
		VoiceSettings: &elevenLabsVoiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	})
	if err != nil {
		return Audio{}, fmt.Errorf("elevenlabs: encode request: %w", err)
	}

	u := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s",
		e.endpoint, url.PathEscape(voice), url.QueryEscape(e.format.Name))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return Audio{}, fmt.Errorf("elevenlabs: build request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", e.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", e.format.ContentType)

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return Audio{}, fmt.Errorf("elevenlabs: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return Audio{}, &VendorError{
			Vendor: "elevenlabs",
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(errBody)),
		}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Audio{}, fmt.Errorf("elevenlabs: read response: %w", err)
	}
	data, err := decodeAudioBody(resp.Header.Get("Content-Type"), raw)
	if err != nil {
		return Audio{}, fmt.Errorf("elevenlabs: %w", err)
	}
	if len(data) == 0 {
		return Audio{}, ErrEmptyAudio
	}
	return Audio{Data: data, Format: e.format}, nil
}

// decodeAudioBody accepts either raw audio bytes or a JSON envelope with a
// base64 audio field, which the timestamped endpoints return.
func decodeAudioBody(contentType string, raw []byte) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType != "application/json" {
		return raw, nil
	}
	if !gjson.ValidBytes(raw) {
		return nil, errors.New("invalid JSON audio envelope")
	}
	encoded := gjson.GetBytes(raw, "audio_base64")
	if !encoded.Exists() {
		encoded = gjson.GetBytes(raw, "audio")
	}
	if !encoded.Exists() || encoded.String() == "" {
		return nil, errors.New("JSON audio envelope has no audio field")
	}
	data, err := base64.StdEncoding.DecodeString(encoded.String())
	if err != nil {
		return nil, fmt.Errorf("decode base64 audio: %w", err)
	}
	return data, nil
}
