package speech

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/loqalabs/loqa-speech/internal/protocol"
	"github.com/loqalabs/loqa-speech/internal/tts"
)

// Handler serves GET /v1/speech?text=...&language=... with the audio bytes.
type Handler struct {
	resolver    *Resolver
	contentType string
	timeout     time.Duration
	logger      *slog.Logger
}

func NewHandler(resolver *Resolver, format tts.AudioFormat, timeout time.Duration, log *slog.Logger) *Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	contentType := format.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &Handler{
		resolver:    resolver,
		contentType: contentType,
		timeout:     timeout,
		logger:      log.With(slog.String("component", "speech-http")),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeError(w, http.StatusMethodNotAllowed, CodeInvalidRequest, "method not allowed")
		return
	}

	query := r.URL.Query()
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	entry, err := h.resolver.ResolveEntry(ctx, query.Get("text"), query.Get("language"))
	if err != nil {
		code := ErrorCode(err)
		h.logger.Warn("speech resolve failed", slog.String("code", code), slogError(err))
		writeError(w, statusFor(code), code, err.Error())
		return
	}

	f, err := os.Open(entry.Path)
	if err != nil {
		h.logger.Error("open resolved audio", slog.String("path", entry.Path), slogError(err))
		writeError(w, http.StatusInternalServerError, CodeInternal, "resolved audio is unavailable")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", h.contentType)
	w.Header().Set("X-Speech-Source", string(entry.Source))
	w.Header().Set("X-Speech-Key", entry.Key.Stem())
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeContent(w, r, "", entry.CreatedAt, f)
}

func statusFor(code string) int {
	switch code {
	case CodeUnsupportedLanguage, CodeInvalidRequest:
		return http.StatusBadRequest
	case CodeCacheDownload, CodeVendor, CodeSynthesis:
		return http.StatusBadGateway
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(protocol.SpeechError{Code: code, Message: message})
}
