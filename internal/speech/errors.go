package speech

import (
	"context"
	"errors"
	"fmt"

	"github.com/loqalabs/loqa-speech/internal/tts"
)

// ErrEmptyText is returned when a resolve is requested for empty text.
var ErrEmptyText = errors.New("text must not be empty")

// UnsupportedLanguageError reports a language code outside the configured set.
// It is returned before any I/O happens.
type UnsupportedLanguageError struct {
	Language string
}

func (e *UnsupportedLanguageError) Error() string {
	return fmt.Sprintf("unsupported language %q", e.Language)
}

// CacheDownloadError reports that the remote tier knows the utterance but the
// audio could not be fetched. Retrying the resolve is safe.
type CacheDownloadError struct {
	Key Key
	Ref string
	Err error
}

func (e *CacheDownloadError) Error() string {
	return fmt.Sprintf("download cached audio %s: %v", e.Ref, e.Err)
}

func (e *CacheDownloadError) Unwrap() error { return e.Err }

// SynthesisError wraps any failure of the admission queue or the synthesizer.
// A vendor failure stays reachable through errors.As with *tts.VendorError.
type SynthesisError struct {
	Key Key
	Err error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesize %s: %v", e.Key.Stem(), e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// Wire error codes shared by the NATS and HTTP surfaces.
const (
	CodeUnsupportedLanguage = "unsupported_language"
	CodeInvalidRequest      = "invalid_request"
	CodeCacheDownload       = "cache_download"
	CodeVendor              = "vendor"
	CodeSynthesis           = "synthesis"
	CodeTimeout             = "timeout"
	CodeInternal            = "internal"
)

// ErrorCode maps err onto one of the wire error codes.
func ErrorCode(err error) string {
	var (
		unsupported *UnsupportedLanguageError
		download    *CacheDownloadError
		vendor      *tts.VendorError
		synth       *SynthesisError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &unsupported):
		return CodeUnsupportedLanguage
	case errors.Is(err, ErrEmptyText):
		return CodeInvalidRequest
	case errors.As(err, &download):
		return CodeCacheDownload
	case errors.As(err, &vendor):
		return CodeVendor
	case errors.As(err, &synth):
		return CodeSynthesis
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	default:
		return CodeInternal
	}
}
