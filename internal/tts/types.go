// Package tts holds the speech synthesis backends. A Synthesizer turns one
// piece of text into one complete audio clip; it does no caching.
package tts

import (
	"context"
	"strings"
)

// SynthRequest contains parameters to synthesize speech.
type SynthRequest struct {
	Text     string
	Language string
	Voice    string
}

// AudioFormat describes the encoding a backend produces.
type AudioFormat struct {
	Name        string // vendor format name, e.g. mp3_44100_128
	Extension   string // file extension including the dot
	ContentType string
}

// Audio is one synthesized clip.
type Audio struct {
	Data   []byte
	Format AudioFormat
}

// Synthesizer is the contract for producing audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthRequest) (Audio, error)
	Format() AudioFormat
}

// FormatFor maps a vendor output format name onto file metadata.
func FormatFor(name string) AudioFormat {
	switch {
	case strings.HasPrefix(name, "mp3"):
		return AudioFormat{Name: name, Extension: ".mp3", ContentType: "audio/mpeg"}
	case strings.HasPrefix(name, "pcm"):
		return AudioFormat{Name: name, Extension: ".pcm", ContentType: "audio/L16"}
	case strings.HasPrefix(name, "ulaw"):
		return AudioFormat{Name: name, Extension: ".ulaw", ContentType: "audio/basic"}
	case strings.HasPrefix(name, "opus"):
		return AudioFormat{Name: name, Extension: ".opus", ContentType: "audio/ogg"}
	case name == "wav":
		return AudioFormat{Name: name, Extension: ".wav", ContentType: "audio/wav"}
	default:
		return AudioFormat{Name: name, Extension: ".bin", ContentType: "application/octet-stream"}
	}
}
