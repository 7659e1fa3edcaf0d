package tts

import (
	"context"
	"time"
)

// Mock produces deterministic fake audio after a short delay. It stands in
// for a vendor in development setups.
type Mock struct {
	delay  time.Duration
	format AudioFormat
}

// NewMock returns a Mock that sleeps delay before answering.
func NewMock(delay time.Duration) *Mock {
	return &Mock{delay: delay, format: FormatFor("mp3_44100_128")}
}

// Format reports the fake mp3 format.
func (m *Mock) Format() AudioFormat { return m.format }

// Synthesize returns a payload derived from the request text.
func (m *Mock) Synthesize(ctx context.Context, req SynthRequest) (Audio, error) {
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return Audio{}, ctx.Err()
		case <-time.After(m.delay):
		}
	}
	data := append([]byte("MOCK:"+req.Language+":"), req.Text...)
	return Audio{Data: data, Format: m.format}, nil
}
