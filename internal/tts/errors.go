package tts

import (
	"errors"
	"fmt"
)

// ErrEmptyAudio is returned when a backend reports success without audio.
var ErrEmptyAudio = errors.New("synthesizer returned no audio")

// VendorError is a non-success reply from a synthesis backend. Status is the
// HTTP status for remote vendors and the exit code for exec engines.
type VendorError struct {
	Vendor string
	Status int
	Body   string
}

func (e *VendorError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Vendor, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Vendor, e.Status, e.Body)
}
