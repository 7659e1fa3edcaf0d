package protocol

import "time"

// SpeechRequest asks the service for the audio of one utterance.
type SpeechRequest struct {
	RequestID string `json:"request_id"`
	Text      string `json:"text"`
	Language  string `json:"language"`
	TraceID   string `json:"trace_id,omitempty"`
}

// SpeechResponse is the reply to a SpeechRequest. Exactly one of Path or
// Error is set.
type SpeechResponse struct {
	RequestID string       `json:"request_id"`
	Path      string       `json:"path,omitempty"`
	Source    string       `json:"source,omitempty"`
	SizeBytes int64        `json:"size_bytes,omitempty"`
	Key       string       `json:"key,omitempty"`
	Error     *SpeechError `json:"error,omitempty"`
}

// SpeechError carries a stable code plus a human readable message.
type SpeechError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SpeechCached is broadcast after new audio has been synthesized and written
// to the local tier.
type SpeechCached struct {
	Key       string    `json:"key"`
	Language  string    `json:"language"`
	Path      string    `json:"path"`
	SizeBytes int64     `json:"size_bytes"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectSpeechResolve = "speech.resolve"
	SubjectSpeechCached  = "speech.cached"

	// QueueSpeechResolvers is the queue group shared by every speech node.
	QueueSpeechResolvers = "speech-resolvers"
)
