package ai

import (
	"context"
)

// ChatMessage is one turn in a completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionBackend produces a chat completion for a message history.
type CompletionBackend interface {
	Complete(ctx context.Context, messages []ChatMessage) (string, error)
}

// Speech job states for asynchronous synthesis backends.
const (
	SpeechStatusPending   = "IN_PROGRESS"
	SpeechStatusCompleted = "COMPLETED"
	SpeechStatusFailed    = "FAILED"
)

// SpeechJob is the state of one synthesis request. Synchronous backends
// return a COMPLETED job with Audio set straight from Synthesize;
// asynchronous ones return a job id to poll.
type SpeechJob struct {
	ID     string
	Status string
	Audio  []byte
}

// SpeechBackend converts text to speech.
type SpeechBackend interface {
	Synthesize(ctx context.Context, text, voiceID string) (*SpeechJob, error)
	PollStatus(ctx context.Context, jobID string) (*SpeechJob, error)
}

// CaptionBackend describes an image in a short sentence.
type CaptionBackend interface {
	Caption(ctx context.Context, image []byte) (string, error)
}

// TranscriptionBackend converts a voice note to text.
type TranscriptionBackend interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}
