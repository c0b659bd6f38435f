// Package llms defines the contracts the orchestration core uses to drive a
// streaming language model.
package llms

import (
	"context"
	"errors"
	"iter"
)

// ErrMissingCredential is returned when a model call cannot even be started
// because no API key is configured. It is fatal to the affected reply, not to
// the conversation.
var ErrMissingCredential = errors.New("llm credential missing")

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one finished exchange entry in conversation history.
type Turn struct {
	Role    Role
	Content string
}

// Stream is a lazy, finite sequence of generated text fragments. Iteration
// stops when the model signals completion, the consumer breaks out, or the
// context is cancelled; pending network reads are abandoned on cancellation.
type Stream interface {
	Chunks(ctx context.Context) iter.Seq2[string, error]
}

// StreamingLLM produces a reply stream for a prompt given prior history.
type StreamingLLM interface {
	PromptWithStream(ctx context.Context, prompt string, opts ...PromptOption) Stream
}
