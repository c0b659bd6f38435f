// Package speechtotext defines the contract between the conversation
// orchestrator and streaming transcription providers.
package speechtotext

import (
	"context"
	"errors"
)

var (
	// ErrMissingCredential is returned when a provider has no API key to
	// authenticate with.
	ErrMissingCredential = errors.New("transcription credential missing")
	// ErrNotConnected is returned when audio is sent before a streaming
	// session was established.
	ErrNotConnected = errors.New("transcription session not connected")
)

// TurnCandidate is a single hypothesis from the recognizer. Only candidates
// that are both final and formatted represent a completed user turn.
type TurnCandidate struct {
	Transcript string
	EndOfTurn  bool
	Formatted  bool
}

// TurnStreamer is a live transcription session over which raw audio is
// streamed and turn candidates come back through callbacks.
type TurnStreamer interface {
	// Connect establishes the streaming session. Callbacks registered
	// through options are invoked from the provider's read loop, one at a
	// time, until the session terminates.
	Connect(ctx context.Context, opts ...StreamOption) error
	// SendAudio forwards a chunk of raw audio to the recognizer.
	SendAudio(audio []byte) error
	// Close gracefully terminates the streaming session.
	Close(ctx context.Context) error
}
