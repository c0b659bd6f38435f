// Package texttospeech defines the contract between the conversation
// orchestrator and streaming speech synthesis providers.
package texttospeech

import (
	"context"
	"errors"
)

var (
	// ErrMissingCredential is returned when a provider has no API key to
	// authenticate with.
	ErrMissingCredential = errors.New("speech synthesis credential missing")
	// ErrSessionClosed is returned when text is sent to a session that was
	// cancelled or closed.
	ErrSessionClosed = errors.New("speech session closed")
	// ErrUpstreamProtocol is reported through the error callback when the
	// provider sends a payload that cannot be decoded.
	ErrUpstreamProtocol = errors.New("unexpected speech synthesis payload")
)

// SpeechGenerator opens speech sessions. One session covers one spoken reply.
type SpeechGenerator interface {
	NewSpeechSession(ctx context.Context, opts ...SessionOption) (SpeechSession, error)
}

// SpeechSession converts incrementally submitted text into audio delivered
// through the session callbacks.
type SpeechSession interface {
	// SendText submits a piece of text for synthesis. Audio is guaranteed
	// to come back in submission order. The piece marked end closes the
	// session input; the session ends once its audio has been delivered.
	//
	// SendText errors after Cancel or Close, or after an end piece.
	SendText(text string, end bool) error
	// Cancel abandons the session and stops audio delivery as soon as
	// possible. Repeated calls are ignored.
	Cancel() error
	// Close releases the session resources. Repeated calls are ignored.
	Close() error
}
