package speechtotext

// StreamOptions holds the configuration of a live transcription session.
type StreamOptions struct {
	// SampleRate of the inbound audio in Hz.
	SampleRate int
	// FormatTurns requests punctuated and capitalized final transcripts.
	FormatTurns bool

	Callbacks StreamCallbacks
}

// StreamCallbacks are invoked from the provider's read loop. A nil callback
// is skipped.
type StreamCallbacks struct {
	// OnBegin is called once the recognizer has acknowledged the session.
	OnBegin func(sessionID string)
	// OnTurn is called for every turn candidate the recognizer produces,
	// including partial ones.
	OnTurn func(candidate TurnCandidate)
	// OnError is called when the session fails irrecoverably.
	OnError func(err error)
	// OnTermination is called when the recognizer ends the session.
	OnTermination func()
}

type StreamOption func(*StreamOptions)

// WithSampleRate sets the sample rate of the streamed audio.
func WithSampleRate(sampleRate int) StreamOption {
	return func(options *StreamOptions) {
		options.SampleRate = sampleRate
	}
}

// WithFormattedTurns requests formatted final transcripts.
func WithFormattedTurns() StreamOption {
	return func(options *StreamOptions) {
		options.FormatTurns = true
	}
}

// WithStreamCallbacks registers the session callbacks.
func WithStreamCallbacks(callbacks StreamCallbacks) StreamOption {
	return func(options *StreamOptions) {
		options.Callbacks = callbacks
	}
}
