package texttospeech

// SessionOptions holds the configuration of a speech session.
type SessionOptions struct {
	// AudioCallback is called for every chunk of synthesized audio.
	AudioCallback func(audio []byte)
	// EndedCallback is called once, when the session has delivered all its
	// audio or lost its upstream connection.
	EndedCallback func()
	// ErrorCallback is called when the session encounters an error it
	// cannot recover from. It is terminal: no audio and no end signal
	// follow it.
	ErrorCallback func(error)
}

type SessionOption func(*SessionOptions)

// WithAudioCallback sets the callback for synthesized audio.
func WithAudioCallback(callback func(audio []byte)) SessionOption {
	return func(o *SessionOptions) { o.AudioCallback = callback }
}

// WithEndedCallback sets the callback for the end of audio delivery.
func WithEndedCallback(callback func()) SessionOption {
	return func(o *SessionOptions) { o.EndedCallback = callback }
}

// WithErrorCallback sets the callback for session errors.
func WithErrorCallback(callback func(error)) SessionOption {
	return func(o *SessionOptions) { o.ErrorCallback = callback }
}
