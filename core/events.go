package orchestration

// Events are the JSON messages pushed to the client over its session
// connection. The Type field is part of the wire contract and is filled in by
// the constructors.

type Event interface {
	eventKind() string
}

// StatusEvent reports a session lifecycle change.
type StatusEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewStatusEvent(message string) StatusEvent {
	return StatusEvent{Type: "status", Message: message}
}

func (StatusEvent) eventKind() string { return "status" }

// TranscriptionEvent carries a finalized user turn.
type TranscriptionEvent struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	EndOfTurn bool   `json:"end_of_turn"`
}

func NewTranscriptionEvent(text string) TranscriptionEvent {
	return TranscriptionEvent{Type: "transcription", Text: text, EndOfTurn: true}
}

func (TranscriptionEvent) eventKind() string { return "transcription" }

// AudioInterruptEvent tells the client to stop any playing audio.
type AudioInterruptEvent struct {
	Type string `json:"type"`
}

func NewAudioInterruptEvent() AudioInterruptEvent {
	return AudioInterruptEvent{Type: "audio_interrupt"}
}

func (AudioInterruptEvent) eventKind() string { return "audio_interrupt" }

// LLMChunkEvent carries a fragment of the assistant reply text.
type LLMChunkEvent struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

func NewLLMChunkEvent(data string) LLMChunkEvent {
	return LLMChunkEvent{Type: "llm_chunk", Data: data}
}

func (LLMChunkEvent) eventKind() string { return "llm_chunk" }

// AudioStartEvent marks the start of reply audio.
type AudioStartEvent struct {
	Type string `json:"type"`
}

func NewAudioStartEvent() AudioStartEvent {
	return AudioStartEvent{Type: "audio_start"}
}

func (AudioStartEvent) eventKind() string { return "audio_start" }

// AudioEvent carries a chunk of reply audio, base64 encoded.
type AudioEvent struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

func NewAudioEvent(data string) AudioEvent {
	return AudioEvent{Type: "audio", Data: data}
}

func (AudioEvent) eventKind() string { return "audio" }

// AudioEndEvent marks the end of reply audio.
type AudioEndEvent struct {
	Type string `json:"type"`
}

func NewAudioEndEvent() AudioEndEvent {
	return AudioEndEvent{Type: "audio_end"}
}

func (AudioEndEvent) eventKind() string { return "audio_end" }

// ErrorEvent reports a failure the client should surface.
type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewErrorEvent(message string) ErrorEvent {
	return ErrorEvent{Type: "error", Message: message}
}

func (ErrorEvent) eventKind() string { return "error" }
