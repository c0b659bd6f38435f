package orchestration

import (
	"github.com/Priya-Diwakar/nova-voice-assistant/core/llms"
	"github.com/Priya-Diwakar/nova-voice-assistant/core/speechtotext"
	"github.com/Priya-Diwakar/nova-voice-assistant/core/texttospeech"
)

type OrchestratorOption func(*Orchestrator)

// WithTurnStreamer sets the live transcription provider.
func WithTurnStreamer(streamer speechtotext.TurnStreamer) OrchestratorOption {
	return func(o *Orchestrator) {
		o.streamer = streamer
	}
}

// WithStreamingLLM sets the language model that generates replies.
func WithStreamingLLM(llm llms.StreamingLLM) OrchestratorOption {
	return func(o *Orchestrator) {
		o.llm = llm
	}
}

// WithSpeechGenerator sets the speech synthesis provider.
func WithSpeechGenerator(speech texttospeech.SpeechGenerator) OrchestratorOption {
	return func(o *Orchestrator) {
		o.speech = speech
	}
}

// WithInstructions sets the system instructions handed to the language model
// with every reply.
func WithInstructions(instructions string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.instructions = instructions
	}
}
