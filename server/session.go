package server

import (
	"context"

	"github.com/gofiber/contrib/websocket"

	orchestration "github.com/Priya-Diwakar/nova-voice-assistant/core"
	"github.com/Priya-Diwakar/nova-voice-assistant/core/llms/gemini"
	"github.com/Priya-Diwakar/nova-voice-assistant/core/speechtotext/assemblyai"
	"github.com/Priya-Diwakar/nova-voice-assistant/core/texttospeech/murf"
	"github.com/Priya-Diwakar/nova-voice-assistant/internal/config"
)

// openConversation builds and starts the orchestrator for one session. When
// the transcription stream cannot be established the client gets a single
// error event and no session begins.
func openConversation(sink orchestration.EventSink, keys config.Keys) *orchestration.Orchestrator {
	orchestrator := orchestration.NewOrchestrator(sink,
		orchestration.WithTurnStreamer(assemblyai.NewTurnStreamer(keys.AssemblyAI)),
		orchestration.WithStreamingLLM(gemini.NewClient(keys.Gemini)),
		orchestration.WithSpeechGenerator(murf.NewClient(keys.Murf)),
		orchestration.WithInstructions(assistantInstructions),
	)

	if err := orchestrator.Start(context.Background()); err != nil {
		logger.Error("Failed to start conversation session", "error", err)
		if err := sink.Send(orchestration.NewErrorEvent("Could not connect to transcription service.")); err != nil {
			logger.Error("Failed to report session start failure", "error", err)
		}
		return nil
	}
	return orchestrator
}

// handleSession runs one live conversation over its websocket. Credentials
// are snapshotted once at session start; updates through /set-keys apply to
// the next session.
func (s *Server) handleSession(conn *websocket.Conn) {
	orchestrator := openConversation(newWebsocketSink(conn), s.keys.Snapshot())
	if orchestrator == nil {
		return
	}
	defer orchestrator.Close()

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Info("Client disconnected", "error", err)
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}

		if err := orchestrator.SendAudio(msg); err != nil {
			logger.Error("Failed to forward audio", "error", err)
			return
		}
	}
}
