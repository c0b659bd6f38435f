// Package assemblyai implements live turn detection on top of the AssemblyAI
// universal streaming API.
package assemblyai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/Priya-Diwakar/nova-voice-assistant/core/speechtotext"
)

const streamingEndpoint = "wss://streaming.assemblyai.com/v3/ws"

const defaultSampleRate = 16000

// TurnStreamer is a live transcription session against AssemblyAI. It is not
// safe for concurrent Connect calls; SendAudio and Close may be called from
// other goroutines once connected.
type TurnStreamer struct {
	apiKey string

	connMu sync.Mutex
	conn   *websocket.Conn
	closed bool
}

func NewTurnStreamer(apiKey string) *TurnStreamer {
	return &TurnStreamer{apiKey: apiKey}
}

func (t *TurnStreamer) Connect(ctx context.Context, opts ...speechtotext.StreamOption) error {
	options := &speechtotext.StreamOptions{SampleRate: defaultSampleRate}
	for _, opt := range opts {
		opt(options)
	}

	if t.apiKey == "" {
		return speechtotext.ErrMissingCredential
	}

	streamURL, _ := url.Parse(streamingEndpoint)
	queryParams := streamURL.Query()
	queryParams.Set("sample_rate", strconv.Itoa(options.SampleRate))
	if options.FormatTurns {
		queryParams.Set("format_turns", "true")
	}
	streamURL.RawQuery = queryParams.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, streamURL.String(),
		http.Header{"Authorization": {t.apiKey}})
	if err != nil {
		return fmt.Errorf("failed to open socket connection to assemblyai: %w", err)
	}

	t.connMu.Lock()
	t.conn = conn
	t.closed = false
	t.connMu.Unlock()

	go t.readAndProcessMessages(ctx, conn, *options)

	return nil
}

func (t *TurnStreamer) SendAudio(audio []byte) error {
	t.connMu.Lock()
	defer t.connMu.Unlock()

	if t.conn == nil {
		return speechtotext.ErrNotConnected
	}
	if err := t.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		return fmt.Errorf("failed to write audio to assemblyai: %w", err)
	}
	return nil
}

func (t *TurnStreamer) Close(_ context.Context) error {
	t.connMu.Lock()
	defer t.connMu.Unlock()

	if t.conn == nil || t.closed {
		return nil
	}
	t.closed = true

	if err := t.conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: "Terminate"}); err != nil {
		t.conn.Close()
		return fmt.Errorf("failed to terminate assemblyai session: %w", err)
	}
	return t.conn.Close()
}

func (t *TurnStreamer) readAndProcessMessages(ctx context.Context, conn *websocket.Conn, options speechtotext.StreamOptions) {
	ctx, span := tracer.Start(ctx, "assemblyai streaming session")
	defer span.End()

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			t.connMu.Lock()
			closed := t.closed
			t.conn = nil
			t.connMu.Unlock()
			conn.Close()

			if !closed && ctx.Err() == nil && options.Callbacks.OnError != nil {
				options.Callbacks.OnError(fmt.Errorf("assemblyai session failed: %w", err))
			}
			return
		}
		if msgType == websocket.BinaryMessage {
			continue
		}

		t.processMessage(msg, options)
	}
}

func (t *TurnStreamer) processMessage(msg []byte, options speechtotext.StreamOptions) {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		logger.Error("Failed to unmarshal assemblyai message", "error", err)
		return
	}

	switch parsedMsg.Type {
	case "Begin":
		var beginMsg struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(msg, &beginMsg); err != nil {
			logger.Error("Failed to unmarshal assemblyai begin message", "error", err)
			return
		}
		if options.Callbacks.OnBegin != nil {
			options.Callbacks.OnBegin(beginMsg.ID)
		}

	case "Turn":
		var turnMsg struct {
			Transcript      string `json:"transcript"`
			EndOfTurn       bool   `json:"end_of_turn"`
			TurnIsFormatted bool   `json:"turn_is_formatted"`
		}
		if err := json.Unmarshal(msg, &turnMsg); err != nil {
			logger.Error("Failed to unmarshal assemblyai turn message", "error", err)
			return
		}
		if options.Callbacks.OnTurn != nil {
			options.Callbacks.OnTurn(speechtotext.TurnCandidate{
				Transcript: turnMsg.Transcript,
				EndOfTurn:  turnMsg.EndOfTurn,
				Formatted:  turnMsg.TurnIsFormatted,
			})
		}

	case "Termination":
		if options.Callbacks.OnTermination != nil {
			options.Callbacks.OnTermination()
		}
	}
}
