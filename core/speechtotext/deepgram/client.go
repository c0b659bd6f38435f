// Package deepgram implements live turn detection on top of the Deepgram
// listen API.
package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"

	"github.com/Priya-Diwakar/nova-voice-assistant/core/speechtotext"
)

const listenEndpoint = "wss://api.deepgram.com/v1/listen"

const defaultSampleRate = 16000

// TurnStreamer is a live transcription session against Deepgram. Final
// results are accumulated until the recognizer reports the end of speech, so
// a turn candidate carries the full utterance the way other providers report
// it.
type TurnStreamer struct {
	apiKey string

	connMu sync.Mutex
	conn   *websocket.Conn
	closed bool

	accumulatedTranscript string
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

	listenURL, _ := url.Parse(listenEndpoint)
	queryParams := listenURL.Query()
	queryParams.Set("encoding", "linear16")
	queryParams.Set("sample_rate", strconv.Itoa(options.SampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", "nova-3")
	queryParams.Set("language", "en-US")
	queryParams.Set("endpointing", "300")
	if options.FormatTurns {
		queryParams.Set("smart_format", "true")
	}
	listenURL.RawQuery = queryParams.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, listenURL.String(),
		http.Header{"Authorization": {"Token " + t.apiKey}})
	if err != nil {
		return fmt.Errorf("failed to open socket connection to deepgram: %w", err)
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
		return fmt.Errorf("failed to write audio to deepgram: %w", err)
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
	}{Type: string(api.TypeCloseStreamResponse)}); err != nil {
		t.conn.Close()
		return fmt.Errorf("failed to close deepgram stream: %w", err)
	}
	return t.conn.Close()
}

func (t *TurnStreamer) readAndProcessMessages(ctx context.Context, conn *websocket.Conn, options speechtotext.StreamOptions) {
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			t.connMu.Lock()
			closed := t.closed
			t.conn = nil
			t.connMu.Unlock()
			conn.Close()

			if !closed && ctx.Err() == nil &&
				err.Error() != "websocket: close 1000 (normal)" &&
				options.Callbacks.OnError != nil {
				options.Callbacks.OnError(fmt.Errorf("deepgram session failed: %w", err))
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
		log.Println("Failed to unmarshal deepgram message", "error", err)
		return
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeResponse(api.TypeOpenResponse):
		if options.Callbacks.OnBegin != nil {
			options.Callbacks.OnBegin("")
		}

	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			log.Println("Failed to unmarshal deepgram message", err)
			return
		}
		if len(msgResp.Channel.Alternatives) == 0 {
			return
		}

		transcript := strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
		if !msgResp.IsFinal {
			if transcript != "" && options.Callbacks.OnTurn != nil {
				options.Callbacks.OnTurn(speechtotext.TurnCandidate{Transcript: transcript})
			}
			return
		}

		if transcript != "" {
			t.accumulatedTranscript = strings.TrimSpace(t.accumulatedTranscript + " " + transcript)
		}
		if msgResp.SpeechFinal && t.accumulatedTranscript != "" {
			turn := speechtotext.TurnCandidate{
				Transcript: t.accumulatedTranscript,
				EndOfTurn:  true,
				Formatted:  options.FormatTurns,
			}
			t.accumulatedTranscript = ""
			if options.Callbacks.OnTurn != nil {
				options.Callbacks.OnTurn(turn)
			}
		}

	case api.TypeResponse(api.TypeCloseResponse):
		if options.Callbacks.OnTermination != nil {
			options.Callbacks.OnTermination()
		}
	}
}
