// Package murf implements streaming speech synthesis on top of the Murf
// stream-input API.
package murf

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Priya-Diwakar/nova-voice-assistant/core/texttospeech"
)

const streamInputEndpoint = "wss://api.murf.ai/v1/speech/stream-input"

const (
	defaultVoice      = "en-US-natalie"
	defaultStyle      = "Conversational"
	defaultSampleRate = 44100
)

type Client struct {
	apiKey     string
	voice      string
	style      string
	sampleRate int

	// endpoint is overridable for tests.
	endpoint string
}

type Option func(*Client)

// WithVoice sets the synthesis voice.
func WithVoice(voice string) Option {
	return func(c *Client) {
		if voice != "" {
			c.voice = voice
		}
	}
}

// WithStyle sets the speaking style of the voice.
func WithStyle(style string) Option {
	return func(c *Client) {
		if style != "" {
			c.style = style
		}
	}
}

func NewClient(apiKey string, opts ...Option) *Client {
	client := &Client{
		apiKey:     apiKey,
		voice:      defaultVoice,
		style:      defaultStyle,
		sampleRate: defaultSampleRate,
		endpoint:   streamInputEndpoint,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

func (c *Client) NewSpeechSession(ctx context.Context, opts ...texttospeech.SessionOption) (texttospeech.SpeechSession, error) {
	options := texttospeech.SessionOptions{
		AudioCallback: func([]byte) {},
		EndedCallback: func() {},
		ErrorCallback: func(error) {},
	}
	for _, opt := range opts {
		opt(&options)
	}

	if c.apiKey == "" {
		return nil, texttospeech.ErrMissingCredential
	}

	streamURL, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid murf endpoint: %w", err)
	}
	queryParams := streamURL.Query()
	queryParams.Set("api-key", c.apiKey)
	queryParams.Set("sample_rate", strconv.Itoa(c.sampleRate))
	queryParams.Set("channel_type", "MONO")
	queryParams.Set("format", "MP3")
	streamURL.RawQuery = queryParams.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, streamURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to murf: %w", err)
	}

	session := &speechSession{
		conn:      conn,
		contextID: uuid.NewString(),
		options:   options,
	}

	if err := session.sendVoiceConfig(c.voice, c.style); err != nil {
		conn.Close()
		return nil, err
	}

	go session.readAndProcessMessages()

	return session, nil
}

type speechSession struct {
	conn      *websocket.Conn
	contextID string
	options   texttospeech.SessionOptions

	mu           sync.Mutex
	textComplete bool
	closed       bool

	endedOnce sync.Once
}

func (s *speechSession) sendVoiceConfig(voice string, style string) error {
	type voiceConfig struct {
		VoiceID string `json:"voiceId"`
		Style   string `json:"style"`
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.WriteJSON(struct {
		VoiceConfig voiceConfig `json:"voice_config"`
		ContextID   string      `json:"context_id"`
	}{
		VoiceConfig: voiceConfig{VoiceID: voice, Style: style},
		ContextID:   s.contextID,
	}); err != nil {
		return fmt.Errorf("failed to configure murf voice: %w", err)
	}
	return nil
}

func (s *speechSession) SendText(text string, end bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.textComplete {
		return texttospeech.ErrSessionClosed
	}

	if err := s.conn.WriteJSON(struct {
		Text      string `json:"text"`
		End       bool   `json:"end"`
		ContextID string `json:"context_id"`
	}{Text: text, End: end, ContextID: s.contextID}); err != nil {
		return fmt.Errorf("failed to send text to murf: %w", err)
	}

	if end {
		s.textComplete = true
	}
	return nil
}

func (s *speechSession) Cancel() error {
	return s.Close()
}

func (s *speechSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}

func (s *speechSession) readAndProcessMessages() {
	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			// A dropped connection still ends audio delivery, so the
			// reply it carried can complete instead of hanging.
			s.ended()
			return
		}

		var parsedMsg struct {
			Audio string `json:"audio"`
			Final bool   `json:"final"`
		}
		if err := json.Unmarshal(msg, &parsedMsg); err != nil {
			// A payload that cannot be decoded ends the relay; the
			// session reports it once and delivers no more audio.
			s.options.ErrorCallback(fmt.Errorf("%w: %v", texttospeech.ErrUpstreamProtocol, err))
			return
		}

		if parsedMsg.Audio != "" {
			audio, err := base64.StdEncoding.DecodeString(parsedMsg.Audio)
			if err != nil {
				s.options.ErrorCallback(fmt.Errorf("%w: %v", texttospeech.ErrUpstreamProtocol, err))
				return
			}
			s.options.AudioCallback(audio)
		}

		if parsedMsg.Final {
			s.ended()
			return
		}
	}
}

func (s *speechSession) ended() {
	s.endedOnce.Do(s.options.EndedCallback)
}
