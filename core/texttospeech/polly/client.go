// Package polly implements speech synthesis on top of Amazon Polly. Polly
// has no duplex streaming API, so each submitted piece of text is synthesized
// as its own request and the audio is relayed in submission order.
package polly

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"

	"github.com/Priya-Diwakar/nova-voice-assistant/core/texttospeech"
	"github.com/Priya-Diwakar/nova-voice-assistant/internal/utils"
)

const (
	defaultRegion = "us-east-1"
	defaultVoice  = "Joanna"

	audioChunkSize = 4096
)

type synthClient interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

type Generator struct {
	region string
	voice  string

	mu     sync.Mutex
	client synthClient
}

type Option func(*Generator)

// WithRegion sets the AWS region.
func WithRegion(region string) Option {
	return func(g *Generator) {
		if region != "" {
			g.region = region
		}
	}
}

// WithVoice sets the synthesis voice.
func WithVoice(voice string) Option {
	return func(g *Generator) {
		if voice != "" {
			g.voice = voice
		}
	}
}

func NewGenerator(opts ...Option) *Generator {
	generator := &Generator{region: defaultRegion, voice: defaultVoice}
	for _, opt := range opts {
		opt(generator)
	}
	return generator
}

// NewGeneratorWithClient creates a generator backed by an explicit client
// instead of resolving one from the AWS config chain.
func NewGeneratorWithClient(client synthClient, opts ...Option) *Generator {
	generator := NewGenerator(opts...)
	generator.client = client
	return generator
}

func (g *Generator) resolveClient(ctx context.Context) (synthClient, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil {
		return g.client, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(g.region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	g.client = polly.NewFromConfig(awsCfg)
	return g.client, nil
}

func (g *Generator) NewSpeechSession(ctx context.Context, opts ...texttospeech.SessionOption) (texttospeech.SpeechSession, error) {
	options := texttospeech.SessionOptions{
		AudioCallback: func([]byte) {},
		EndedCallback: func() {},
		ErrorCallback: func(error) {},
	}
	for _, opt := range opts {
		opt(&options)
	}

	client, err := g.resolveClient(ctx)
	if err != nil {
		return nil, err
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	session := &speechSession{
		ctx:     sessionCtx,
		cancel:  cancel,
		client:  client,
		voice:   g.voice,
		pieces:  make(chan piece, 16),
		options: options,
	}

	go session.synthesizePieces()

	return session, nil
}

type piece struct {
	text string
	end  bool
}

type speechSession struct {
	ctx    context.Context
	cancel context.CancelFunc
	client synthClient
	voice  string

	pieces  chan piece
	options texttospeech.SessionOptions

	mu           sync.Mutex
	closed       bool
	textComplete bool

	endedOnce sync.Once
}

func (s *speechSession) SendText(text string, end bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.textComplete {
		return texttospeech.ErrSessionClosed
	}

	select {
	case s.pieces <- piece{text: text, end: end}:
	case <-s.ctx.Done():
		return texttospeech.ErrSessionClosed
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
	s.cancel()
	return nil
}

func (s *speechSession) synthesizePieces() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case p := <-s.pieces:
			if p.text != "" {
				if err := s.synthesize(p.text); err != nil {
					if s.ctx.Err() == nil {
						s.options.ErrorCallback(err)
					}
					return
				}
			}
			if p.end {
				s.ended()
				return
			}
		}
	}
}

func (s *speechSession) synthesize(text string) error {
	output, err := s.client.SynthesizeSpeech(s.ctx, &polly.SynthesizeSpeechInput{
		Engine:       pollytypes.EngineNeural,
		OutputFormat: pollytypes.OutputFormatMp3,
		Text:         utils.Ptr(text),
		TextType:     pollytypes.TextTypeText,
		VoiceId:      pollytypes.VoiceId(s.voice),
	})
	if err != nil {
		return normalizeError(err)
	}
	if output == nil || output.AudioStream == nil {
		return fmt.Errorf("%w: empty audio stream", texttospeech.ErrUpstreamProtocol)
	}
	defer output.AudioStream.Close()

	chunk := make([]byte, audioChunkSize)
	for {
		n, err := output.AudioStream.Read(chunk)
		if n > 0 {
			audio := make([]byte, n)
			copy(audio, chunk[:n])
			s.options.AudioCallback(audio)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read synthesized audio: %w", err)
		}
	}
}

func (s *speechSession) ended() {
	s.endedOnce.Do(s.options.EndedCallback)
}

func normalizeError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("polly rejected synthesis (%s): %w", apiErr.ErrorCode(), err)
	}
	return fmt.Errorf("failed to synthesize speech: %w", err)
}
