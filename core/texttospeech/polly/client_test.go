package polly

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/polly"

	"github.com/Priya-Diwakar/nova-voice-assistant/core/texttospeech"
)

type fakeSynthClient struct {
	requests []string
	audio    []byte
	err      error
}

func (f *fakeSynthClient) SynthesizeSpeech(_ context.Context, params *polly.SynthesizeSpeechInput, _ ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error) {
	f.requests = append(f.requests, *params.Text)
	if f.err != nil {
		return nil, f.err
	}
	return &polly.SynthesizeSpeechOutput{
		AudioStream: io.NopCloser(bytes.NewReader(f.audio)),
	}, nil
}

func TestSessionSynthesizesPiecesInOrder(t *testing.T) {
	client := &fakeSynthClient{audio: []byte("mp3")}
	generator := NewGeneratorWithClient(client, WithVoice("Joanna"))

	var audio [][]byte
	audioCh := make(chan []byte, 8)
	ended := make(chan struct{})
	session, err := generator.NewSpeechSession(context.Background(),
		texttospeech.WithAudioCallback(func(chunk []byte) { audioCh <- chunk }),
		texttospeech.WithEndedCallback(func() { close(ended) }),
	)
	if err != nil {
		t.Fatalf("failed to open speech session: %v", err)
	}
	defer session.Close()

	if err := session.SendText("First sentence.", false); err != nil {
		t.Fatalf("failed to send text: %v", err)
	}
	if err := session.SendText("Second sentence.", true); err != nil {
		t.Fatalf("failed to send final text: %v", err)
	}

	select {
	case <-ended:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for end of audio")
	}

	close(audioCh)
	for chunk := range audioCh {
		audio = append(audio, chunk)
	}
	if len(audio) != 2 {
		t.Fatalf("expected one audio chunk per sentence, got %d", len(audio))
	}

	if len(client.requests) != 2 || client.requests[0] != "First sentence." || client.requests[1] != "Second sentence." {
		t.Fatalf("expected sentences synthesized in order, got %v", client.requests)
	}

	if err := session.SendText("late", false); !errors.Is(err, texttospeech.ErrSessionClosed) {
		t.Fatalf("expected closed session error after final piece, got %v", err)
	}
}

func TestSessionReportsSynthesisErrors(t *testing.T) {
	client := &fakeSynthClient{err: errors.New("throttled")}
	generator := NewGeneratorWithClient(client)

	errs := make(chan error, 1)
	ended := make(chan struct{}, 1)
	session, err := generator.NewSpeechSession(context.Background(),
		texttospeech.WithErrorCallback(func(err error) { errs <- err }),
		texttospeech.WithEndedCallback(func() { ended <- struct{}{} }),
	)
	if err != nil {
		t.Fatalf("failed to open speech session: %v", err)
	}
	defer session.Close()

	if err := session.SendText("Hello.", true); err != nil {
		t.Fatalf("failed to send text: %v", err)
	}

	select {
	case err := <-errs:
		if err == nil {
			t.Fatalf("expected synthesis error")
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for synthesis error")
	}

	select {
	case <-ended:
		t.Fatalf("a synthesis error is terminal, end of audio must not follow")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCancelStopsSynthesis(t *testing.T) {
	client := &fakeSynthClient{audio: []byte("mp3")}
	generator := NewGeneratorWithClient(client)

	session, err := generator.NewSpeechSession(context.Background())
	if err != nil {
		t.Fatalf("failed to open speech session: %v", err)
	}

	if err := session.Cancel(); err != nil {
		t.Fatalf("failed to cancel session: %v", err)
	}
	if err := session.SendText("after cancel", false); !errors.Is(err, texttospeech.ErrSessionClosed) {
		t.Fatalf("expected closed session error after cancel, got %v", err)
	}
}
