package orchestration

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Priya-Diwakar/nova-voice-assistant/core/llms"
	"github.com/Priya-Diwakar/nova-voice-assistant/core/texttospeech"
)

// speechCompletionTimeout bounds how long a pipeline waits for the last
// audio after the full reply was handed to synthesis.
const speechCompletionTimeout = 60 * time.Second

// responsePipeline turns one finalized user turn into one spoken reply. Two
// workers are joined through the reply buffer: one streams the model output
// in, the other streams text out to the client and to speech synthesis.
// Audio comes back asynchronously through the session callbacks.
type responsePipeline struct {
	ctx    context.Context
	cancel context.CancelFunc

	llm          llms.StreamingLLM
	speech       texttospeech.SpeechGenerator
	sink         *gatedSink
	instructions string
	history      []llms.Turn

	buffer    *replyBuffer
	audioDone chan struct{}

	sessionMu sync.Mutex
	session   texttospeech.SpeechSession

	firstAudio sync.Once
	relayOnce  sync.Once
	cancelled  atomic.Bool
	failed     atomic.Bool
}

func newResponsePipeline(
	ctx context.Context,
	llm llms.StreamingLLM,
	speech texttospeech.SpeechGenerator,
	sink EventSink,
	instructions string,
	history []llms.Turn,
) *responsePipeline {
	ctx, cancel := context.WithCancel(ctx)
	return &responsePipeline{
		ctx:    ctx,
		cancel: cancel,

		llm:          llm,
		speech:       speech,
		sink:         newGatedSink(sink),
		instructions: instructions,
		history:      history,

		buffer:    newReplyBuffer(),
		audioDone: make(chan struct{}),
	}
}

func (p *responsePipeline) Run(userText string) (string, error) {
	ctx, span := tracer.Start(p.ctx, "respond to turn")
	defer span.End()

	if err := p.openSpeechSession(ctx); err != nil {
		err = fmt.Errorf("failed to open speech session: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	var workerErr error
	workerErrMu := sync.Mutex{}
	addWorkerErr := func(err error) {
		if err == nil {
			return
		}
		workerErrMu.Lock()
		workerErr = errors.Join(workerErr, err)
		workerErrMu.Unlock()
	}

	run := func(name string, f func(context.Context) error) {
		defer func() {
			if recovered := recover(); recovered != nil {
				addWorkerErr(fmt.Errorf("%s worker panicked: %v", name, recovered))
				p.cancel()
			}
		}()

		if err := f(ctx); err != nil {
			addWorkerErr(fmt.Errorf("%s worker failed: %w", name, err))
			p.cancel()
		}
	}

	var reply string
	wg := &sync.WaitGroup{}
	wg.Add(2)
	go func() {
		defer wg.Done()
		run("reply generation", func(ctx context.Context) error {
			return p.generateReply(ctx, userText)
		})
	}()
	go func() {
		defer wg.Done()
		run("reply delivery", func(ctx context.Context) (err error) {
			reply, err = p.deliverReply(ctx)
			return err
		})
	}()
	wg.Wait()

	if workerErr != nil {
		p.closeSpeechSession()
		return reply, workerErr
	}

	p.awaitSpeechCompletion(ctx)
	p.closeSpeechSession()
	span.SetAttributes(attribute.Int("response.length", len(reply)))

	return reply, nil
}

func (p *responsePipeline) openSpeechSession(ctx context.Context) error {
	session, err := p.speech.NewSpeechSession(ctx,
		texttospeech.WithAudioCallback(func(audio []byte) {
			p.firstAudio.Do(func() {
				if err := p.sink.Send(NewAudioStartEvent()); err != nil {
					logger.Error("Failed to announce start of audio", "error", err)
				}
			})
			if err := p.sink.Send(NewAudioEvent(base64.StdEncoding.EncodeToString(audio))); err != nil {
				logger.Error("Failed to relay audio", "error", err)
			}
		}),
		texttospeech.WithEndedCallback(func() {
			p.finishRelay(true)
		}),
		texttospeech.WithErrorCallback(func(err error) {
			logger.Error("Speech synthesis failed", "error", err)
			if !p.cancelled.Load() {
				if err := p.sink.Send(NewErrorEvent("Speech synthesis failed.")); err != nil {
					logger.Error("Failed to report speech synthesis failure", "error", err)
				}
			}
			// The error is this task's terminal event; no audio_end
			// follows it.
			p.finishRelay(false)
		}),
	)
	if err != nil {
		return err
	}

	p.sessionMu.Lock()
	p.session = session
	cancelled := p.cancelled.Load()
	p.sessionMu.Unlock()

	if cancelled {
		session.Cancel()
		return context.Canceled
	}
	return nil
}

func (p *responsePipeline) finishRelay(announceEnd bool) {
	p.relayOnce.Do(func() {
		if announceEnd {
			if err := p.sink.Send(NewAudioEndEvent()); err != nil {
				logger.Error("Failed to announce end of audio", "error", err)
			}
		}
		close(p.audioDone)
	})
}

func (p *responsePipeline) generateReply(ctx context.Context, userText string) error {
	ctx, span := tracer.Start(ctx, "generate reply")
	defer span.End()

	stream := p.llm.PromptWithStream(ctx, userText,
		llms.WithInstructions(p.instructions),
		llms.WithTurns(p.history...),
	)
	for chunk, err := range stream.Chunks(ctx) {
		if err != nil {
			p.failed.Store(true)
			p.buffer.TextComplete()
			if p.cancelled.Load() || errors.Is(err, context.Canceled) {
				return nil
			}

			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if errors.Is(err, llms.ErrMissingCredential) {
				logger.Warn("Reply requested without a language model credential")
			} else if sendErr := p.sink.Send(NewErrorEvent("Failed to generate a reply.")); sendErr != nil {
				logger.Error("Failed to report reply generation failure", "error", sendErr)
			}
			return fmt.Errorf("failed to generate reply: %w", err)
		}

		p.buffer.AddChunk(chunk)
	}

	p.buffer.TextComplete()
	return nil
}

func (p *responsePipeline) deliverReply(ctx context.Context) (string, error) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			p.buffer.Clear()
		case <-done:
		}
	}()

	_, span := tracer.Start(ctx, "deliver reply")
	defer span.End()

	segmenter := &sentenceSegmenter{}
	for chunk := range p.buffer.Chunks {
		if p.cancelled.Load() {
			break
		}

		if err := p.sink.Send(NewLLMChunkEvent(chunk)); err != nil {
			span.RecordError(fmt.Errorf("failed to relay reply chunk: %w", err))
		}

		for _, sentence := range segmenter.Push(chunk) {
			if err := p.sendToSpeech(sentence, false); err != nil {
				span.RecordError(err)
			}
		}
	}

	reply := p.buffer.String()
	if p.cancelled.Load() || p.failed.Load() {
		return reply, nil
	}

	// The end marker always goes out, with the remainder when one exists,
	// so the session knows no more text is coming.
	remainder, _ := segmenter.Flush()
	if err := p.sendToSpeech(remainder, true); err != nil {
		span.RecordError(err)
	}

	return reply, nil
}

func (p *responsePipeline) sendToSpeech(text string, end bool) error {
	p.sessionMu.Lock()
	session := p.session
	p.sessionMu.Unlock()

	if session == nil {
		return nil
	}
	if err := session.SendText(text, end); err != nil {
		if errors.Is(err, texttospeech.ErrSessionClosed) {
			return nil
		}
		return fmt.Errorf("failed to send text to speech session: %w", err)
	}
	return nil
}

func (p *responsePipeline) awaitSpeechCompletion(ctx context.Context) {
	select {
	case <-p.audioDone:
	case <-ctx.Done():
	case <-time.After(speechCompletionTimeout):
		logger.Warn("Timed out waiting for speech to complete")
	}
}

func (p *responsePipeline) closeSpeechSession() {
	p.sessionMu.Lock()
	session := p.session
	p.sessionMu.Unlock()

	if session != nil {
		if err := session.Close(); err != nil {
			logger.Error("Failed to close speech session", "error", err)
		}
	}
}

// Cancel abandons the pipeline. The sink is shut before anything else so no
// event of this reply can follow the interruption announcement.
func (p *responsePipeline) Cancel() {
	if !p.cancelled.CompareAndSwap(false, true) {
		return
	}

	trace.SpanFromContext(p.ctx).AddEvent("reply superseded")
	p.sink.Shut()
	p.cancel()

	p.sessionMu.Lock()
	session := p.session
	p.sessionMu.Unlock()
	if session != nil {
		if err := session.Cancel(); err != nil {
			logger.Error("Failed to cancel speech session", "error", err)
		}
	}

	p.finishRelay(false)
}

func (p *responsePipeline) IsCancelled() bool {
	return p.cancelled.Load()
}

// Finished reports whether the audio relay has reached its terminal event.
func (p *responsePipeline) Finished() bool {
	select {
	case <-p.audioDone:
		return true
	default:
		return false
	}
}
