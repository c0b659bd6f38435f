// Package orchestration drives a duplex voice conversation: audio streamed
// in is transcribed into turns, each turn is answered by a streaming language
// model, and the reply is spoken back while it is still being generated. A
// new turn arriving mid-reply interrupts the reply in flight.
package orchestration

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Priya-Diwakar/nova-voice-assistant/core/llms"
	"github.com/Priya-Diwakar/nova-voice-assistant/core/speechtotext"
	"github.com/Priya-Diwakar/nova-voice-assistant/core/texttospeech"
)

const (
	turnQueueCapacity = 10

	transcriptionSampleRate = 16000
)

type Orchestrator struct {
	sink         EventSink
	streamer     speechtotext.TurnStreamer
	llm          llms.StreamingLLM
	speech       texttospeech.SpeechGenerator
	instructions string

	ctx    context.Context
	cancel context.CancelFunc

	turns           chan string
	completions     chan completion
	recognitionErrs chan error

	conversation conversation

	closeOnce sync.Once
}

type completion struct {
	pipeline *responsePipeline
	userText string
	reply    string
	err      error
}

func NewOrchestrator(sink EventSink, opts ...OrchestratorOption) *Orchestrator {
	orchestrator := &Orchestrator{
		sink:            sink,
		turns:           make(chan string, turnQueueCapacity),
		completions:     make(chan completion),
		recognitionErrs: make(chan error, 1),
	}
	for _, opt := range opts {
		opt(orchestrator)
	}
	return orchestrator
}

// Start connects the transcription stream and begins orchestrating. It
// returns an error when the stream cannot be established; in that case no
// event has been sent to the client.
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.streamer == nil || o.llm == nil || o.speech == nil {
		return fmt.Errorf("a turn streamer, a streaming llm and a speech generator are required")
	}

	ctx, cancel := context.WithCancel(ctx)
	o.ctx = ctx
	o.cancel = cancel

	// lastTranscript is only touched from the streamer's read loop, which
	// invokes callbacks one at a time.
	var lastTranscript string
	err := o.streamer.Connect(ctx,
		speechtotext.WithSampleRate(transcriptionSampleRate),
		speechtotext.WithFormattedTurns(),
		speechtotext.WithStreamCallbacks(speechtotext.StreamCallbacks{
			OnBegin: func(sessionID string) {
				logger.Info("Transcription session began", "sessionID", sessionID)
			},
			OnTurn: func(candidate speechtotext.TurnCandidate) {
				o.acceptTurn(candidate, &lastTranscript)
			},
			OnError: func(err error) {
				select {
				case o.recognitionErrs <- err:
				default:
				}
			},
			OnTermination: func() {
				logger.Info("Transcription session terminated")
			},
		}),
	)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to connect transcription stream: %w", err)
	}

	if err := o.sink.Send(NewStatusEvent("Connected to transcription service.")); err != nil {
		logger.Error("Failed to announce connection", "error", err)
	}

	go o.orchestrate(ctx)

	return nil
}

// acceptTurn filters a recognizer candidate down to a newly finalized turn
// and queues it. lastTranscript only advances on a successful enqueue, so a
// turn dropped on a full queue can still be repeated by the speaker.
func (o *Orchestrator) acceptTurn(candidate speechtotext.TurnCandidate, lastTranscript *string) {
	if !candidate.EndOfTurn || !candidate.Formatted {
		return
	}
	text := strings.TrimSpace(candidate.Transcript)
	if text == "" || text == *lastTranscript {
		return
	}

	select {
	case o.turns <- text:
		*lastTranscript = text
	default:
		logger.Warn("Turn queue full, dropping turn", "transcript", text)
	}
}

// SendAudio forwards a chunk of microphone audio to the recognizer.
func (o *Orchestrator) SendAudio(audio []byte) error {
	return o.streamer.SendAudio(audio)
}

// History returns a copy of the completed exchanges so far.
func (o *Orchestrator) History() []llms.Turn {
	return o.conversation.Snapshot()
}

// Close tears the orchestrator down. Safe to call more than once.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		if o.cancel != nil {
			o.cancel()
		}
		if o.streamer != nil {
			if err := o.streamer.Close(context.Background()); err != nil {
				logger.Error("Failed to close transcription stream", "error", err)
			}
		}
	})
}

func (o *Orchestrator) orchestrate(ctx context.Context) {
	var active *responsePipeline

	for {
		select {
		case <-ctx.Done():
			if active != nil {
				active.Cancel()
			}
			return

		case err := <-o.recognitionErrs:
			logger.Error("Transcription stream failed", "error", err)
			if active != nil {
				active.Cancel()
			}
			if err := o.sink.Send(NewErrorEvent("Transcription service failed.")); err != nil {
				logger.Error("Failed to report transcription failure", "error", err)
			}
			o.Close()
			return

		case text := <-o.turns:
			// A pipeline that has already finished is not barged in:
			// its completion is on the way, so wait for it and record
			// the exchange before responding to the new turn.
			if active != nil && active.Finished() {
				for active != nil {
					select {
					case done := <-o.completions:
						active = o.settle(done, active)
					case <-ctx.Done():
						return
					}
				}
			}
			if active != nil {
				active.Cancel()
				if err := o.sink.Send(NewAudioInterruptEvent()); err != nil {
					logger.Error("Failed to announce interruption", "error", err)
				}
			}
			if err := o.sink.Send(NewTranscriptionEvent(text)); err != nil {
				logger.Error("Failed to relay transcription", "error", err)
			}

			pipeline := newResponsePipeline(ctx, o.llm, o.speech, o.sink,
				o.instructions, o.conversation.Snapshot())
			active = pipeline

			go func() {
				reply, err := pipeline.Run(text)
				select {
				case o.completions <- completion{pipeline: pipeline, userText: text, reply: reply, err: err}:
				case <-ctx.Done():
				}
			}()

		case done := <-o.completions:
			active = o.settle(done, active)
		}
	}
}

// settle records the outcome of the active pipeline and returns the new
// active pipeline. A stale completion belongs to a pipeline that was already
// superseded by a newer turn and is ignored.
func (o *Orchestrator) settle(done completion, active *responsePipeline) *responsePipeline {
	if done.pipeline != active {
		return active
	}

	if done.err != nil {
		logger.Error("Response pipeline failed", "error", done.err)
		return nil
	}
	if done.pipeline.IsCancelled() {
		return nil
	}
	o.conversation.AppendExchange(done.userText, done.reply)
	return nil
}
