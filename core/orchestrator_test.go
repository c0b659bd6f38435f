package orchestration

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/Priya-Diwakar/nova-voice-assistant/core/llms"
	"github.com/Priya-Diwakar/nova-voice-assistant/core/speechtotext"
	"github.com/Priya-Diwakar/nova-voice-assistant/core/texttospeech"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Send(event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := make([]Event, len(s.events))
	copy(events, s.events)
	return events
}

type stubStreamer struct {
	mu         sync.Mutex
	connectErr error
	callbacks  speechtotext.StreamCallbacks
	audio      [][]byte
	closed     bool
}

func (s *stubStreamer) Connect(_ context.Context, opts ...speechtotext.StreamOption) error {
	options := &speechtotext.StreamOptions{}
	for _, opt := range opts {
		opt(options)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connectErr != nil {
		return s.connectErr
	}
	s.callbacks = options.Callbacks
	return nil
}

func (s *stubStreamer) SendAudio(audio []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio = append(s.audio, audio)
	return nil
}

func (s *stubStreamer) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubStreamer) EmitTurn(candidate speechtotext.TurnCandidate) {
	s.mu.Lock()
	onTurn := s.callbacks.OnTurn
	s.mu.Unlock()
	if onTurn != nil {
		onTurn(candidate)
	}
}

func (s *stubStreamer) EmitError(err error) {
	s.mu.Lock()
	onError := s.callbacks.OnError
	s.mu.Unlock()
	if onError != nil {
		onError(err)
	}
}

func (s *stubStreamer) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type stubStream struct {
	chunks []string
	err    error
	block  chan struct{}
}

func (s *stubStream) Chunks(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, chunk := range s.chunks {
			if !yield(chunk, nil) {
				return
			}
		}
		if s.block != nil {
			select {
			case <-s.block:
			case <-ctx.Done():
				yield("", ctx.Err())
				return
			}
		}
		if s.err != nil {
			yield("", s.err)
		}
	}
}

type promptCall struct {
	prompt  string
	options llms.PromptOptions
}

type stubLLM struct {
	mu      sync.Mutex
	streams []*stubStream
	calls   []promptCall
}

func (l *stubLLM) PromptWithStream(_ context.Context, prompt string, opts ...llms.PromptOption) llms.Stream {
	options := llms.PromptOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, promptCall{prompt: prompt, options: options})

	if len(l.streams) == 0 {
		return &stubStream{}
	}
	stream := l.streams[0]
	if len(l.streams) > 1 {
		l.streams = l.streams[1:]
	}
	return stream
}

func (l *stubLLM) Calls() []promptCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	calls := make([]promptCall, len(l.calls))
	copy(calls, l.calls)
	return calls
}

type sentText struct {
	text string
	end  bool
}

type stubSpeechSession struct {
	mu        sync.Mutex
	texts     []sentText
	cancelled bool
	closed    bool
	options   texttospeech.SessionOptions
}

func (s *stubSpeechSession) SendText(text string, end bool) error {
	s.mu.Lock()
	if s.cancelled || s.closed {
		s.mu.Unlock()
		return texttospeech.ErrSessionClosed
	}
	s.texts = append(s.texts, sentText{text: text, end: end})
	options := s.options
	s.mu.Unlock()

	if text != "" && options.AudioCallback != nil {
		options.AudioCallback([]byte(text))
	}
	if end && options.EndedCallback != nil {
		options.EndedCallback()
	}
	return nil
}

func (s *stubSpeechSession) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
	return nil
}

func (s *stubSpeechSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubSpeechSession) Texts() []sentText {
	s.mu.Lock()
	defer s.mu.Unlock()
	texts := make([]sentText, len(s.texts))
	copy(texts, s.texts)
	return texts
}

func (s *stubSpeechSession) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

type stubSpeechGenerator struct {
	mu       sync.Mutex
	sessions []*stubSpeechSession
	openErr  error
}

func (g *stubSpeechGenerator) NewSpeechSession(_ context.Context, opts ...texttospeech.SessionOption) (texttospeech.SpeechSession, error) {
	options := texttospeech.SessionOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.openErr != nil {
		return nil, g.openErr
	}
	session := &stubSpeechSession{options: options}
	g.sessions = append(g.sessions, session)
	return session, nil
}

func (g *stubSpeechGenerator) Sessions() []*stubSpeechSession {
	g.mu.Lock()
	defer g.mu.Unlock()
	sessions := make([]*stubSpeechSession, len(g.sessions))
	copy(sessions, g.sessions)
	return sessions
}

// chainingSink fires a hook the moment end of audio goes out, before the
// finished reply's result has been collected by the control loop.
type chainingSink struct {
	recordingSink
	once       sync.Once
	onAudioEnd func()
}

func (s *chainingSink) Send(event Event) error {
	err := s.recordingSink.Send(event)
	if event.eventKind() == "audio_end" && s.onAudioEnd != nil {
		s.once.Do(s.onAudioEnd)
	}
	return err
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func eventKinds(events []Event) []string {
	kinds := make([]string, len(events))
	for i, event := range events {
		kinds[i] = event.eventKind()
	}
	return kinds
}

func countKind(events []Event, kind string) int {
	count := 0
	for _, event := range events {
		if event.eventKind() == kind {
			count++
		}
	}
	return count
}

func indexOfKind(events []Event, kind string) int {
	for i, event := range events {
		if event.eventKind() == kind {
			return i
		}
	}
	return -1
}

func finalTurn(text string) speechtotext.TurnCandidate {
	return speechtotext.TurnCandidate{Transcript: text, EndOfTurn: true, Formatted: true}
}

func TestRespondsToFinalizedTurnInOrder(t *testing.T) {
	sink := &recordingSink{}
	streamer := &stubStreamer{}
	llm := &stubLLM{streams: []*stubStream{
		{chunks: []string{"Hi ", "friend. ", "How are you?"}},
	}}
	speech := &stubSpeechGenerator{}

	orchestrator := NewOrchestrator(sink,
		WithTurnStreamer(streamer),
		WithStreamingLLM(llm),
		WithSpeechGenerator(speech),
		WithInstructions("Be brief."),
	)
	if err := orchestrator.Start(context.Background()); err != nil {
		t.Fatalf("failed to start orchestrator: %v", err)
	}
	defer orchestrator.Close()

	streamer.EmitTurn(finalTurn("Hello there."))

	waitFor(t, "end of audio", func() bool {
		return countKind(sink.Events(), "audio_end") == 1
	})

	events := sink.Events()
	kinds := eventKinds(events)

	if kinds[0] != "status" {
		t.Fatalf("expected status first, got %v", kinds)
	}
	if kinds[1] != "transcription" {
		t.Fatalf("expected transcription second, got %v", kinds)
	}
	if transcription := events[1].(TranscriptionEvent); transcription.Text != "Hello there." || !transcription.EndOfTurn {
		t.Fatalf("unexpected transcription event: %+v", transcription)
	}

	if got := countKind(events, "audio_start"); got != 1 {
		t.Fatalf("expected exactly one audio_start, got %d", got)
	}
	if got := countKind(events, "llm_chunk"); got != 3 {
		t.Fatalf("expected 3 llm chunks, got %d in %v", got, kinds)
	}

	audioStart := indexOfKind(events, "audio_start")
	audioEnd := indexOfKind(events, "audio_end")
	firstAudio := indexOfKind(events, "audio")
	if !(indexOfKind(events, "llm_chunk") < audioStart && audioStart < firstAudio && firstAudio < audioEnd) {
		t.Fatalf("unexpected event order: %v", kinds)
	}

	sessions := speech.Sessions()
	if len(sessions) != 1 {
		t.Fatalf("expected one speech session, got %d", len(sessions))
	}
	texts := sessions[0].Texts()
	if len(texts) != 2 {
		t.Fatalf("expected sentence plus final remainder, got %v", texts)
	}
	if texts[0].text != "Hi friend." || texts[0].end {
		t.Fatalf("unexpected first sentence: %+v", texts[0])
	}
	if texts[1].text != "How are you?" || !texts[1].end {
		t.Fatalf("unexpected final piece: %+v", texts[1])
	}

	waitFor(t, "history append", func() bool {
		return len(orchestrator.History()) == 2
	})
	history := orchestrator.History()
	if history[0].Role != llms.RoleUser || history[0].Content != "Hello there." {
		t.Fatalf("unexpected user turn in history: %+v", history[0])
	}
	if history[1].Role != llms.RoleModel || history[1].Content != "Hi friend. How are you?" {
		t.Fatalf("unexpected model turn in history: %+v", history[1])
	}

	calls := llm.Calls()
	if len(calls) != 1 || calls[0].prompt != "Hello there." || calls[0].options.Instructions != "Be brief." {
		t.Fatalf("unexpected llm calls: %+v", calls)
	}
}

func TestIgnoresPartialUnformattedAndRepeatedTurns(t *testing.T) {
	sink := &recordingSink{}
	streamer := &stubStreamer{}
	llm := &stubLLM{streams: []*stubStream{{chunks: []string{"Sure."}}}}
	speech := &stubSpeechGenerator{}

	orchestrator := NewOrchestrator(sink,
		WithTurnStreamer(streamer),
		WithStreamingLLM(llm),
		WithSpeechGenerator(speech),
	)
	if err := orchestrator.Start(context.Background()); err != nil {
		t.Fatalf("failed to start orchestrator: %v", err)
	}
	defer orchestrator.Close()

	streamer.EmitTurn(speechtotext.TurnCandidate{Transcript: "hello", EndOfTurn: false, Formatted: false})
	streamer.EmitTurn(speechtotext.TurnCandidate{Transcript: "hello", EndOfTurn: true, Formatted: false})
	streamer.EmitTurn(speechtotext.TurnCandidate{Transcript: "   ", EndOfTurn: true, Formatted: true})
	streamer.EmitTurn(finalTurn("Hello."))
	streamer.EmitTurn(finalTurn("Hello."))

	waitFor(t, "end of audio", func() bool {
		return countKind(sink.Events(), "audio_end") == 1
	})

	streamer.EmitTurn(finalTurn("Hello."))
	time.Sleep(50 * time.Millisecond)

	if got := countKind(sink.Events(), "transcription"); got != 1 {
		t.Fatalf("expected a single transcription, got %d", got)
	}
}

func TestBargeInCancelsActiveReply(t *testing.T) {
	sink := &recordingSink{}
	streamer := &stubStreamer{}
	blocked := &stubStream{chunks: []string{"Thinking"}, block: make(chan struct{})}
	llm := &stubLLM{streams: []*stubStream{
		blocked,
		{chunks: []string{"Second answer."}},
	}}
	speech := &stubSpeechGenerator{}

	orchestrator := NewOrchestrator(sink,
		WithTurnStreamer(streamer),
		WithStreamingLLM(llm),
		WithSpeechGenerator(speech),
	)
	if err := orchestrator.Start(context.Background()); err != nil {
		t.Fatalf("failed to start orchestrator: %v", err)
	}
	defer orchestrator.Close()

	streamer.EmitTurn(finalTurn("First question."))
	waitFor(t, "first reply chunk", func() bool {
		return countKind(sink.Events(), "llm_chunk") == 1
	})

	streamer.EmitTurn(finalTurn("Second question."))
	waitFor(t, "end of second reply audio", func() bool {
		return countKind(sink.Events(), "audio_end") == 1
	})

	events := sink.Events()
	interrupt := indexOfKind(events, "audio_interrupt")
	if interrupt == -1 {
		t.Fatalf("expected an audio_interrupt, got %v", eventKinds(events))
	}

	for i, event := range events {
		if i > interrupt && event.eventKind() == "llm_chunk" {
			if chunk := event.(LLMChunkEvent); chunk.Data == "Thinking" {
				t.Fatalf("superseded reply leaked an event after the interrupt: %v", eventKinds(events))
			}
		}
	}

	secondTranscription := -1
	for i, event := range events {
		if transcription, ok := event.(TranscriptionEvent); ok && transcription.Text == "Second question." {
			secondTranscription = i
		}
	}
	if secondTranscription == -1 || secondTranscription < interrupt {
		t.Fatalf("expected interrupt before the new transcription, got %v", eventKinds(events))
	}

	sessions := speech.Sessions()
	if len(sessions) != 2 {
		t.Fatalf("expected two speech sessions, got %d", len(sessions))
	}
	if !sessions[0].Cancelled() {
		t.Fatalf("expected the first speech session to be cancelled")
	}

	waitFor(t, "history append", func() bool {
		return len(orchestrator.History()) == 2
	})
	history := orchestrator.History()
	if history[0].Content != "Second question." {
		t.Fatalf("interrupted exchange should not be recorded, got %+v", history)
	}
}

func TestTurnRightAfterCompletedReplyIsNotABargeIn(t *testing.T) {
	streamer := &stubStreamer{}
	sink := &chainingSink{}
	sink.onAudioEnd = func() {
		streamer.EmitTurn(finalTurn("Second question."))
	}
	llm := &stubLLM{streams: []*stubStream{
		{chunks: []string{"First answer."}},
		{chunks: []string{"Second answer."}},
	}}
	speech := &stubSpeechGenerator{}

	orchestrator := NewOrchestrator(sink,
		WithTurnStreamer(streamer),
		WithStreamingLLM(llm),
		WithSpeechGenerator(speech),
	)
	if err := orchestrator.Start(context.Background()); err != nil {
		t.Fatalf("failed to start orchestrator: %v", err)
	}
	defer orchestrator.Close()

	streamer.EmitTurn(finalTurn("First question."))

	waitFor(t, "both exchanges in history", func() bool {
		return len(orchestrator.History()) == 4
	})

	events := sink.Events()
	if got := countKind(events, "audio_interrupt"); got != 0 {
		t.Fatalf("a completed reply must not be interrupted, got %v", eventKinds(events))
	}
	if got := countKind(events, "audio_end"); got != 2 {
		t.Fatalf("expected both replies to finish their audio, got %v", eventKinds(events))
	}

	history := orchestrator.History()
	if history[0].Content != "First question." || history[1].Content != "First answer." {
		t.Fatalf("first exchange missing from history: %+v", history)
	}
	if history[2].Content != "Second question." || history[3].Content != "Second answer." {
		t.Fatalf("second exchange missing from history: %+v", history)
	}
}

func TestTurnDroppedOnFullQueueCanBeRepeated(t *testing.T) {
	orchestrator := NewOrchestrator(&recordingSink{},
		WithTurnStreamer(&stubStreamer{}),
		WithStreamingLLM(&stubLLM{}),
		WithSpeechGenerator(&stubSpeechGenerator{}),
	)

	var lastTranscript string
	for i := 0; i < turnQueueCapacity; i++ {
		orchestrator.acceptTurn(finalTurn(fmt.Sprintf("Filler %d.", i)), &lastTranscript)
	}

	orchestrator.acceptTurn(finalTurn("Important question."), &lastTranscript)
	if len(orchestrator.turns) != turnQueueCapacity {
		t.Fatalf("expected the turn to be dropped on a full queue, got %d queued", len(orchestrator.turns))
	}

	<-orchestrator.turns
	orchestrator.acceptTurn(finalTurn("Important question."), &lastTranscript)

	var last string
	for len(orchestrator.turns) > 0 {
		last = <-orchestrator.turns
	}
	if last != "Important question." {
		t.Fatalf("expected the repeated turn to be queued, last queued was %q", last)
	}
}

func TestRecognitionFailureEmitsSingleErrorAndStops(t *testing.T) {
	sink := &recordingSink{}
	streamer := &stubStreamer{}
	llm := &stubLLM{}
	speech := &stubSpeechGenerator{}

	orchestrator := NewOrchestrator(sink,
		WithTurnStreamer(streamer),
		WithStreamingLLM(llm),
		WithSpeechGenerator(speech),
	)
	if err := orchestrator.Start(context.Background()); err != nil {
		t.Fatalf("failed to start orchestrator: %v", err)
	}
	defer orchestrator.Close()

	streamer.EmitError(errors.New("connection reset"))

	waitFor(t, "error event", func() bool {
		return countKind(sink.Events(), "error") == 1
	})
	waitFor(t, "streamer close", streamer.Closed)

	time.Sleep(50 * time.Millisecond)
	if got := countKind(sink.Events(), "error"); got != 1 {
		t.Fatalf("expected exactly one error event, got %d", got)
	}
}

func TestStartFailsSilentlyWhenStreamerCannotConnect(t *testing.T) {
	sink := &recordingSink{}
	streamer := &stubStreamer{connectErr: speechtotext.ErrMissingCredential}

	orchestrator := NewOrchestrator(sink,
		WithTurnStreamer(streamer),
		WithStreamingLLM(&stubLLM{}),
		WithSpeechGenerator(&stubSpeechGenerator{}),
	)

	err := orchestrator.Start(context.Background())
	if !errors.Is(err, speechtotext.ErrMissingCredential) {
		t.Fatalf("expected the connect error to surface, got %v", err)
	}
	if len(sink.Events()) != 0 {
		t.Fatalf("expected no events after failed start, got %v", eventKinds(sink.Events()))
	}
}

func TestMissingLLMCredentialKeepsSessionAlive(t *testing.T) {
	sink := &recordingSink{}
	streamer := &stubStreamer{}
	llm := &stubLLM{streams: []*stubStream{
		{err: llms.ErrMissingCredential},
		{chunks: []string{"Recovered."}},
	}}
	speech := &stubSpeechGenerator{}

	orchestrator := NewOrchestrator(sink,
		WithTurnStreamer(streamer),
		WithStreamingLLM(llm),
		WithSpeechGenerator(speech),
	)
	if err := orchestrator.Start(context.Background()); err != nil {
		t.Fatalf("failed to start orchestrator: %v", err)
	}
	defer orchestrator.Close()

	streamer.EmitTurn(finalTurn("First."))
	waitFor(t, "first transcription", func() bool {
		return countKind(sink.Events(), "transcription") == 1
	})

	streamer.EmitTurn(finalTurn("Second."))
	waitFor(t, "recovered reply", func() bool {
		return countKind(sink.Events(), "audio_end") >= 1
	})

	if got := countKind(sink.Events(), "error"); got != 0 {
		t.Fatalf("a missing llm credential should not surface as a client error, got %d error events", got)
	}
	if len(orchestrator.History()) != 2 {
		t.Fatalf("expected only the recovered exchange in history, got %+v", orchestrator.History())
	}
}
