package orchestration

import "sync"

// EventSink delivers events to the client. Implementations must serialize
// concurrent Send calls.
type EventSink interface {
	Send(event Event) error
}

// gatedSink wraps an EventSink so a superseded response pipeline can be shut
// off atomically. Once Shut, no further event passes through, which keeps
// events of a cancelled reply from trailing in after the interrupt was
// announced.
type gatedSink struct {
	sink EventSink

	mu   sync.Mutex
	shut bool
}

func newGatedSink(sink EventSink) *gatedSink {
	return &gatedSink{sink: sink}
}

func (g *gatedSink) Send(event Event) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.shut {
		return nil
	}
	return g.sink.Send(event)
}

func (g *gatedSink) Shut() {
	g.mu.Lock()
	g.shut = true
	g.mu.Unlock()
}
