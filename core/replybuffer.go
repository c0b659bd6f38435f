package orchestration

import (
	"strings"
	"sync"
)

// replyBuffer is the conduit between reply generation and reply delivery.
// The generator appends fragments as the model produces them; the delivery
// worker ranges over Chunks, blocking until more text arrives or the reply is
// complete. Delivered fragments are folded into a builder so the pending
// queue only holds what has not been spoken yet.
type replyBuffer struct {
	mu        sync.Mutex
	pending   []string
	delivered strings.Builder
	complete  bool
	cleared   bool
	wake      chan struct{}
}

func newReplyBuffer() *replyBuffer {
	return &replyBuffer{wake: make(chan struct{}, 1)}
}

func (b *replyBuffer) AddChunk(chunk string) {
	b.mu.Lock()
	b.pending = append(b.pending, chunk)
	b.mu.Unlock()
	b.signal()
}

func (b *replyBuffer) TextComplete() {
	b.mu.Lock()
	b.complete = true
	b.mu.Unlock()
	b.signal()
}

// Chunks yields fragments in arrival order and returns once the reply is
// complete and drained, or the buffer has been cleared.
func (b *replyBuffer) Chunks(yield func(string) bool) {
	for {
		b.mu.Lock()
		if b.cleared {
			b.mu.Unlock()
			return
		}

		if len(b.pending) > 0 {
			chunk := b.pending[0]
			b.pending = b.pending[1:]
			b.delivered.WriteString(chunk)
			b.mu.Unlock()
			if !yield(chunk) {
				return
			}
			continue
		}

		if b.complete {
			b.mu.Unlock()
			return
		}

		b.mu.Unlock()
		<-b.wake
	}
}

// String returns the whole reply so far, delivered or not.
func (b *replyBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.delivered.String() + strings.Join(b.pending, "")
}

func (b *replyBuffer) Clear() {
	b.mu.Lock()
	b.cleared = true
	b.mu.Unlock()
	b.signal()
}

func (b *replyBuffer) signal() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}
