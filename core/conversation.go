package orchestration

import (
	"sync"

	"github.com/jinzhu/copier"

	"github.com/Priya-Diwakar/nova-voice-assistant/core/llms"
)

// conversation tracks the turns exchanged so far. Only fully completed
// exchanges are recorded: a reply cut short by an interruption leaves no
// trace, so the model is never shown text the user did not hear.
type conversation struct {
	mu    sync.Mutex
	turns []llms.Turn
}

func (c *conversation) AppendExchange(userText string, reply string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.turns = append(c.turns,
		llms.Turn{Role: llms.RoleUser, Content: userText},
		llms.Turn{Role: llms.RoleModel, Content: reply},
	)
}

// Snapshot returns a deep copy of the history, safe to hand to a pipeline
// that outlives later appends.
func (c *conversation) Snapshot() []llms.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()

	turns := []llms.Turn{}
	if err := copier.Copy(&turns, &c.turns); err != nil {
		logger.Error("Failed to copy conversation history", "error", err)
		return nil
	}
	return turns
}
