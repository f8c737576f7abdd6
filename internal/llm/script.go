package llm

import (
	"context"
	"sync"

	"github.com/lumenos/lumen/internal/domain"
)

// ScriptProvider replays a fixed sequence of turns. It backs offline
// development (LUMEN_MODEL_PROVIDER=script) and deterministic tests: each
// conversation pops the next scripted turn on every send, regardless of
// what was sent.
type ScriptProvider struct {
	// Turns are consumed in order by each conversation independently.
	Turns []Turn
	// Err, when set, is returned by every send instead of a turn.
	Err error
}

func (p *ScriptProvider) NewConversation() Conversation {
	turns := make([]Turn, len(p.Turns))
	copy(turns, p.Turns)
	return &scriptConversation{turns: turns, err: p.Err}
}

type scriptConversation struct {
	mu    sync.Mutex
	turns []Turn
	err   error

	// Inputs received, retained for test assertions.
	Intents     []string
	ToolResults []any
	Texts       []string
}

func (c *scriptConversation) SendIntent(_ context.Context, intent string, _ []domain.ToolDescriptor) (*Turn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Intents = append(c.Intents, intent)
	return c.next()
}

func (c *scriptConversation) SendToolResult(_ context.Context, _ string, payload any) (*Turn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ToolResults = append(c.ToolResults, payload)
	return c.next()
}

func (c *scriptConversation) SendText(_ context.Context, text string) (*Turn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Texts = append(c.Texts, text)
	return c.next()
}

func (c *scriptConversation) next() (*Turn, error) {
	if c.err != nil {
		return nil, c.err
	}
	if len(c.turns) == 0 {
		return &Turn{Text: "Done."}, nil
	}
	turn := c.turns[0]
	c.turns = c.turns[1:]
	return &turn, nil
}
