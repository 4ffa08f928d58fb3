package planner

import (
	"sync"
)

// defaultMaxTurns bounds how much conversation is replayed to the planner.
const defaultMaxTurns = 3

// Turn is one question/answer exchange.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// History is an explicit per-session conversation context, passed into the
// planner layer. The plan interpreter never sees it.
type History struct {
	mu    sync.Mutex
	turns []Turn
	max   int
}

// NewHistory creates a history keeping at most maxTurns exchanges; zero
// means the default of three.
func NewHistory(maxTurns int) *History {
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	return &History{max: maxTurns}
}

// Append records one exchange, evicting the oldest beyond the cap.
func (h *History) Append(question, answer string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.turns = append(h.turns, Turn{Question: question, Answer: answer})
	if len(h.turns) > h.max {
		h.turns = h.turns[len(h.turns)-h.max:]
	}
}

// Turns returns a copy of the recorded exchanges, oldest first.
func (h *History) Turns() []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}
