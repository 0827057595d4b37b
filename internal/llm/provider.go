package llm

import "context"

// Provider abstracts the generative model backend. Prompts are single
// multi-turn-style strings; structured outputs are requested via prompt
// instructions and parsed defensively by the caller.
type Provider interface {
	// Complete returns the full completion for a prompt.
	Complete(ctx context.Context, prompt string) (string, error)
	// CompleteStream invokes onDelta for each text fragment in emission order.
	// The fragment sequence is finite and non-restartable.
	CompleteStream(ctx context.Context, prompt string, onDelta func(text string) error) error
}
