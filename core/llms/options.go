package llms

type PromptOptions struct {
	// Instructions is the fixed system preamble describing the assistant's
	// persona and identity.
	Instructions string
	// Turns is the prior conversation history, earliest first.
	Turns []Turn
}

type PromptOption func(*PromptOptions)

func WithInstructions(instructions string) PromptOption {
	return func(o *PromptOptions) {
		o.Instructions = instructions
	}
}

func WithTurns(turns ...Turn) PromptOption {
	return func(o *PromptOptions) {
		o.Turns = append(o.Turns, turns...)
	}
}
