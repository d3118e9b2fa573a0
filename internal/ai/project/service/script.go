package service

import "github.com/Jamolkhon5/nexter/internal/ai/project/prompts"

// ScriptPrompt is one step of the local organize script.
type ScriptPrompt struct {
	Text         string
	IsOrganizing bool
}

// Script is the deterministic local substitute for the refine service.
type Script struct{}

// Len is the number of questions before the closing message.
func (Script) Len() int {
	return len(prompts.Questions)
}

// Prompt returns the question for step, or the closing message once the questions run out.
func (s Script) Prompt(step int, title string) ScriptPrompt {
	if step >= s.Len() {
		return s.Closing()
	}
	if step < 0 {
		step = 0
	}
	return ScriptPrompt{Text: prompts.Question(step, title)}
}

// Closing is the wrap-up message that ends a local organize flow.
func (Script) Closing() ScriptPrompt {
	return ScriptPrompt{Text: prompts.ClosingMessage, IsOrganizing: true}
}
