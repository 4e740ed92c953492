// Package ai defines the summarization port, its Anthropic implementation,
// and defensive parsing of model output.
package ai

import "context"

// Completer produces a completion for a prompt. Implementations must treat
// the prompt as the full instruction; no conversation state is kept.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Summary is the structured output requested from the model for one
// opportunity page.
type Summary struct {
	Title      string  `json:"title"`
	Summary    string  `json:"summary"`
	BudgetText string  `json:"budget_text"`
	Deadline   string  `json:"deadline"`
	Contact    Contact `json:"contact"`
	Location   string  `json:"location"`
	Sector     string  `json:"sector"`
	Confidence float64 `json:"confidence"`
}

// Contact holds extracted reach-out details.
type Contact struct {
	Phone string `json:"phone"`
	Email string `json:"email"`
}
