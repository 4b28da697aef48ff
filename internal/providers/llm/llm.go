package llm

import (
	"context"

	"github.com/minuteflow/minuteflow/internal/models"
)

// Analysis is the structured output of transcript analysis.
type Analysis struct {
	Summary       string              `json:"summary"`
	Decisions     []string            `json:"decisions"`
	ActionItems   []models.ActionItem `json:"action_items"`
	OpenQuestions []string            `json:"open_questions"`
}

type Message struct {
	Role    string `json:"role"` // user|assistant
	Content string `json:"content"`
}

// Provider is the opaque LLM capability the pipeline consumes. Failure
// classes (connection, timeout, rate-limit, auth) feed the API retry policy.
type Provider interface {
	Analyze(ctx context.Context, transcript, systemPrompt string) (*Analysis, error)
	Chat(ctx context.Context, messages []Message, systemPrompt string) (string, error)
	Embed(ctx context.Context, text string) ([]float32, error)
	Close() error
}
