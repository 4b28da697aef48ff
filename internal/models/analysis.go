package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MeetingAnalysis is the structured LLM output for one completed job,
// stored as a document.
type MeetingAnalysis struct {
	ID    primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	JobID uint               `bson:"job_id" json:"job_id"`

	Summary       string       `bson:"summary" json:"summary"`
	Decisions     []string     `bson:"decisions,omitempty" json:"decisions,omitempty"`
	ActionItems   []ActionItem `bson:"action_items,omitempty" json:"action_items,omitempty"`
	OpenQuestions []string     `bson:"open_questions,omitempty" json:"open_questions,omitempty"`

	Language  string    `bson:"language,omitempty" json:"language,omitempty"`
	Model     string    `bson:"model,omitempty" json:"model,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

type ActionItem struct {
	Owner string `bson:"owner,omitempty" json:"owner,omitempty"`
	Task  string `bson:"task" json:"task"`
	Due   string `bson:"due,omitempty" json:"due,omitempty"`
}
