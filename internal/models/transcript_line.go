package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// TranscriptLine is one grouped speaker line of a finished transcript,
// embedded for semantic search.
type TranscriptLine struct {
	ID    string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	JobID uint   `gorm:"column:job_id;index" json:"job_id"`

	Speaker      string  `gorm:"column:speaker;type:text" json:"speaker"`
	Content      string  `gorm:"column:content;type:text" json:"content"`
	StartSeconds float64 `gorm:"column:start_seconds;type:double precision" json:"start_seconds"`

	Embedding pgvector.Vector `gorm:"column:embedding;type:vector(768)" json:"-"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (TranscriptLine) TableName() string { return "transcript_lines" }
