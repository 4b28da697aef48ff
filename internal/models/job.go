package models

import (
	"time"

	"gorm.io/datatypes"
)

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Job is the durable processing record for one uploaded meeting. The job row
// is the source of truth for completion; checkpoints only skip redone work.
type Job struct {
	ID uint `gorm:"column:id;primaryKey;autoIncrement" json:"id"`

	FileName     string `gorm:"column:file_name;type:text" json:"file_name"`
	SourceObject string `gorm:"column:source_object;type:text" json:"source_object"` // bucket object name
	SourceDigest string `gorm:"column:source_digest;type:text;index" json:"source_digest"`
	FileSize     int64  `gorm:"column:file_size;type:bigint" json:"file_size"`
	MimeType     string `gorm:"column:mime_type;type:text" json:"mime_type"`

	Status          JobStatus `gorm:"column:status;type:text;index" json:"status"`
	DurationSeconds float64   `gorm:"column:duration_seconds;type:double precision" json:"duration_seconds"`

	// set on success; a non-nil transcription means the job is complete
	Transcription *string `gorm:"column:transcription;type:text" json:"transcription,omitempty"`
	Language      string  `gorm:"column:language;type:text" json:"language,omitempty"`
	SpeakerCount  int     `gorm:"column:speaker_count;type:integer" json:"speaker_count"`

	Analysis    datatypes.JSON `gorm:"column:analysis;type:jsonb" json:"analysis,omitempty"`
	ErrorDetail datatypes.JSON `gorm:"column:error_detail;type:jsonb" json:"error_detail,omitempty"`

	CreatedAt   time.Time  `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	StartedAt   *time.Time `gorm:"column:started_at;type:timestamptz" json:"started_at,omitempty"`
	CompletedAt *time.Time `gorm:"column:completed_at;type:timestamptz" json:"completed_at,omitempty"`
}

func (Job) TableName() string { return "jobs" }

// HasTranscription reports whether a final transcript is durably persisted.
func (j *Job) HasTranscription() bool {
	return j != nil && j.Transcription != nil && *j.Transcription != ""
}
