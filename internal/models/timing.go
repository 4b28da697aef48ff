package models

import "time"

// DiarizationTiming is one historical (duration, processing-time) record.
// Append-only; the running mean of ProcessingTime/AudioDuration drives
// time estimation for future diarization runs.
type DiarizationTiming struct {
	ID uint `gorm:"column:id;primaryKey;autoIncrement" json:"id"`

	AudioDurationSeconds  float64 `gorm:"column:audio_duration_seconds;type:double precision" json:"audio_duration_seconds"`
	ProcessingTimeSeconds float64 `gorm:"column:processing_time_seconds;type:double precision" json:"processing_time_seconds"`
	NumSpeakers           int     `gorm:"column:num_speakers;type:integer" json:"num_speakers"`
	FileSizeBytes         int64   `gorm:"column:file_size_bytes;type:bigint" json:"file_size_bytes"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (DiarizationTiming) TableName() string { return "diarization_timings" }
