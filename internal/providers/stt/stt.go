package stt

import "context"

// Result is one clip's recognition output.
type Result struct {
	Text       string
	Language   string
	Confidence float64
}

// Transcriber recognizes speech in a short mono 16 kHz WAV clip. An empty
// language requests auto-detection.
type Transcriber interface {
	TranscribeClip(ctx context.Context, clipPath string, language string) (Result, error)
	Close() error
}
