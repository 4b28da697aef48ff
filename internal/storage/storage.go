package storage

import (
	"context"
	"io"
)

type Uploader interface {
	Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (storedPath string, err error)
}

// Downloader fetches an uploaded object to the local filesystem so the
// media tools can work on it.
type Downloader interface {
	Download(ctx context.Context, objectName, destPath string) error
}

type Store interface {
	Uploader
	Downloader
}
