// Package filestorage stores checkpoint archives either on local disk or in
// an S3-compatible bucket.
package filestorage

import (
	"fmt"
	"io"
	"strings"

	"github.com/labzang/sentiment-server/internal/config"
)

const (
	FilesystemLocal = "local"
	FilesystemS3    = "s3"
)

type FileStorage interface {
	// Store writes content under name and returns where it landed: a path
	// for local storage, an object key for S3.
	Store(name string, content io.Reader) (string, error)

	// Open returns a reader for a previously stored name.
	Open(name string) (io.ReadCloser, error)
}

func NewFileStorage(cfg *config.Config) (FileStorage, error) {
	switch strings.ToLower(cfg.Filesystem) {
	case FilesystemLocal, "":
		return NewLocalStorage(cfg.ArchiveDir), nil
	case FilesystemS3:
		return NewS3Storage(cfg.S3)
	default:
		return nil, fmt.Errorf("invalid filesystem type %s", cfg.Filesystem)
	}
}
