package ports

import (
	"context"
	"io"
)

// Meta describes where an opened sheet came from.
type Meta struct {
	Source      string
	Name        string
	ContentType string
	Size        int64
	Bucket      string
	Key         string
}

type FileOpener interface {
	Open(ctx context.Context, filePath string) (io.ReadCloser, Meta, error)
}
