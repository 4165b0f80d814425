package opener

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"lotting_ledger/internal/ports"
)

// LocalOpener reads sheets from a directory on disk. Paths may not escape Root.
type LocalOpener struct {
	Root string
}

func NewLocalOpener(root string) *LocalOpener {
	return &LocalOpener{Root: root}
}

func (l *LocalOpener) Open(_ context.Context, name string) (io.ReadCloser, ports.Meta, error) {
	if l.Root == "" {
		return nil, ports.Meta{}, errors.New("local root not configured")
	}
	rel := filepath.Clean("/" + strings.TrimSpace(name))
	full := filepath.Join(l.Root, rel)

	f, err := os.Open(full)
	if err != nil {
		return nil, ports.Meta{}, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, ports.Meta{}, err
	}
	return f, ports.Meta{
		Source: "file",
		Name:   filepath.Base(full),
		Size:   st.Size(),
	}, nil
}
