package opener

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"

	"lotting_ledger/internal/logger"
	"lotting_ledger/internal/ports"

	"go.uber.org/zap"
)

type HTTPOpener struct {
	Client *http.Client
	Log    *zap.Logger
}

func NewHTTPOpener(cli *http.Client, log *zap.Logger) *HTTPOpener {
	if cli == nil {
		cli = &http.Client{}
	}
	return &HTTPOpener{Client: cli, Log: logger.OrNop(log)}
}

func (h *HTTPOpener) Open(ctx context.Context, url string) (io.ReadCloser, ports.Meta, error) {
	h.Log.Debug("[OPENER][HTTP][START]", zap.String("url", url))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, ports.Meta{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		h.Log.Warn("[OPENER][HTTP][ERR] do request", zap.String("url", url), zap.Error(err))
		return nil, ports.Meta{}, err
	}
	ct := resp.Header.Get("Content-Type")
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		h.Log.Warn("[OPENER][HTTP][ERR] bad status", zap.Int("status", resp.StatusCode), zap.String("content_type", ct))
		return nil, ports.Meta{}, fmt.Errorf("http status %d", resp.StatusCode)
	}
	size := resp.ContentLength
	if size < 0 {
		size = -1
	}
	h.Log.Debug("[OPENER][HTTP][OK]", zap.String("content_type", ct), zap.Int64("size", size))
	return resp.Body, ports.Meta{
		Source:      "https",
		Name:        path.Base(req.URL.Path),
		ContentType: ct,
		Size:        size,
	}, nil
}
