package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"lotting_ledger/internal/models"

	"go.uber.org/zap"
)

const sseKeepAlive = 15 * time.Second

// ImportProgress streams an import's progress as server-sent events until the
// import completes, fails or the client goes away. Progress events carry
// "current/total" as data; complete and error events carry their message.
func (h *Handlers) ImportProgress(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("import_record_id")
	if id == "" {
		h.Error(w, r, errors.Join(errBadRequest, errors.New("import_record_id is required")))
		return
	}
	if h.Subscribe == nil {
		h.JSON(w, http.StatusServiceUnavailable, map[string]string{"error": "progress streaming is not configured"})
		return
	}

	events, err := h.Subscribe(r.Context(), id)
	if err != nil {
		h.Error(w, r, fmt.Errorf("subscribe %s: %w", id, err))
		return
	}

	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_ = rc.Flush()

	h.Logger.Debug("[SSE] subscribed", zap.String("import_record_id", id))
	tick := time.NewTicker(sseKeepAlive)
	defer tick.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-tick.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			_ = rc.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Stage, sseData(ev)); err != nil {
				h.Logger.Debug("[SSE] client gone", zap.String("import_record_id", id), zap.Error(err))
				return
			}
			_ = rc.Flush()
			if ev.Terminal() {
				return
			}
		}
	}
}

func sseData(ev models.ProgressEvent) string {
	if ev.Stage == models.StageProgress {
		return fmt.Sprintf("%d/%d", ev.Current, ev.Total)
	}
	return ev.Message
}
