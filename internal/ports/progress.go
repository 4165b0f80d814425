package ports

import (
	"context"

	"lotting_ledger/internal/models"
)

type ProgressNotifier interface {
	Notify(ctx context.Context, ev models.ProgressEvent) error
}

// BatchWindow locates the rows of one processor batch inside the whole file.
type BatchWindow struct {
	Offset int
	Total  int
}

const CtxBatchWindow ctxKey = "batch_window"

func WindowFrom(ctx context.Context) (BatchWindow, bool) {
	w, ok := ctx.Value(CtxBatchWindow).(BatchWindow)
	return w, ok
}
