package ports

import (
	"context"
	"sync"
)

type ctxKey string

const CtxImportRecordID ctxKey = "import_record_id"

// Row is one positional data row of an imported sheet. Number is 1-based and
// counts from the first data row after the header.
type Row struct {
	Number int
	Cells  []string
}

func (r Row) Cell(i int) string {
	if i < 0 || i >= len(r.Cells) {
		return ""
	}
	return r.Cells[i]
}

type Processor interface {
	Type() string
	ProcessBatch(ctx context.Context, batch []Row) error
}

func ImportRecordIDFrom(ctx context.Context) string {
	s, _ := ctx.Value(CtxImportRecordID).(string)
	return s
}

const CtxTally ctxKey = "tally"

// Tally accumulates row outcomes across all batches of one import.
type Tally struct {
	mu       sync.Mutex
	applied  int
	skipped  int
	warnings int
}

func (t *Tally) Add(applied, skipped, warnings int) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.applied += applied
	t.skipped += skipped
	t.warnings += warnings
}

func (t *Tally) Totals() (applied, skipped, warnings int) {
	if t == nil {
		return 0, 0, 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.applied, t.skipped, t.warnings
}

func TallyFrom(ctx context.Context) *Tally {
	t, _ := ctx.Value(CtxTally).(*Tally)
	return t
}
