package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"lotting_ledger/internal/logger"
	"lotting_ledger/internal/metrics"
	"lotting_ledger/internal/models"
	"lotting_ledger/internal/ports"
	"lotting_ledger/internal/services/ledger"
)

// ProgressStride is how many records pass between progress events.
const ProgressStride = 10

type Warning struct {
	RowNumber int    `json:"row"`
	RecordID  int64  `json:"record_id,omitempty"`
	Message   string `json:"message"`
}

type Applied struct {
	RowNumber int   `json:"row"`
	RecordID  int64 `json:"record_id"`
	BuyerID   int   `json:"buyer_id"`
	Amount    int64 `json:"amount"`
	Fallback  bool  `json:"fallback"`
}

type Result struct {
	Applied  []Applied `json:"applied"`
	Skipped  int       `json:"skipped"`
	Warnings []Warning `json:"warnings"`
}

type Engine struct {
	Buyers         ports.BuyerRepository
	Deposits       ports.DepositRepository
	Status         *ledger.Aggregator
	Progress       ports.ProgressNotifier
	DefaultBuyerID int
	Metrics        *metrics.Metrics
	Log            *zap.Logger
	Now            func() time.Time
}

func NewEngine(buyers ports.BuyerRepository, deposits ports.DepositRepository, agg *ledger.Aggregator, defaultBuyerID int, log *zap.Logger) *Engine {
	return &Engine{
		Buyers:         buyers,
		Deposits:       deposits,
		Status:         agg,
		DefaultBuyerID: defaultBuyerID,
		Log:            logger.OrNop(log),
		Now:            time.Now,
	}
}

// ReconcileBatch applies each record to its buyer's schedule in order. A
// failing record is reported in Warnings and never stops the batch.
func (e *Engine) ReconcileBatch(ctx context.Context, records []models.TransactionRecord) Result {
	res := Result{Applied: []Applied{}, Warnings: []Warning{}}

	win, ok := ports.WindowFrom(ctx)
	if !ok {
		win = ports.BatchWindow{Offset: 0, Total: len(records)}
	}

	for i := range records {
		rec := &records[i]
		e.reconcileOne(ctx, rec, &res)

		current := win.Offset + i + 1
		if current%ProgressStride == 0 || current == win.Total {
			e.notify(ctx, models.ProgressEvent{Stage: models.StageProgress, Current: current, Total: win.Total})
		}
	}
	return res
}

func (e *Engine) reconcileOne(ctx context.Context, rec *models.TransactionRecord, res *Result) {
	defer func() {
		if p := recover(); p != nil {
			e.Log.Error("[REC][PANIC]", zap.Int("row", rec.RowNumber), zap.Any("panic", p))
			res.Skipped++
			res.Warnings = append(res.Warnings, Warning{RowNumber: rec.RowNumber, RecordID: rec.ID, Message: fmt.Sprintf("internal error: %v", p)})
			e.Metrics.Reconciled("skipped")
		}
	}()

	warn := func(msg string) {
		res.Warnings = append(res.Warnings, Warning{RowNumber: rec.RowNumber, RecordID: rec.ID, Message: msg})
		e.Metrics.Reconciled("warning")
	}
	for _, w := range rec.Warnings {
		warn(w)
	}

	DeriveLoanFlags(rec)

	buyer, fallback, err := e.resolveBuyer(ctx, rec.Contractor)
	if err != nil {
		e.storeUnlinked(ctx, rec, err.Error(), warn)
		res.Skipped++
		e.Metrics.Reconciled("skipped")
		return
	}

	id := buyer.ID
	rec.BuyerID = &id
	for _, msg := range e.applyPayment(buyer, rec) {
		warn(msg)
	}
	e.Status.Recompute(buyer)

	if err := e.Buyers.SaveWithDeposit(ctx, buyer, rec); err != nil {
		e.Log.Warn("[REC][WARN] save buyer", zap.Int("row", rec.RowNumber), zap.Int("buyer_id", buyer.ID), zap.Error(err))
		rec.BuyerID = nil
		e.storeUnlinked(ctx, rec, fmt.Sprintf("save buyer %d: %v", id, err), warn)
		res.Skipped++
		e.Metrics.Reconciled("skipped")
		return
	}

	res.Applied = append(res.Applied, Applied{
		RowNumber: rec.RowNumber,
		RecordID:  rec.ID,
		BuyerID:   buyer.ID,
		Amount:    rec.DepositAmount,
		Fallback:  fallback,
	})
	e.Metrics.Reconciled("applied")
	e.Log.Debug("[REC] applied", zap.Int("row", rec.RowNumber), zap.Int("buyer_id", buyer.ID),
		zap.Int64("amount", rec.DepositAmount), zap.Bool("fallback", fallback))
}

// storeUnlinked keeps the record in the deposit history without a buyer so
// it can be matched by hand later.
func (e *Engine) storeUnlinked(ctx context.Context, rec *models.TransactionRecord, reason string, warn func(string)) {
	rec.Unlinked = true
	rec.Warnings = append(rec.Warnings, reason)
	warn(reason)
	if err := e.Deposits.Insert(ctx, rec); err != nil {
		e.Log.Warn("[REC][WARN] store deposit record", zap.Int("row", rec.RowNumber), zap.Error(err))
		warn("store deposit record: " + err.Error())
	}
}

var (
	ErrNoBuyer         = errors.New("no buyer for contractor and default buyer missing")
	ErrBlankContractor = errors.New("contractor is blank")
)

// resolveBuyer matches the contractor name exactly and falls back to the
// default buyer. A blank name is never matched.
func (e *Engine) resolveBuyer(ctx context.Context, contractor string) (*models.Buyer, bool, error) {
	name := strings.TrimSpace(contractor)
	if name == "" {
		return nil, false, ErrBlankContractor
	}
	b, err := e.Buyers.FindByName(ctx, name)
	if err == nil {
		return b, false, nil
	}
	if !errors.Is(err, ports.ErrNotFound) {
		return nil, false, fmt.Errorf("lookup contractor %q: %w", name, err)
	}

	b, err = e.Buyers.FindByID(ctx, e.DefaultBuyerID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, false, fmt.Errorf("%w: contractor %q, default buyer %d", ErrNoBuyer, name, e.DefaultBuyerID)
		}
		return nil, false, fmt.Errorf("lookup default buyer %d: %w", e.DefaultBuyerID, err)
	}
	return b, true, nil
}

// DeriveLoanFlags sets LoanStatus from the self/loan audit columns and, for
// loan-backed deposits, collects the flagged phase numbers.
func DeriveLoanFlags(rec *models.TransactionRecord) {
	rec.TargetPhases = nil
	if strings.TrimSpace(rec.SelfRecord) == "" && strings.TrimSpace(rec.LoanRecord) == "" {
		rec.LoanStatus = models.LoanStatusNone
		return
	}
	rec.LoanStatus = models.LoanStatusActive
	for i, set := range rec.PhaseFlags {
		if set {
			rec.TargetPhases = append(rec.TargetPhases, i+1)
		}
	}
}

// applyPayment spreads the deposit over the target phases, or over pending
// phases in phase order when there are no targets. It returns warnings for
// amounts that could not be placed.
func (e *Engine) applyPayment(b *models.Buyer, rec *models.TransactionRecord) []string {
	amount := rec.DepositAmount
	if amount <= 0 {
		return nil
	}

	candidates := e.candidatePhases(b, rec.TargetPhases)
	if len(candidates) == 0 {
		return []string{fmt.Sprintf("buyer %d has no phase to absorb %d", b.ID, amount)}
	}

	paidOn := e.Now()
	if rec.TransactionTime != nil {
		paidOn = *rec.TransactionTime
	}
	paidOn = models.DateOf(paidOn)

	remaining := amount
	for _, p := range candidates {
		if remaining == 0 {
			break
		}
		applied := min(remaining, p.Sum)
		if applied <= 0 {
			continue
		}
		p.Charged += applied
		p.Sum -= applied
		remaining -= applied
		if p.Sum == 0 && p.PaidInFullDate == nil {
			d := paidOn
			p.PaidInFullDate = &d
		}
	}

	if remaining > 0 {
		last := candidates[len(candidates)-1]
		last.Charged += remaining
		return []string{fmt.Sprintf("overpayment of %d booked on buyer %d phase %d", remaining, b.ID, last.PhaseNumber)}
	}
	return nil
}

func (e *Engine) candidatePhases(b *models.Buyer, targets []int) []*models.Phase {
	var out []*models.Phase
	if len(targets) > 0 {
		for _, n := range targets {
			if p := b.Phase(n); p != nil {
				out = append(out, p)
			}
		}
	} else {
		for i := range b.Phases {
			if b.Phases[i].Pending() {
				out = append(out, &b.Phases[i])
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PhaseNumber < out[j].PhaseNumber })
	return out
}

func (e *Engine) notify(ctx context.Context, ev models.ProgressEvent) {
	if e.Progress == nil {
		return
	}
	ev.ImportRecordID = ports.ImportRecordIDFrom(ctx)
	if err := e.Progress.Notify(ctx, ev); err != nil {
		e.Metrics.ProgressDropped()
		e.Log.Warn("[REC][WARN] progress not delivered", zap.Int("current", ev.Current), zap.Error(err))
	}
}
