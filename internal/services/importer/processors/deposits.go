package processors

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"lotting_ledger/internal/models"
	"lotting_ledger/internal/ports"
	importitems "lotting_ledger/internal/repository/imports"
	"lotting_ledger/internal/services/reconcile"
	"lotting_ledger/internal/utils"

	"go.uber.org/zap"
)

// Column positions of the bank deposit sheet.
const (
	colID = iota
	colTime
	colDescription
	colDetails
	colContractor
	colWithdrawn
	colDeposit
	colBalance
	colBranch
	colAccount
	_
	colFirstPhaseFlag
	colSelfRecord = colFirstPhaseFlag + models.PhaseFlagCount
	colLoanRecord = colSelfRecord + 1
)

type DepositsProcessor struct {
	*BaseProcessor
	Engine *reconcile.Engine
}

func NewDepositsProcessor(base *BaseProcessor, engine *reconcile.Engine) *DepositsProcessor {
	return &DepositsProcessor{BaseProcessor: base, Engine: engine}
}

func (p *DepositsProcessor) Type() string { return "deposits" }

func (p *DepositsProcessor) ProcessBatch(ctx context.Context, batch []ports.Row) error {
	if p.Engine == nil {
		return errors.New("reconciliation engine not configured")
	}
	importRecordID := ports.ImportRecordIDFrom(ctx)
	p.Log.Debug("[PROC][deposits][START]", zap.Int("rows", len(batch)), zap.String("import_record_id", importRecordID))

	recs := make([]models.TransactionRecord, len(batch))
	for i, row := range batch {
		recs[i] = ParseDepositRow(row)
	}

	res := p.Engine.ReconcileBatch(ctx, recs)
	ports.TallyFrom(ctx).Add(len(res.Applied), res.Skipped, len(res.Warnings))

	applied := make(map[int]bool, len(res.Applied))
	for _, a := range res.Applied {
		applied[a.RowNumber] = true
	}
	warnings := make(map[int][]string)
	for _, w := range res.Warnings {
		warnings[w.RowNumber] = append(warnings[w.RowNumber], w.Message)
	}

	for i := range recs {
		rec := &recs[i]
		status := importitems.ItemDone
		switch {
		case !applied[rec.RowNumber]:
			status = importitems.ItemFailed
		case len(warnings[rec.RowNumber]) > 0:
			status = importitems.ItemWarning
		}
		p.logItem(ctx, importitems.LogParams{
			ImportRecordID: importRecordID,
			ModelType:      importitems.ModelTypeDeposits,
			ModelID:        strconv.FormatInt(rec.ID, 10),
			RowNumber:      rec.RowNumber,
			Payload:        rec,
			Status:         status,
			Errors:         strings.Join(warnings[rec.RowNumber], "; "),
		})
	}

	p.Log.Info("[PROC][deposits][DONE]", zap.Int("rows", len(batch)), zap.Int("applied", len(res.Applied)),
		zap.Int("skipped", res.Skipped), zap.Int("warnings", len(res.Warnings)))
	return nil
}

// ParseDepositRow maps one sheet row onto a TransactionRecord. Cells that
// fail to parse are left at their zero value and noted in Warnings.
func ParseDepositRow(row ports.Row) models.TransactionRecord {
	rec := models.TransactionRecord{RowNumber: row.Number}
	warn := func(err error) { rec.Warnings = append(rec.Warnings, err.Error()) }
	cell := func(i int) string { return row.Cell(i) }

	if s := strings.TrimSpace(cell(colID)); s != "" {
		if id, err := parseAmount("transaction id", s); err != nil {
			warn(err)
		} else {
			rec.ID = id
		}
	}

	if t, err := parseTransactionTime(cell(colTime)); err != nil {
		warn(err)
	} else {
		rec.TransactionTime = t
	}

	rec.Description = cell(colDescription)
	rec.Details = cell(colDetails)
	rec.Contractor = utils.NormalizeName(cell(colContractor))

	for _, f := range []struct {
		name string
		col  int
		dst  *int64
	}{
		{"withdrawn amount", colWithdrawn, &rec.WithdrawnAmount},
		{"deposit amount", colDeposit, &rec.DepositAmount},
		{"balance after", colBalance, &rec.BalanceAfter},
	} {
		n, err := parseAmount(f.name, cell(f.col))
		if err != nil {
			warn(err)
			continue
		}
		*f.dst = n
	}

	rec.Branch = cell(colBranch)
	rec.Account = cell(colAccount)

	for i := range rec.PhaseFlags {
		rec.PhaseFlags[i] = strings.TrimSpace(cell(colFirstPhaseFlag+i)) != ""
	}
	rec.SelfRecord = strings.TrimSpace(cell(colSelfRecord))
	rec.LoanRecord = strings.TrimSpace(cell(colLoanRecord))
	return rec
}
