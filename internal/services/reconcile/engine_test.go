package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotting_ledger/internal/models"
	"lotting_ledger/internal/ports"
	"lotting_ledger/internal/repository/memory"
	"lotting_ledger/internal/services/ledger"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }

func buyerWithSchedule(id int, name string) *models.Buyer {
	return &models.Buyer{
		ID: id, Name: name, Status: models.BuyerActive, RegisterDate: day(2024, time.January, 1),
		Phases: []models.Phase{
			{BuyerID: id, PhaseNumber: 1, Charge: 1_000, FeeSum: 1_000, Sum: 1_000, ScheduledDate: ptr(day(2024, time.January, 1))},
			{BuyerID: id, PhaseNumber: 2, Charge: 500, FeeSum: 500, Sum: 500, ScheduledDate: ptr(day(2024, time.July, 1))},
			{BuyerID: id, PhaseNumber: 3, Charge: 500, FeeSum: 500, Sum: 500, ScheduledDate: ptr(day(2025, time.January, 1))},
		},
	}
}

type recordingNotifier struct {
	events []models.ProgressEvent
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, ev models.ProgressEvent) error {
	n.events = append(n.events, ev)
	return n.err
}

func newEngine(t *testing.T, buyers ...*models.Buyer) (*Engine, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	for _, b := range buyers {
		require.NoError(t, store.Create(context.Background(), b))
	}
	clock := func() time.Time { return day(2024, time.August, 1) }
	e := NewEngine(store, store, ledger.NewAggregator(clock), 1, nil)
	e.Now = clock
	return e, store
}

func TestReconcileAppliesToOldestPendingPhases(t *testing.T) {
	e, store := newEngine(t, buyerWithSchedule(1, "기본"), buyerWithSchedule(2, "홍길동"))
	ctx := context.Background()

	res := e.ReconcileBatch(ctx, []models.TransactionRecord{
		{RowNumber: 1, Contractor: "홍길동", DepositAmount: 1_200, TransactionTime: ptr(time.Date(2024, time.March, 3, 14, 0, 0, 0, time.UTC))},
	})
	require.Len(t, res.Applied, 1)
	assert.Equal(t, 2, res.Applied[0].BuyerID)
	assert.False(t, res.Applied[0].Fallback)
	assert.Empty(t, res.Warnings)

	b, err := store.FindByID(ctx, 2)
	require.NoError(t, err)
	p1, p2 := b.Phase(1), b.Phase(2)
	assert.Equal(t, int64(0), p1.Sum)
	assert.Equal(t, int64(1_000), p1.Charged)
	require.NotNil(t, p1.PaidInFullDate)
	assert.Equal(t, day(2024, time.March, 3), *p1.PaidInFullDate)
	assert.Equal(t, int64(300), p2.Sum)
	assert.Equal(t, int64(200), p2.Charged)
	assert.Nil(t, p2.PaidInFullDate)

	assert.Equal(t, "2", b.Summary.UnpaidPhases)
	assert.Equal(t, int64(800), b.Summary.UnpaidAmount)

	deps, _ := store.List(ctx)
	require.Len(t, deps, 1)
	assert.Equal(t, 2, *deps[0].BuyerID)
}

func TestReconcileFallsBackToDefaultBuyer(t *testing.T) {
	e, store := newEngine(t, buyerWithSchedule(1, "기본"))
	ctx := context.Background()

	res := e.ReconcileBatch(ctx, []models.TransactionRecord{{RowNumber: 1, Contractor: "없는사람", DepositAmount: 0}})
	require.Len(t, res.Applied, 1)
	assert.Equal(t, 1, res.Applied[0].BuyerID)
	assert.True(t, res.Applied[0].Fallback)

	b, _ := store.FindByID(ctx, 1)
	require.NotNil(t, b.Summary)
	assert.Equal(t, "1,2", b.Summary.UnpaidPhases)
}

func TestReconcileKeepsUnlinkedRecordWhenDefaultMissing(t *testing.T) {
	e, store := newEngine(t, buyerWithSchedule(5, "홍길동"))
	ctx := context.Background()

	res := e.ReconcileBatch(ctx, []models.TransactionRecord{
		{RowNumber: 1, Contractor: "없는사람", DepositAmount: 100},
		{RowNumber: 2, Contractor: "홍길동", DepositAmount: 100},
	})
	assert.Len(t, res.Applied, 1)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, 1, res.Warnings[0].RowNumber)

	deps, _ := store.List(ctx)
	require.Len(t, deps, 2)
	assert.True(t, deps[0].Unlinked)
	assert.Nil(t, deps[0].BuyerID)
}

func TestReconcileTargetsLoanPhases(t *testing.T) {
	e, store := newEngine(t, buyerWithSchedule(1, "홍길동"))
	ctx := context.Background()

	rec := models.TransactionRecord{RowNumber: 1, Contractor: "홍길동", DepositAmount: 500, LoanRecord: "대출"}
	rec.PhaseFlags[2] = true
	res := e.ReconcileBatch(ctx, []models.TransactionRecord{rec})
	require.Len(t, res.Applied, 1)

	b, _ := store.FindByID(ctx, 1)
	assert.Equal(t, int64(1_000), b.Phase(1).Sum)
	assert.Equal(t, int64(0), b.Phase(3).Sum)
	assert.NotNil(t, b.Phase(3).PaidInFullDate)

	deps, _ := store.List(ctx)
	assert.Equal(t, models.LoanStatusActive, deps[0].LoanStatus)
	assert.Equal(t, []int{3}, deps[0].TargetPhases)
}

func TestReconcileReportsOverpayment(t *testing.T) {
	e, store := newEngine(t, buyerWithSchedule(1, "홍길동"))
	ctx := context.Background()

	res := e.ReconcileBatch(ctx, []models.TransactionRecord{{RowNumber: 4, Contractor: "홍길동", DepositAmount: 2_300}})
	require.Len(t, res.Applied, 1)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0].Message, "overpayment of 300")

	b, _ := store.FindByID(ctx, 1)
	assert.Equal(t, int64(800), b.Phase(3).Charged)
	assert.Equal(t, int64(0), b.Summary.UnpaidAmount)
}

func TestReconcileCarriesParseWarnings(t *testing.T) {
	e, _ := newEngine(t, buyerWithSchedule(1, "홍길동"))
	res := e.ReconcileBatch(context.Background(), []models.TransactionRecord{
		{RowNumber: 3, Contractor: "홍길동", Warnings: []string{"parse deposited amount"}},
	})
	assert.Len(t, res.Applied, 1)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, 3, res.Warnings[0].RowNumber)
}

type failingSave struct {
	*memory.Store
}

func (failingSave) SaveWithDeposit(context.Context, *models.Buyer, *models.TransactionRecord) error {
	return errors.New("db down")
}

func TestReconcileIsolatesRecordFailures(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, buyerWithSchedule(1, "홍길동")))
	e := NewEngine(failingSave{store}, store, ledger.NewAggregator(nil), 1, nil)

	res := e.ReconcileBatch(ctx, []models.TransactionRecord{
		{RowNumber: 1, Contractor: "홍길동", DepositAmount: 100},
		{RowNumber: 2, Contractor: "홍길동", DepositAmount: 100},
	})
	assert.Empty(t, res.Applied)
	assert.Equal(t, 2, res.Skipped)
	require.Len(t, res.Warnings, 2)
	assert.Contains(t, res.Warnings[0].Message, "save buyer 1: db down")

	b, err := store.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), b.Phase(1).Charged)
	assert.Equal(t, int64(1_000), b.Phase(1).Sum)

	deps, _ := store.List(ctx)
	require.Len(t, deps, 2)
	for _, d := range deps {
		assert.Nil(t, d.BuyerID)
		assert.True(t, d.Unlinked)
	}
}

type failingDeposits struct{}

func (failingDeposits) Insert(context.Context, *models.TransactionRecord) error {
	return errors.New("db down")
}

func (failingDeposits) List(context.Context) ([]models.TransactionRecord, error) { return nil, nil }

func TestReconcileUnlinkedRecordSurvivesHistoryFailure(t *testing.T) {
	e := NewEngine(memory.NewStore(), failingDeposits{}, ledger.NewAggregator(nil), 1, nil)

	res := e.ReconcileBatch(context.Background(), []models.TransactionRecord{
		{RowNumber: 1, Contractor: "없는사람", DepositAmount: 100},
	})
	assert.Empty(t, res.Applied)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Warnings, 2)
	assert.Contains(t, res.Warnings[1].Message, "store deposit record")
}

func TestReconcileLeavesBlankContractorUnlinked(t *testing.T) {
	e, store := newEngine(t, buyerWithSchedule(1, "기본"))
	ctx := context.Background()

	res := e.ReconcileBatch(ctx, []models.TransactionRecord{{RowNumber: 7, Contractor: "  ", DepositAmount: 700}})
	assert.Empty(t, res.Applied)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, 7, res.Warnings[0].RowNumber)
	assert.Contains(t, res.Warnings[0].Message, ErrBlankContractor.Error())

	b, _ := store.FindByID(ctx, 1)
	assert.Equal(t, int64(0), b.Phase(1).Charged)

	deps, _ := store.List(ctx)
	require.Len(t, deps, 1)
	assert.True(t, deps[0].Unlinked)
	assert.Nil(t, deps[0].BuyerID)
	assert.Equal(t, int64(700), deps[0].DepositAmount)
}

func TestReconcileProgressStride(t *testing.T) {
	e, _ := newEngine(t, buyerWithSchedule(1, "홍길동"))
	n := &recordingNotifier{err: errors.New("listener gone")}
	e.Progress = n

	recs := make([]models.TransactionRecord, 25)
	for i := range recs {
		recs[i] = models.TransactionRecord{RowNumber: i + 1, Contractor: "홍길동"}
	}
	res := e.ReconcileBatch(context.Background(), recs)
	assert.Len(t, res.Applied, 25)

	require.Len(t, n.events, 3)
	assert.Equal(t, 10, n.events[0].Current)
	assert.Equal(t, 20, n.events[1].Current)
	assert.Equal(t, 25, n.events[2].Current)
	assert.Equal(t, 25, n.events[2].Total)
}

func TestReconcileProgressUsesBatchWindow(t *testing.T) {
	e, _ := newEngine(t, buyerWithSchedule(1, "홍길동"))
	n := &recordingNotifier{}
	e.Progress = n

	ctx := context.WithValue(context.Background(), ports.CtxBatchWindow, ports.BatchWindow{Offset: 8, Total: 12})
	ctx = context.WithValue(ctx, ports.CtxImportRecordID, "imp-1")
	recs := make([]models.TransactionRecord, 4)
	e.ReconcileBatch(ctx, recs)

	require.Len(t, n.events, 2)
	assert.Equal(t, models.ProgressEvent{ImportRecordID: "imp-1", Stage: models.StageProgress, Current: 10, Total: 12}, n.events[0])
	assert.Equal(t, 12, n.events[1].Current)
}

func TestDeriveLoanFlags(t *testing.T) {
	rec := models.TransactionRecord{}
	rec.PhaseFlags[0] = true
	rec.PhaseFlags[9] = true
	DeriveLoanFlags(&rec)
	assert.Equal(t, models.LoanStatusNone, rec.LoanStatus)
	assert.Empty(t, rec.TargetPhases)

	rec.SelfRecord = "자납"
	DeriveLoanFlags(&rec)
	assert.Equal(t, models.LoanStatusActive, rec.LoanStatus)
	assert.Equal(t, []int{1, 10}, rec.TargetPhases)
}
