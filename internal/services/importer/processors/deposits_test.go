package processors

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotting_ledger/internal/models"
	"lotting_ledger/internal/ports"
	"lotting_ledger/internal/repository/memory"
	"lotting_ledger/internal/services/ledger"
	"lotting_ledger/internal/services/reconcile"
)

func depositRow(n int, cells map[int]string) ports.Row {
	row := ports.Row{Number: n, Cells: make([]string, 23)}
	for i, v := range cells {
		row.Cells[i] = v
	}
	return row
}

func TestParseDepositRow(t *testing.T) {
	rec := ParseDepositRow(depositRow(3, map[int]string{
		0:  "TX-0042",
		1:  "2024.03.05\n14:20:00",
		2:  "타행이체",
		4:  "  홍길동 ",
		5:  "",
		6:  "1,500,000",
		7:  "2,000,000원",
		8:  "강남",
		9:  "123-45",
		12: "o",
		20: "v",
		22: "대출",
	}))

	assert.Equal(t, 3, rec.RowNumber)
	assert.Equal(t, int64(42), rec.ID)
	require.NotNil(t, rec.TransactionTime)
	assert.Equal(t, time.Date(2024, time.March, 5, 14, 20, 0, 0, time.Local), *rec.TransactionTime)
	assert.Equal(t, "타행이체", rec.Description)
	assert.Equal(t, "홍길동", rec.Contractor)
	assert.Equal(t, int64(0), rec.WithdrawnAmount)
	assert.Equal(t, int64(1_500_000), rec.DepositAmount)
	assert.Equal(t, int64(2_000_000), rec.BalanceAfter)
	assert.Equal(t, "강남", rec.Branch)
	assert.Equal(t, "123-45", rec.Account)
	assert.True(t, rec.PhaseFlags[1])
	assert.True(t, rec.PhaseFlags[9])
	assert.False(t, rec.PhaseFlags[0])
	assert.Empty(t, rec.SelfRecord)
	assert.Equal(t, "대출", rec.LoanRecord)
	assert.Empty(t, rec.Warnings)
}

func TestParseDepositRowWarnsPerField(t *testing.T) {
	rec := ParseDepositRow(ports.Row{Number: 9, Cells: []string{"", "05/03/2024", "", "", "김", "", "없음"}})

	assert.Nil(t, rec.TransactionTime)
	assert.Equal(t, int64(0), rec.DepositAmount)
	assert.Equal(t, "김", rec.Contractor)
	require.Len(t, rec.Warnings, 2)
	assert.Contains(t, rec.Warnings[0], "transaction time")
	assert.Contains(t, rec.Warnings[1], "deposit amount")
}

func TestParseDepositRowAcceptsDashedLayout(t *testing.T) {
	rec := ParseDepositRow(ports.Row{Number: 1, Cells: []string{"", "2024-03-05 09:00:01"}})
	require.NotNil(t, rec.TransactionTime)
	assert.Equal(t, 9, rec.TransactionTime.Hour())
}

func TestDepositsProcessorReconcilesBatch(t *testing.T) {
	store := memory.NewStore()
	day := func(m time.Month, d int) *time.Time {
		t := time.Date(2024, m, d, 0, 0, 0, 0, time.UTC)
		return &t
	}
	require.NoError(t, store.Create(context.Background(), &models.Buyer{
		ID: 1, Name: "홍길동", Status: models.BuyerActive,
		Phases: []models.Phase{
			{BuyerID: 1, PhaseNumber: 1, FeeSum: 1000, Sum: 1000, ScheduledDate: day(time.January, 1)},
		},
	}))
	engine := reconcile.NewEngine(store, store, ledger.NewAggregator(nil), 1, nil)
	proc := NewDepositsProcessor(NewBaseProcessor(nil, nil), engine)
	assert.Equal(t, "deposits", proc.Type())

	tally := &ports.Tally{}
	ctx := context.WithValue(context.Background(), ports.CtxTally, tally)
	err := proc.ProcessBatch(ctx, []ports.Row{
		depositRow(1, map[int]string{1: "2024.02.01 10:00:00", 4: "홍길동", 6: "600"}),
		depositRow(2, map[int]string{1: "bad", 4: "모르는사람", 6: "400"}),
	})
	require.NoError(t, err)

	applied, skipped, warnings := tally.Totals()
	assert.Equal(t, 2, applied)
	assert.Equal(t, 0, skipped)
	assert.Equal(t, 1, warnings)

	b, err := store.FindByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), b.Phase(1).Sum)
	assert.Equal(t, int64(1000), b.Phase(1).Charged)

	deps, _ := store.List(context.Background())
	assert.Len(t, deps, 2)
}

func TestDepositsProcessorNeedsEngine(t *testing.T) {
	err := (&DepositsProcessor{BaseProcessor: NewBaseProcessor(nil, nil)}).ProcessBatch(context.Background(), nil)
	assert.Error(t, err)
}

func TestRegister(t *testing.T) {
	reg := Register(DefaultRegistry(), &DepositsProcessor{})
	assert.Contains(t, reg, "noop")
	assert.Contains(t, reg, "deposits")
}
