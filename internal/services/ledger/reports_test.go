package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotting_ledger/internal/models"
)

func seedReports(t *testing.T) *Service {
	t.Helper()
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, b := range []*models.Buyer{newBuyer(1, "홍길동"), newBuyer(2, "홍길순"), newBuyer(3, "김철수")} {
		_, _, err := svc.Create(ctx, b)
		require.NoError(t, err)
	}
	noPlan := newBuyer(4, "홍무계획")
	noPlan.GroupName = "Z"
	_, _, err := svc.Create(ctx, noPlan)
	require.NoError(t, err)

	// buyer 3 paid everything
	for _, n := range []int{1, 2} {
		_, err := svc.EditPhase(ctx, 3, n, PhaseEdit{Sum: ptr(int64(0)), PaidInFullDate: ptr(date(2024, time.January, 10))})
		require.NoError(t, err)
	}
	_, err = svc.Cancel(ctx, 2)
	require.NoError(t, err)
	return svc
}

func TestLateFeesFilters(t *testing.T) {
	svc := seedReports(t)
	ctx := context.Background()
	ref := date(2024, time.August, 1)

	all, err := svc.LateFees(ctx, "", "", ref)
	require.NoError(t, err)
	assert.Len(t, all, 3, "buyer without schedule is skipped")

	byName, err := svc.LateFees(ctx, "홍", "", ref)
	require.NoError(t, err)
	assert.Len(t, byName, 2)

	exact, err := svc.LateFees(ctx, "홍길동", "1", ref)
	require.NoError(t, err)
	require.Len(t, exact, 1)
	assert.Equal(t, int64(1_500_000), exact[0].OverdueAmount)

	mismatch, err := svc.LateFees(ctx, "홍길동", "2", ref)
	require.NoError(t, err)
	assert.Empty(t, mismatch)

	byID, err := svc.LateFees(ctx, "", "3", ref)
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Zero(t, byID[0].TotalOwed)

	bad, err := svc.LateFees(ctx, "", "x1", ref)
	require.NoError(t, err)
	assert.Empty(t, bad)

	missing, err := svc.LateFees(ctx, "", "404", ref)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestStats(t *testing.T) {
	svc := seedReports(t)
	st, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Cancelled)
	assert.Equal(t, int64(4), st.Total)
	assert.Equal(t, int64(2), st.OverdueBuyers)
	assert.Equal(t, int64(2), st.NotOverdue)
	assert.Equal(t, int64(3_000_000), st.OutstandingTotal)
}

func TestDepositSummaries(t *testing.T) {
	b := &models.Buyer{ID: 8, Name: "홍길동", BankName: "농협", Phases: []models.Phase{
		{PhaseNumber: 1, Charged: 100, PaidInFullDate: ptr(date(2024, time.March, 1))},
		{PhaseNumber: 2, Charged: 0},
		{PhaseNumber: 3, Charged: 50, PaidInFullDate: ptr(date(2024, time.May, 1))},
	}}
	ds := summarizeDeposits(b)
	assert.Equal(t, 8, ds.MemberNumber)
	assert.Equal(t, int64(150), ds.DepositAmount)
	assert.Equal(t, "농협", ds.BankBranch)
	require.NotNil(t, ds.LastTransactionTime)
	assert.Equal(t, date(2024, time.May, 1), *ds.LastTransactionTime)
	assert.Equal(t, "o", ds.PhaseMarks[0])
	assert.Equal(t, "x", ds.PhaseMarks[1])
	assert.Equal(t, "o", ds.PhaseMarks[2])
	assert.Equal(t, "", ds.PhaseMarks[3])

	svc := seedReports(t)
	all, err := svc.DepositSummaries(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 4)
}
