package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotting_ledger/internal/models"
)

func ptr[T any](v T) *T { return &v }

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestGetOrCreateSummary(t *testing.T) {
	b := &models.Buyer{ID: 7}
	s := GetOrCreateSummary(b)
	require.NotNil(t, s)
	assert.Equal(t, 7, s.BuyerID)
	assert.Same(t, s, GetOrCreateSummary(b))
}

func TestRecompute(t *testing.T) {
	agg := NewAggregator(fixedClock(date(2024, time.August, 1)))
	b := &models.Buyer{
		ID: 1,
		Phases: []models.Phase{
			{PhaseNumber: 3, FeeSum: 300, Sum: 300, Exemption: 5, ScheduledDate: ptr(date(2024, time.June, 1))},
			{PhaseNumber: 1, FeeSum: 100, Sum: 0, ScheduledDate: ptr(date(2024, time.January, 1)), PaidInFullDate: ptr(date(2024, time.January, 2))},
			{PhaseNumber: 2, FeeSum: 200, Sum: 150, Exemption: 10, ScheduledDate: ptr(date(2024, time.March, 1))},
			{PhaseNumber: 4, FeeSum: 400, Sum: 400, ScheduledDate: ptr(date(2024, time.August, 1))},
			{PhaseNumber: 5, FeeSum: 500, Sum: 500},
		},
	}

	s := agg.Recompute(b)
	assert.Equal(t, int64(15), s.ExemptionSum)
	assert.Equal(t, int64(1350), s.UnpaidAmount)
	assert.Equal(t, "2,3", s.UnpaidPhases)
	assert.Equal(t, int64(1500), s.AmountSum)
}

func TestRecomputeEmptySchedule(t *testing.T) {
	b := &models.Buyer{ID: 2}
	s := NewAggregator(nil).Recompute(b)
	assert.Equal(t, models.StatusSummary{BuyerID: 2}, *s)
}

func TestRecomputeIsIdempotent(t *testing.T) {
	agg := NewAggregator(fixedClock(date(2024, time.August, 1)))
	b := &models.Buyer{
		ID: 1,
		Phases: []models.Phase{
			{PhaseNumber: 2, FeeSum: 200, Sum: 200, ScheduledDate: ptr(date(2024, time.March, 1))},
			{PhaseNumber: 1, FeeSum: 100, Sum: 100, ScheduledDate: ptr(date(2024, time.February, 1))},
		},
	}
	first := *agg.Recompute(b)
	second := *agg.Recompute(b)
	assert.Equal(t, first, second)
	assert.Equal(t, "1,2", second.UnpaidPhases)
}

func TestRecomputeOverwritesStaleSummary(t *testing.T) {
	b := &models.Buyer{
		ID:      1,
		Summary: &models.StatusSummary{BuyerID: 1, UnpaidAmount: 999, UnpaidPhases: "9"},
	}
	s := NewAggregator(fixedClock(date(2024, time.January, 1))).Recompute(b)
	assert.Equal(t, int64(0), s.UnpaidAmount)
	assert.Equal(t, "", s.UnpaidPhases)
}
