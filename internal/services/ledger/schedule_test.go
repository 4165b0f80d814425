package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotting_ledger/internal/models"
)

func TestBuildSchedule(t *testing.T) {
	agg := NewAggregator(fixedClock(date(2024, time.August, 1)))
	sb := NewScheduleBuilder(OffsetResolver{}, agg, nil)

	b := &models.Buyer{ID: 1, RegisterDate: date(2024, time.January, 1)}
	plan := &models.FeePlan{
		GroupKey: "1A", Batch: "1",
		Phases: []models.FeePhaseDefinition{
			{PhaseNumber: 1, Fee: 1_000_000, Offset: ""},
			{PhaseNumber: 2, Fee: 500_000, Offset: "6개월"},
		},
	}

	got, warnings := sb.Build(b, plan)
	require.Empty(t, warnings)
	require.Len(t, got.Phases, 2)

	p1, p2 := got.Phases[0], got.Phases[1]
	assert.Equal(t, date(2024, time.January, 1), *p1.ScheduledDate)
	assert.Equal(t, date(2024, time.July, 1), *p2.ScheduledDate)
	assert.Equal(t, int64(500_000), p2.FeeSum)
	assert.Equal(t, int64(500_000), p2.Sum)
	assert.Equal(t, int64(0), p2.Charged)
	assert.Equal(t, "6개월", p2.ScheduledDateText)
	assert.Equal(t, 1, p2.BuyerID)
	assert.Nil(t, p2.PaidInFullDate)

	require.NotNil(t, got.Summary)
	assert.Equal(t, int64(1_500_000), got.Summary.UnpaidAmount)
	assert.Equal(t, int64(1_500_000), got.Summary.AmountSum)
	assert.Equal(t, "1,2", got.Summary.UnpaidPhases)
}

func TestBuildScheduleWithoutPlan(t *testing.T) {
	sb := NewScheduleBuilder(OffsetResolver{}, NewAggregator(nil), nil)
	b := &models.Buyer{ID: 3, RegisterDate: date(2024, time.January, 1)}

	got, warnings := sb.Build(b, nil)
	assert.Empty(t, warnings)
	assert.Empty(t, got.Phases)
	require.NotNil(t, got.Summary)
	assert.Equal(t, "", got.Summary.UnpaidPhases)
}

func TestBuildScheduleKeepsUnparseablePhaseUndated(t *testing.T) {
	sb := NewScheduleBuilder(OffsetResolver{}, NewAggregator(fixedClock(date(2030, time.January, 1))), nil)
	b := &models.Buyer{ID: 4, RegisterDate: date(2024, time.January, 1)}
	plan := &models.FeePlan{Phases: []models.FeePhaseDefinition{
		{PhaseNumber: 1, Fee: 100, Offset: "잔금"},
		{PhaseNumber: 2, Fee: 200, Offset: "개월"},
		{PhaseNumber: 3, Fee: 300, Offset: "1년"},
	}}

	got, warnings := sb.Build(b, plan)
	assert.Len(t, warnings, 2)
	require.Len(t, got.Phases, 3)
	assert.Nil(t, got.Phases[0].ScheduledDate)
	assert.Nil(t, got.Phases[1].ScheduledDate)
	assert.Equal(t, "잔금", got.Phases[0].ScheduledDateText)
	assert.Equal(t, "3", got.Summary.UnpaidPhases)
}

func TestBuildScheduleDropsDuplicatePhase(t *testing.T) {
	sb := NewScheduleBuilder(OffsetResolver{}, NewAggregator(nil), nil)
	b := &models.Buyer{ID: 5, RegisterDate: date(2024, time.January, 1)}
	plan := &models.FeePlan{Phases: []models.FeePhaseDefinition{
		{PhaseNumber: 1, Fee: 100},
		{PhaseNumber: 1, Fee: 999},
	}}

	got, warnings := sb.Build(b, plan)
	assert.Len(t, warnings, 1)
	require.Len(t, got.Phases, 1)
	assert.Equal(t, int64(100), got.Phases[0].Charge)
}

func TestBuildScheduleLegacyFarFuture(t *testing.T) {
	sb := NewScheduleBuilder(OffsetResolver{LegacyFarFuture: true}, NewAggregator(nil), nil)
	b := &models.Buyer{ID: 6, RegisterDate: date(2024, time.January, 1)}
	plan := &models.FeePlan{Phases: []models.FeePhaseDefinition{{PhaseNumber: 1, Fee: 100, Offset: "잔금"}}}

	got, warnings := sb.Build(b, plan)
	assert.Empty(t, warnings)
	assert.Equal(t, date(2124, time.January, 1), *got.Phases[0].ScheduledDate)
}
