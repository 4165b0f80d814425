package ledger

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"lotting_ledger/internal/models"
)

// Aggregator recomputes a buyer's StatusSummary from its schedule.
type Aggregator struct {
	Now func() time.Time
}

func NewAggregator(now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}
	return &Aggregator{Now: now}
}

// GetOrCreateSummary returns the buyer's summary, attaching a fresh one if absent.
func GetOrCreateSummary(b *models.Buyer) *models.StatusSummary {
	if b.Summary == nil {
		b.Summary = &models.StatusSummary{BuyerID: b.ID}
	}
	return b.Summary
}

// Recompute overwrites every summary field from the current phase list.
func (a *Aggregator) Recompute(b *models.Buyer) *models.StatusSummary {
	s := GetOrCreateSummary(b)
	today := a.Now()

	var exemptions, unpaid, amount int64
	overdue := make([]int, 0)
	for _, p := range b.Phases {
		exemptions += p.Exemption
		unpaid += p.Sum
		amount += p.FeeSum
		if p.OverdueAt(today) {
			overdue = append(overdue, p.PhaseNumber)
		}
	}
	sort.Ints(overdue)

	s.BuyerID = b.ID
	s.ExemptionSum = exemptions
	s.UnpaidAmount = unpaid
	s.UnpaidPhases = joinInts(overdue)
	s.AmountSum = amount
	return s
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ",")
}
