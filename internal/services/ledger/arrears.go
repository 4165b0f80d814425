package ledger

import (
	"math"
	"time"

	"lotting_ledger/internal/models"
)

// DailyLateRate is the late-fee rate per overdue day (0.05%).
const DailyLateRate = 0.0005

type ArrearsReport struct {
	BuyerID      int                `json:"id"`
	Status       models.BuyerStatus `json:"customertype"`
	Name         string             `json:"name"`
	RegisterDate *time.Time         `json:"registerdate,omitempty"`

	// Skipped is set for buyers without any schedule.
	Skipped bool `json:"-"`

	LastOverduePhase  *int       `json:"lastUnpaidPhaseNumber"`
	BaseDate          *time.Time `json:"lateBaseDate"`
	RecentPaymentDate *time.Time `json:"recentPaymentDate"`
	DaysOverdue       int64      `json:"daysOverdue"`
	Rate              float64    `json:"lateRate"`
	OverdueAmount     int64      `json:"overdueAmount"`
	PaidAmount        int64      `json:"paidAmount"`
	LateFee           float64    `json:"lateFee"`
	TotalOwed         int64      `json:"totalOwed"`
}

type ArrearsCalculator struct {
	Now func() time.Time
}

func NewArrearsCalculator(now func() time.Time) *ArrearsCalculator {
	if now == nil {
		now = time.Now
	}
	return &ArrearsCalculator{Now: now}
}

// Compute derives late-fee exposure as of ref (today when ref is zero).
// It reads the schedule only; the stored summary is left untouched.
func (c *ArrearsCalculator) Compute(b *models.Buyer, ref time.Time) ArrearsReport {
	if ref.IsZero() {
		ref = c.Now()
	}
	ref = models.DateOf(ref)

	r := ArrearsReport{
		BuyerID: b.ID,
		Status:  b.Status,
		Name:    b.Name,
	}
	if !b.RegisterDate.IsZero() {
		rd := b.RegisterDate
		r.RegisterDate = &rd
	}
	if len(b.Phases) == 0 {
		r.Skipped = true
		return r
	}

	var paid int64
	overdue := make([]models.Phase, 0)
	for _, p := range b.Phases {
		paid += p.Charged
		if p.OverdueAt(ref) {
			overdue = append(overdue, p)
		}
	}
	r.PaidAmount = paid
	if len(overdue) == 0 {
		return r
	}

	last := overdue[0].PhaseNumber
	base := models.DateOf(*overdue[0].ScheduledDate)
	var amount int64
	for _, p := range overdue {
		if p.PhaseNumber > last {
			last = p.PhaseNumber
		}
		if d := models.DateOf(*p.ScheduledDate); d.Before(base) {
			base = d
		}
		amount += p.FeeSum
	}

	var recent *time.Time
	for _, p := range b.Phases {
		if p.PaidInFullDate == nil {
			continue
		}
		if recent == nil || p.PaidInFullDate.After(*recent) {
			d := *p.PaidInFullDate
			recent = &d
		}
	}

	days := int64(ref.Sub(base).Hours() / 24)
	if days < 0 {
		days = 0
	}

	r.LastOverduePhase = &last
	r.BaseDate = &base
	r.RecentPaymentDate = recent
	r.DaysOverdue = days
	r.Rate = DailyLateRate
	r.OverdueAmount = amount
	r.LateFee = float64(amount) * DailyLateRate * float64(days)
	r.TotalOwed = amount + int64(math.Round(r.LateFee))
	return r
}
