package models

import "time"

type BuyerStatus string

const (
	BuyerActive    BuyerStatus = "active"
	BuyerCancelled BuyerStatus = "cancelled"
)

type Buyer struct {
	ID           int
	ContractType string
	GroupName    string
	Batch        string
	Name         string
	BankName     string
	RegisterDate time.Time
	Status       BuyerStatus

	Phases  []Phase
	Summary *StatusSummary
}

// GroupKey is the fee plan lookup key: contract type immediately followed by group name.
func (b *Buyer) GroupKey() string {
	return b.ContractType + b.GroupName
}

// Phase returns a pointer into the buyer's own schedule, or nil.
func (b *Buyer) Phase(number int) *Phase {
	for i := range b.Phases {
		if b.Phases[i].PhaseNumber == number {
			return &b.Phases[i]
		}
	}
	return nil
}

type Phase struct {
	BuyerID     int
	PhaseNumber int

	Charge    int64
	Discount  int64
	Exemption int64
	Service   int64
	FeeSum    int64
	Sum       int64
	Charged   int64

	ScheduledDate     *time.Time
	ScheduledDateText string
	PaidInFullDate    *time.Time
}

func (p *Phase) DeriveFeeSum() {
	p.FeeSum = p.Charge - p.Discount - p.Exemption + p.Service
}

func (p Phase) Pending() bool   { return p.Sum > 0 }
func (p Phase) Completed() bool { return p.Sum == 0 }

// OverdueAt reports whether the phase was due strictly before ref and is still not paid in full.
func (p Phase) OverdueAt(ref time.Time) bool {
	if p.ScheduledDate == nil || p.PaidInFullDate != nil {
		return false
	}
	return DateOf(*p.ScheduledDate).Before(DateOf(ref))
}

type StatusSummary struct {
	BuyerID      int
	ExemptionSum int64
	UnpaidAmount int64
	UnpaidPhases string
	AmountSum    int64
}

// DateOf truncates t to its calendar date at UTC midnight.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
