package ledger

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"lotting_ledger/internal/models"
	"lotting_ledger/internal/ports"
)

// LateFees reports arrears for the buyers selected by name and number:
// both given means exact name and exact id, name alone is a substring match,
// number alone is an exact id. Buyers without a schedule are left out.
func (s *Service) LateFees(ctx context.Context, name, number string, ref time.Time) ([]ArrearsReport, error) {
	buyers, err := s.lateFeeCandidates(ctx, strings.TrimSpace(name), strings.TrimSpace(number))
	if err != nil {
		return nil, err
	}

	out := make([]ArrearsReport, 0, len(buyers))
	for i := range buyers {
		r := s.Arrears.Compute(&buyers[i], ref)
		if r.Skipped {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Service) lateFeeCandidates(ctx context.Context, name, number string) ([]models.Buyer, error) {
	var id *int
	if number != "" {
		n, err := strconv.Atoi(number)
		if err != nil {
			return []models.Buyer{}, nil
		}
		id = &n
	}

	switch {
	case name != "" && id != nil:
		return s.Buyers.Search(ctx, ports.BuyerFilter{Name: name, ID: id})
	case name != "":
		return s.Buyers.Search(ctx, ports.BuyerFilter{NameContains: name})
	case id != nil:
		b, err := s.Buyers.FindByID(ctx, *id)
		if errors.Is(err, ports.ErrNotFound) {
			return []models.Buyer{}, nil
		}
		if err != nil {
			return nil, err
		}
		return []models.Buyer{*b}, nil
	default:
		return s.Buyers.Search(ctx, ports.BuyerFilter{})
	}
}

type Stats struct {
	Cancelled        int64 `json:"cancelled"`
	NotOverdue       int64 `json:"not_overdue"`
	Total            int64 `json:"total"`
	OverdueBuyers    int64 `json:"overdue"`
	OutstandingTotal int64 `json:"outstanding_total"`
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	cancelled, err := s.Buyers.CountByStatus(ctx, models.BuyerCancelled)
	if err != nil {
		return st, err
	}
	st.Cancelled = cancelled

	buyers, err := s.Buyers.Search(ctx, ports.BuyerFilter{})
	if err != nil {
		return st, err
	}
	today := s.Now()
	for _, b := range buyers {
		st.Total++
		overdue := false
		for _, p := range b.Phases {
			st.OutstandingTotal += p.Sum
			if p.OverdueAt(today) {
				overdue = true
			}
		}
		if overdue {
			st.OverdueBuyers++
		} else {
			st.NotOverdue++
		}
	}
	return st, nil
}

type DepositSummary struct {
	MemberNumber        int                           `json:"memberNumber"`
	LastTransactionTime *time.Time                    `json:"lastTransactionDateTime"`
	Contractor          string                        `json:"contractor"`
	DepositAmount       int64                         `json:"depositAmount"`
	BankBranch          string                        `json:"bankBranch"`
	PhaseMarks          [models.PhaseFlagCount]string `json:"depositPhases"`
}

// DepositSummaries lists, per buyer, the total charged so far and an "o"/"x"
// mark for phases 1..10 ("" when the buyer has no such phase).
func (s *Service) DepositSummaries(ctx context.Context) ([]DepositSummary, error) {
	buyers, err := s.Buyers.Search(ctx, ports.BuyerFilter{})
	if err != nil {
		return nil, err
	}
	out := make([]DepositSummary, 0, len(buyers))
	for i := range buyers {
		out = append(out, summarizeDeposits(&buyers[i]))
	}
	return out, nil
}

func summarizeDeposits(b *models.Buyer) DepositSummary {
	ds := DepositSummary{
		MemberNumber: b.ID,
		Contractor:   b.Name,
		BankBranch:   b.BankName,
	}
	for _, p := range b.Phases {
		ds.DepositAmount += p.Charged
		if p.PaidInFullDate != nil && (ds.LastTransactionTime == nil || p.PaidInFullDate.After(*ds.LastTransactionTime)) {
			d := *p.PaidInFullDate
			ds.LastTransactionTime = &d
		}
	}
	for n := 1; n <= models.PhaseFlagCount; n++ {
		p := b.Phase(n)
		switch {
		case p == nil:
			ds.PhaseMarks[n-1] = ""
		case p.Charged > 0:
			ds.PhaseMarks[n-1] = "o"
		default:
			ds.PhaseMarks[n-1] = "x"
		}
	}
	return ds
}
