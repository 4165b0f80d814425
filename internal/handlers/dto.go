package handlers

import (
	"time"

	"lotting_ledger/internal/models"
)

type phaseDTO struct {
	PhaseNumber       int     `json:"phase_number"`
	Charge            int64   `json:"charge"`
	Discount          int64   `json:"discount"`
	Exemption         int64   `json:"exemption"`
	Service           int64   `json:"service"`
	FeeSum            int64   `json:"fee_sum"`
	Sum               int64   `json:"sum"`
	Charged           int64   `json:"charged"`
	ScheduledDate     *string `json:"scheduled_date"`
	ScheduledDateText string  `json:"scheduled_date_text,omitempty"`
	PaidInFullDate    *string `json:"paid_in_full_date"`
}

type summaryDTO struct {
	ExemptionSum int64  `json:"exemption_sum"`
	UnpaidAmount int64  `json:"unpaid_amount"`
	UnpaidPhases string `json:"unpaid_phases"`
	AmountSum    int64  `json:"amount_sum"`
}

type buyerDTO struct {
	ID           int         `json:"id"`
	ContractType string      `json:"contract_type"`
	GroupName    string      `json:"group_name"`
	Batch        string      `json:"batch"`
	Name         string      `json:"name"`
	BankName     string      `json:"bank_name"`
	RegisterDate string      `json:"register_date"`
	Status       string      `json:"status"`
	Phases       []phaseDTO  `json:"phases"`
	Summary      *summaryDTO `json:"summary,omitempty"`
}

func dateString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

func toPhaseDTOs(ps []models.Phase) []phaseDTO {
	out := make([]phaseDTO, 0, len(ps))
	for _, p := range ps {
		out = append(out, phaseDTO{
			PhaseNumber:       p.PhaseNumber,
			Charge:            p.Charge,
			Discount:          p.Discount,
			Exemption:         p.Exemption,
			Service:           p.Service,
			FeeSum:            p.FeeSum,
			Sum:               p.Sum,
			Charged:           p.Charged,
			ScheduledDate:     dateString(p.ScheduledDate),
			ScheduledDateText: p.ScheduledDateText,
			PaidInFullDate:    dateString(p.PaidInFullDate),
		})
	}
	return out
}

func toBuyerDTO(b *models.Buyer) buyerDTO {
	dto := buyerDTO{
		ID:           b.ID,
		ContractType: b.ContractType,
		GroupName:    b.GroupName,
		Batch:        b.Batch,
		Name:         b.Name,
		BankName:     b.BankName,
		Status:       string(b.Status),
		Phases:       toPhaseDTOs(b.Phases),
	}
	if !b.RegisterDate.IsZero() {
		dto.RegisterDate = b.RegisterDate.Format(dateLayout)
	}
	if s := b.Summary; s != nil {
		dto.Summary = &summaryDTO{
			ExemptionSum: s.ExemptionSum,
			UnpaidAmount: s.UnpaidAmount,
			UnpaidPhases: s.UnpaidPhases,
			AmountSum:    s.AmountSum,
		}
	}
	return dto
}
