package handlers

import (
	"errors"
	"net/http"
	"strings"

	"lotting_ledger/internal/models"
	"lotting_ledger/internal/services/ledger"

	"go.uber.org/zap"
)

type createBuyerRequest struct {
	ID           int    `json:"id"`
	ContractType string `json:"contract_type"`
	GroupName    string `json:"group_name"`
	Batch        string `json:"batch"`
	Name         string `json:"name"`
	BankName     string `json:"bank_name"`
	RegisterDate string `json:"register_date"`
}

type createBuyerResponse struct {
	Buyer    buyerDTO `json:"buyer"`
	Warnings []string `json:"warnings,omitempty"`
}

func (h *Handlers) CreateBuyer(w http.ResponseWriter, r *http.Request) {
	var req createBuyerRequest
	if err := decode(w, r, &req); err != nil {
		h.Error(w, r, err)
		return
	}
	reg, err := parseDate("register_date", req.RegisterDate)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	if reg == nil {
		h.Error(w, r, errors.Join(errBadRequest, errors.New("register_date is required")))
		return
	}

	b, warnings, err := h.Ledger.Create(r.Context(), &models.Buyer{
		ID:           req.ID,
		ContractType: strings.TrimSpace(req.ContractType),
		GroupName:    strings.TrimSpace(req.GroupName),
		Batch:        strings.TrimSpace(req.Batch),
		Name:         strings.TrimSpace(req.Name),
		BankName:     strings.TrimSpace(req.BankName),
		RegisterDate: *reg,
	})
	if err != nil {
		h.Error(w, r, err)
		return
	}

	resp := createBuyerResponse{Buyer: toBuyerDTO(b)}
	for _, wErr := range warnings {
		resp.Warnings = append(resp.Warnings, wErr.Error())
	}
	if len(resp.Warnings) > 0 {
		h.Logger.Warn("[BUYER][WARN] schedule built with warnings", zap.Int("buyer_id", b.ID), zap.Strings("warnings", resp.Warnings))
	}
	h.JSON(w, http.StatusCreated, resp)
}

func (h *Handlers) NextBuyerID(w http.ResponseWriter, r *http.Request) {
	id, err := h.Ledger.NextID(r.Context())
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]int{"id": id})
}

// SearchBuyers matches ?name= as a substring of the buyer name and ?number=
// as a substring of the id.
func (h *Handlers) SearchBuyers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	buyers, err := h.Ledger.Search(r.Context(), q.Get("name"), q.Get("number"))
	if err != nil {
		h.Error(w, r, err)
		return
	}
	out := make([]buyerDTO, 0, len(buyers))
	for i := range buyers {
		out = append(out, toBuyerDTO(&buyers[i]))
	}
	h.JSON(w, http.StatusOK, out)
}

func (h *Handlers) GetBuyer(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		h.Error(w, r, err)
		return
	}
	b, err := h.Ledger.Get(r.Context(), id)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.JSON(w, http.StatusOK, toBuyerDTO(b))
}

func (h *Handlers) DeleteBuyer(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		h.Error(w, r, err)
		return
	}
	if err := h.Ledger.Delete(r.Context(), id); err != nil {
		h.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) CancelBuyer(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		h.Error(w, r, err)
		return
	}
	ok, err := h.Ledger.Cancel(r.Context(), id)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	code := http.StatusOK
	if !ok {
		code = http.StatusNotFound
	}
	h.JSON(w, code, map[string]bool{"cancelled": ok})
}

// BuyerPhases lists phases filtered by ?state=pending|completed; any other
// value returns the full schedule.
func (h *Handlers) BuyerPhases(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		h.Error(w, r, err)
		return
	}

	var phases []models.Phase
	switch r.URL.Query().Get("state") {
	case "pending":
		phases, err = h.Ledger.PendingPhases(r.Context(), id)
	case "completed":
		phases, err = h.Ledger.CompletedPhases(r.Context(), id)
	default:
		var b *models.Buyer
		if b, err = h.Ledger.Get(r.Context(), id); err == nil {
			phases = b.Phases
		}
	}
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.JSON(w, http.StatusOK, toPhaseDTOs(phases))
}

type editPhaseRequest struct {
	Charge         *int64  `json:"charge"`
	Discount       *int64  `json:"discount"`
	Exemption      *int64  `json:"exemption"`
	Service        *int64  `json:"service"`
	Sum            *int64  `json:"sum"`
	ScheduledDate  *string `json:"scheduled_date"`
	PaidInFullDate *string `json:"paid_in_full_date"`
	ClearPaidDate  bool    `json:"clear_paid_date"`
}

func (h *Handlers) EditPhase(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		h.Error(w, r, err)
		return
	}
	number, err := pathInt(r, "number")
	if err != nil {
		h.Error(w, r, err)
		return
	}
	var req editPhaseRequest
	if err := decode(w, r, &req); err != nil {
		h.Error(w, r, err)
		return
	}

	edit := ledger.PhaseEdit{
		Charge:        req.Charge,
		Discount:      req.Discount,
		Exemption:     req.Exemption,
		Service:       req.Service,
		Sum:           req.Sum,
		ClearPaidDate: req.ClearPaidDate,
	}
	if req.ScheduledDate != nil {
		if edit.ScheduledDate, err = parseDate("scheduled_date", *req.ScheduledDate); err != nil {
			h.Error(w, r, err)
			return
		}
	}
	if req.PaidInFullDate != nil {
		if edit.PaidInFullDate, err = parseDate("paid_in_full_date", *req.PaidInFullDate); err != nil {
			h.Error(w, r, err)
			return
		}
	}

	b, err := h.Ledger.EditPhase(r.Context(), id, number, edit)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.JSON(w, http.StatusOK, toBuyerDTO(b))
}

func (h *Handlers) BuyerStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.Ledger.Stats(r.Context())
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.JSON(w, http.StatusOK, st)
}
