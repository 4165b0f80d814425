package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"lotting_ledger/internal/logger"
	"lotting_ledger/internal/metrics"
	"lotting_ledger/internal/models"
	"lotting_ledger/internal/ports"
	"lotting_ledger/internal/utils"
)

var (
	ErrDuplicateBuyer = fmt.Errorf("buyer already exists: %w", ports.ErrDuplicate)
	ErrInvalidBuyer   = errors.New("invalid buyer")
	ErrPhaseNotFound  = errors.New("phase not found")
	ErrInvalidPhase   = errors.New("invalid phase edit")
)

type Service struct {
	Buyers   ports.BuyerRepository
	Fees     ports.FeePlanRepository
	Schedule *ScheduleBuilder
	Status   *Aggregator
	Arrears  *ArrearsCalculator
	Metrics  *metrics.Metrics
	Log      *zap.Logger
	Now      func() time.Time
}

type Options struct {
	LegacyFarFutureOffset bool
	Now                   func() time.Time
	Metrics               *metrics.Metrics
	Log                   *zap.Logger
}

func NewService(buyers ports.BuyerRepository, fees ports.FeePlanRepository, opts Options) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	log := logger.OrNop(opts.Log)
	agg := NewAggregator(now)
	return &Service{
		Buyers:   buyers,
		Fees:     fees,
		Schedule: NewScheduleBuilder(OffsetResolver{LegacyFarFuture: opts.LegacyFarFutureOffset}, agg, log),
		Status:   agg,
		Arrears:  NewArrearsCalculator(now),
		Metrics:  opts.Metrics,
		Log:      log,
		Now:      now,
	}
}

func (s *Service) NextID(ctx context.Context) (int, error) {
	return s.Buyers.NextID(ctx)
}

func (s *Service) Get(ctx context.Context, id int) (*models.Buyer, error) {
	return s.Buyers.FindByID(ctx, id)
}

// Create registers a new buyer, derives its schedule from the matching fee
// plan and stores buyer, phases and summary together. Schedule warnings are
// returned alongside a successfully created buyer.
func (s *Service) Create(ctx context.Context, b *models.Buyer) (*models.Buyer, []error, error) {
	if b == nil || b.ID <= 0 {
		return nil, nil, fmt.Errorf("%w: id is required", ErrInvalidBuyer)
	}
	if b.RegisterDate.IsZero() {
		return nil, nil, fmt.Errorf("%w: register date is required", ErrInvalidBuyer)
	}

	exists, err := s.Buyers.Exists(ctx, b.ID)
	if err != nil {
		return nil, nil, err
	}
	if exists {
		return nil, nil, ErrDuplicateBuyer
	}

	plan, err := s.Fees.FindByKey(ctx, b.GroupKey(), b.Batch)
	if err != nil {
		return nil, nil, fmt.Errorf("fee plan lookup: %w", err)
	}
	if plan == nil {
		s.Log.Info("[BUYER] no fee plan, empty schedule",
			zap.Int("buyer_id", b.ID), zap.String("group", b.GroupKey()), zap.String("batch", b.Batch))
	}

	if b.Status == "" {
		b.Status = models.BuyerActive
	}
	b.Summary = nil
	_, warnings := s.Schedule.Build(b, plan)

	if err := s.Buyers.Create(ctx, b); err != nil {
		if errors.Is(err, ports.ErrDuplicate) {
			return nil, nil, ErrDuplicateBuyer
		}
		return nil, nil, err
	}

	s.Metrics.BuyerCreated()
	s.Log.Info("[BUYER][CREATED]", zap.Int("buyer_id", b.ID), zap.Int("phases", len(b.Phases)), zap.Int("warnings", len(warnings)))
	return b, warnings, nil
}

// Save recomputes the summary and persists the buyer.
func (s *Service) Save(ctx context.Context, b *models.Buyer) error {
	s.Status.Recompute(b)
	return s.Buyers.Save(ctx, b)
}

func (s *Service) Delete(ctx context.Context, id int) error {
	if err := s.Buyers.Delete(ctx, id); err != nil && !errors.Is(err, ports.ErrNotFound) {
		return err
	}
	return nil
}

// Cancel marks the buyer's contract cancelled. It reports false when the buyer does not exist.
func (s *Service) Cancel(ctx context.Context, id int) (bool, error) {
	b, err := s.Buyers.FindByID(ctx, id)
	if errors.Is(err, ports.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	b.Status = models.BuyerCancelled
	if err := s.Buyers.Save(ctx, b); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) PendingPhases(ctx context.Context, id int) ([]models.Phase, error) {
	return s.filterPhases(ctx, id, models.Phase.Pending)
}

func (s *Service) CompletedPhases(ctx context.Context, id int) ([]models.Phase, error) {
	return s.filterPhases(ctx, id, models.Phase.Completed)
}

func (s *Service) filterPhases(ctx context.Context, id int, keep func(models.Phase) bool) ([]models.Phase, error) {
	b, err := s.Buyers.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]models.Phase, 0, len(b.Phases))
	for _, p := range b.Phases {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

type PhaseEdit struct {
	Charge         *int64
	Discount       *int64
	Exemption      *int64
	Service        *int64
	Sum            *int64
	ScheduledDate  *time.Time
	PaidInFullDate *time.Time
	ClearPaidDate  bool
}

// EditPhase applies a manual correction to one phase. When an amount
// component changes and no explicit outstanding sum is given, the outstanding
// sum becomes fee-sum minus what was already charged. A phase left with an
// outstanding sum loses its paid-in-full date unless one is given.
func (s *Service) EditPhase(ctx context.Context, id, number int, e PhaseEdit) (*models.Buyer, error) {
	if e.Sum != nil && *e.Sum < 0 {
		return nil, fmt.Errorf("%w: negative sum %d", ErrInvalidPhase, *e.Sum)
	}
	b, err := s.Buyers.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p := b.Phase(number)
	if p == nil {
		return nil, fmt.Errorf("%w: buyer %d phase %d", ErrPhaseNotFound, id, number)
	}

	amountsChanged := false
	set := func(dst *int64, v *int64) {
		if v != nil {
			*dst = *v
			amountsChanged = true
		}
	}
	set(&p.Charge, e.Charge)
	set(&p.Discount, e.Discount)
	set(&p.Exemption, e.Exemption)
	set(&p.Service, e.Service)
	p.DeriveFeeSum()

	switch {
	case e.Sum != nil:
		p.Sum = *e.Sum
	case amountsChanged:
		p.Sum = max(p.FeeSum-p.Charged, 0)
	}

	if e.ScheduledDate != nil {
		d := models.DateOf(*e.ScheduledDate)
		p.ScheduledDate = &d
	}
	switch {
	case e.ClearPaidDate, p.Sum > 0 && e.PaidInFullDate == nil:
		p.PaidInFullDate = nil
	case e.PaidInFullDate != nil:
		d := models.DateOf(*e.PaidInFullDate)
		p.PaidInFullDate = &d
	case p.Sum == 0 && p.PaidInFullDate == nil:
		d := models.DateOf(s.Now())
		p.PaidInFullDate = &d
	}

	if err := s.Save(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Search finds buyers by name substring and/or id substring. A non-numeric
// number is ignored when a name is given and yields nothing otherwise.
func (s *Service) Search(ctx context.Context, name, number string) ([]models.Buyer, error) {
	name = strings.TrimSpace(name)
	number = strings.TrimSpace(number)
	numeric := utils.IsDigits(number)

	f := ports.BuyerFilter{NameContains: name}
	switch {
	case number == "":
	case numeric:
		f.IDContains = number
	case name == "":
		return []models.Buyer{}, nil
	}
	return s.Buyers.Search(ctx, f)
}

