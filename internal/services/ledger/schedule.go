package ledger

import (
	"fmt"

	"go.uber.org/zap"

	"lotting_ledger/internal/logger"
	"lotting_ledger/internal/models"
)

type ScheduleBuilder struct {
	Resolver   OffsetResolver
	Aggregator *Aggregator
	Log        *zap.Logger
}

func NewScheduleBuilder(res OffsetResolver, agg *Aggregator, log *zap.Logger) *ScheduleBuilder {
	return &ScheduleBuilder{Resolver: res, Aggregator: agg, Log: logger.OrNop(log)}
}

// Build attaches a fresh schedule derived from plan to b and recomputes the
// summary once. A nil plan yields an empty schedule. Phase-level problems
// (bad offsets, duplicate phase numbers) are returned as warnings; the
// affected phase is kept without a due date, or dropped when duplicated.
func (sb *ScheduleBuilder) Build(b *models.Buyer, plan *models.FeePlan) (*models.Buyer, []error) {
	var warnings []error
	phases := make([]models.Phase, 0)

	if plan != nil {
		seen := make(map[int]struct{}, len(plan.Phases))
		for _, def := range plan.Phases {
			if _, dup := seen[def.PhaseNumber]; dup {
				err := fmt.Errorf("fee plan %s/%s: duplicate phase %d dropped", plan.GroupKey, plan.Batch, def.PhaseNumber)
				sb.Log.Warn("[SCHED][WARN] duplicate phase", zap.Int("buyer_id", b.ID), zap.Int("phase", def.PhaseNumber))
				warnings = append(warnings, err)
				continue
			}
			seen[def.PhaseNumber] = struct{}{}

			p := models.Phase{
				BuyerID:           b.ID,
				PhaseNumber:       def.PhaseNumber,
				Charge:            def.Fee,
				Sum:               def.Fee,
				ScheduledDateText: def.Offset,
			}
			p.DeriveFeeSum()

			due, err := sb.Resolver.Resolve(b.RegisterDate, def.Offset)
			if err != nil {
				sb.Log.Warn("[SCHED][WARN] unresolved offset",
					zap.Int("buyer_id", b.ID), zap.Int("phase", def.PhaseNumber),
					zap.String("offset", def.Offset), zap.Error(err))
				warnings = append(warnings, fmt.Errorf("phase %d: %w", def.PhaseNumber, err))
			} else {
				p.ScheduledDate = &due
			}
			phases = append(phases, p)
		}
	}

	b.Phases = phases
	sb.Aggregator.Recompute(b)
	return b, warnings
}
