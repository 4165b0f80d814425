package database

import (
	"context"
	"errors"
	"fmt"

	"lotting_ledger/internal/config/connections/postgres"
	"lotting_ledger/internal/models"
	"lotting_ledger/internal/ports"

	"github.com/jackc/pgx/v5"
)

type FeePlanRepo struct {
	pg *postgres.Postgres
}

func NewFeePlanRepo(pg *postgres.Postgres) *FeePlanRepo {
	return &FeePlanRepo{pg: pg}
}

var _ ports.FeePlanRepository = (*FeePlanRepo)(nil)

func (r *FeePlanRepo) FindByKey(ctx context.Context, groupKey, batch string) (*models.FeePlan, error) {
	plan := models.FeePlan{GroupKey: groupKey, Batch: batch}

	err := r.pg.Pool.QueryRow(ctx,
		`SELECT id FROM fee_plans WHERE group_key = $1 AND batch = $2 ORDER BY id LIMIT 1`,
		groupKey, batch,
	).Scan(&plan.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fee plan %s/%s: %w", groupKey, batch, err)
	}

	rows, err := r.pg.Pool.Query(ctx,
		`SELECT phase_number, fee, offset_text FROM fee_phases WHERE fee_plan_id = $1 ORDER BY phase_number`,
		plan.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("fee phases of plan %d: %w", plan.ID, err)
	}
	plan.Phases, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.FeePhaseDefinition, error) {
		var d models.FeePhaseDefinition
		err := row.Scan(&d.PhaseNumber, &d.Fee, &d.Offset)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("fee phases of plan %d: %w", plan.ID, err)
	}
	return &plan, nil
}
