package database

import (
	"context"
	"fmt"
	"time"

	"lotting_ledger/internal/config/connections/postgres"
	"lotting_ledger/internal/models"
	"lotting_ledger/internal/ports"

	"github.com/jackc/pgx/v5"
)

type DepositRepo struct {
	pg *postgres.Postgres
}

func NewDepositRepo(pg *postgres.Postgres) *DepositRepo {
	return &DepositRepo{pg: pg}
}

var _ ports.DepositRepository = (*DepositRepo)(nil)

const insertDepositQuery = `
	INSERT INTO deposit_histories (
		id, row_number, transaction_time, description, details, contractor,
		withdrawn_amount, deposit_amount, balance_after, branch, account,
		phase_flags, self_record, loan_record, loan_status, target_phases,
		buyer_id, unlinked, warnings, created_at
	)
	VALUES (
		COALESCE(NULLIF($1::bigint, 0), nextval('deposit_histories_id_seq')),
		$2, $3, $4, $5, $6,
		$7, $8, $9, $10, $11,
		$12::bool[], $13, $14, $15, $16::int[],
		$17, $18, $19::text[], NOW()
	)
	RETURNING id;
`

func depositArgs(rec *models.TransactionRecord) []any {
	targets := make([]int32, len(rec.TargetPhases))
	for i, n := range rec.TargetPhases {
		targets[i] = int32(n)
	}
	warnings := rec.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return []any{
		rec.ID, rec.RowNumber, rec.TransactionTime, rec.Description, rec.Details, rec.Contractor,
		rec.WithdrawnAmount, rec.DepositAmount, rec.BalanceAfter, rec.Branch, rec.Account,
		rec.PhaseFlags[:], rec.SelfRecord, rec.LoanRecord, rec.LoanStatus, targets,
		rec.BuyerID, rec.Unlinked, warnings,
	}
}

func (r *DepositRepo) Insert(ctx context.Context, rec *models.TransactionRecord) error {
	if err := r.pg.Pool.QueryRow(ctx, insertDepositQuery, depositArgs(rec)...).Scan(&rec.ID); err != nil {
		return fmt.Errorf("insert deposit row %d: %w", rec.RowNumber, err)
	}
	return nil
}

func (r *DepositRepo) List(ctx context.Context) ([]models.TransactionRecord, error) {
	rows, err := r.pg.Pool.Query(ctx, `
		SELECT id, row_number, transaction_time, description, details, contractor,
			withdrawn_amount, deposit_amount, balance_after, branch, account,
			phase_flags, self_record, loan_record, loan_status, target_phases,
			buyer_id, unlinked, warnings
		FROM deposit_histories
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.TransactionRecord, error) {
		var (
			rec     models.TransactionRecord
			tt      *time.Time
			flags   []bool
			targets []int32
		)
		err := row.Scan(&rec.ID, &rec.RowNumber, &tt, &rec.Description, &rec.Details, &rec.Contractor,
			&rec.WithdrawnAmount, &rec.DepositAmount, &rec.BalanceAfter, &rec.Branch, &rec.Account,
			&flags, &rec.SelfRecord, &rec.LoanRecord, &rec.LoanStatus, &targets,
			&rec.BuyerID, &rec.Unlinked, &rec.Warnings,
		)
		if err != nil {
			return rec, err
		}
		rec.TransactionTime = tt
		copy(rec.PhaseFlags[:], flags)
		for _, n := range targets {
			rec.TargetPhases = append(rec.TargetPhases, int(n))
		}
		return rec, nil
	})
}
