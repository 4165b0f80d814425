package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lotting_ledger/internal/config/connections/postgres"
	"lotting_ledger/internal/models"
	"lotting_ledger/internal/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type BuyerRepo struct {
	pg *postgres.Postgres
}

func NewBuyerRepo(pg *postgres.Postgres) *BuyerRepo {
	return &BuyerRepo{pg: pg}
}

var _ ports.BuyerRepository = (*BuyerRepo)(nil)

const buyerColumns = `id, contract_type, group_name, batch, name, bank_name, register_date, status`

const insertBuyerQuery = `
	INSERT INTO buyers (` + buyerColumns + `, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7::date, $8, NOW(), NOW())
	ON CONFLICT (id) DO NOTHING;
`

const updateBuyerQuery = `
	UPDATE buyers SET
		contract_type = $2, group_name = $3, batch = $4, name = $5,
		bank_name = $6, register_date = $7::date, status = $8, updated_at = NOW()
	WHERE id = $1;
`

const insertPhaseQuery = `
	INSERT INTO buyer_phases (
		buyer_id, phase_number,
		charge, discount, exemption, service, fee_sum, sum, charged,
		scheduled_date, scheduled_date_text, paid_in_full_date
	)
	VALUES (
		$1, $2,
		$3, $4, $5, $6, $7, $8, $9,
		$10::date, $11, $12::date
	);
`

const upsertStatusQuery = `
	INSERT INTO buyer_statuses (buyer_id, exemption_sum, unpaid_amount, unpaid_phases, amount_sum)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (buyer_id) DO UPDATE SET
		exemption_sum = EXCLUDED.exemption_sum,
		unpaid_amount = EXCLUDED.unpaid_amount,
		unpaid_phases = EXCLUDED.unpaid_phases,
		amount_sum    = EXCLUDED.amount_sum;
`

func (r *BuyerRepo) NextID(ctx context.Context) (int, error) {
	var next int
	err := r.pg.Pool.QueryRow(ctx, `SELECT COALESCE(MAX(id), 0) + 1 FROM buyers`).Scan(&next)
	return next, err
}

func (r *BuyerRepo) Exists(ctx context.Context, id int) (bool, error) {
	var ok bool
	err := r.pg.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM buyers WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}

// Create writes the buyer, its phases and its summary in one transaction.
// An existing id yields ports.ErrDuplicate and nothing is written.
func (r *BuyerRepo) Create(ctx context.Context, b *models.Buyer) error {
	return pgx.BeginFunc(ctx, r.pg.Pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, insertBuyerQuery, buyerArgs(b)...)
		if err != nil {
			return fmt.Errorf("insert buyer %d: %w", b.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("buyer %d: %w", b.ID, ports.ErrDuplicate)
		}
		return writeChildren(ctx, tx, b)
	})
}

// Save rewrites the buyer row and replaces its phases and summary in one transaction.
func (r *BuyerRepo) Save(ctx context.Context, b *models.Buyer) error {
	return pgx.BeginFunc(ctx, r.pg.Pool, func(tx pgx.Tx) error {
		return saveBuyer(ctx, tx, b)
	})
}

// SaveWithDeposit stores the deposit history row in the same transaction as
// the buyer it was applied to.
func (r *BuyerRepo) SaveWithDeposit(ctx context.Context, b *models.Buyer, rec *models.TransactionRecord) error {
	var id int64
	err := pgx.BeginFunc(ctx, r.pg.Pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, insertDepositQuery, depositArgs(rec)...).Scan(&id); err != nil {
			return fmt.Errorf("insert deposit row %d: %w", rec.RowNumber, err)
		}
		return saveBuyer(ctx, tx, b)
	})
	if err != nil {
		return err
	}
	rec.ID = id
	return nil
}

func saveBuyer(ctx context.Context, tx pgx.Tx, b *models.Buyer) error {
	tag, err := tx.Exec(ctx, updateBuyerQuery, buyerArgs(b)...)
	if err != nil {
		return fmt.Errorf("update buyer %d: %w", b.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("buyer %d: %w", b.ID, ports.ErrNotFound)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM buyer_phases WHERE buyer_id = $1`, b.ID); err != nil {
		return fmt.Errorf("clear phases of buyer %d: %w", b.ID, err)
	}
	return writeChildren(ctx, tx, b)
}

func writeChildren(ctx context.Context, tx pgx.Tx, b *models.Buyer) error {
	if len(b.Phases) > 0 {
		batch := &pgx.Batch{}
		for _, p := range b.Phases {
			batch.Queue(insertPhaseQuery,
				b.ID, p.PhaseNumber,
				p.Charge, p.Discount, p.Exemption, p.Service, p.FeeSum, p.Sum, p.Charged,
				p.ScheduledDate, p.ScheduledDateText, p.PaidInFullDate,
			)
		}

		br := tx.SendBatch(ctx, batch)
		var errs []error
		for _, p := range b.Phases {
			if _, err := br.Exec(); err != nil {
				errs = append(errs, fmt.Errorf("phase %d: %w", p.PhaseNumber, err))
			}
		}
		if err := br.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := errors.Join(errs...); err != nil {
			return fmt.Errorf("write phases of buyer %d: %w", b.ID, err)
		}
	}

	if s := b.Summary; s != nil {
		if _, err := tx.Exec(ctx, upsertStatusQuery, b.ID, s.ExemptionSum, s.UnpaidAmount, s.UnpaidPhases, s.AmountSum); err != nil {
			return fmt.Errorf("write status of buyer %d: %w", b.ID, err)
		}
	}
	return nil
}

func buyerArgs(b *models.Buyer) []any {
	return []any{
		b.ID, b.ContractType, b.GroupName, b.Batch, b.Name,
		b.BankName, b.RegisterDate, string(b.Status),
	}
}

func (r *BuyerRepo) FindByID(ctx context.Context, id int) (*models.Buyer, error) {
	out, err := r.find(ctx, `WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ports.ErrNotFound
	}
	return &out[0], nil
}

func (r *BuyerRepo) FindByName(ctx context.Context, name string) (*models.Buyer, error) {
	out, err := r.find(ctx, `WHERE name = $1 ORDER BY id LIMIT 1`, name)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ports.ErrNotFound
	}
	return &out[0], nil
}

func (r *BuyerRepo) Search(ctx context.Context, f ports.BuyerFilter) ([]models.Buyer, error) {
	where, args := searchClause(f)
	return r.find(ctx, where+` ORDER BY id`, args...)
}

// searchClause turns a filter into a WHERE clause with positional args.
func searchClause(f ports.BuyerFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.ID != nil {
		add("id = $%d", *f.ID)
	}
	if f.IDContains != "" {
		add("CAST(id AS text) LIKE '%%' || $%d || '%%'", f.IDContains)
	}
	if f.Name != "" {
		add("name = $%d", f.Name)
	}
	if f.NameContains != "" {
		add("name LIKE '%%' || $%d || '%%'", f.NameContains)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func (r *BuyerRepo) find(ctx context.Context, tail string, args ...any) ([]models.Buyer, error) {
	rows, err := r.pg.Pool.Query(ctx, `SELECT `+buyerColumns+` FROM buyers `+tail, args...)
	if err != nil {
		return nil, err
	}

	buyers, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Buyer, error) {
		var (
			b      models.Buyer
			status string
		)
		err := row.Scan(&b.ID, &b.ContractType, &b.GroupName, &b.Batch, &b.Name, &b.BankName, &b.RegisterDate, &status)
		b.Status = models.BuyerStatus(status)
		return b, err
	})
	if err != nil || len(buyers) == 0 {
		return buyers, err
	}

	ids := make([]int32, len(buyers))
	index := make(map[int]int, len(buyers))
	for i, b := range buyers {
		ids[i] = int32(b.ID)
		index[b.ID] = i
	}

	if err := loadPhases(ctx, r.pg.Pool, ids, buyers, index); err != nil {
		return nil, err
	}
	if err := loadStatuses(ctx, r.pg.Pool, ids, buyers, index); err != nil {
		return nil, err
	}
	return buyers, nil
}

func loadPhases(ctx context.Context, q querier, ids []int32, buyers []models.Buyer, index map[int]int) error {
	rows, err := q.Query(ctx, `
		SELECT buyer_id, phase_number,
			charge, discount, exemption, service, fee_sum, sum, charged,
			scheduled_date, scheduled_date_text, paid_in_full_date
		FROM buyer_phases
		WHERE buyer_id = ANY($1)
		ORDER BY buyer_id, phase_number
	`, ids)
	if err != nil {
		return fmt.Errorf("load phases: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p         models.Phase
			scheduled *time.Time
			paid      *time.Time
		)
		if err := rows.Scan(&p.BuyerID, &p.PhaseNumber,
			&p.Charge, &p.Discount, &p.Exemption, &p.Service, &p.FeeSum, &p.Sum, &p.Charged,
			&scheduled, &p.ScheduledDateText, &paid,
		); err != nil {
			return fmt.Errorf("scan phase: %w", err)
		}
		p.ScheduledDate, p.PaidInFullDate = scheduled, paid
		if i, ok := index[p.BuyerID]; ok {
			buyers[i].Phases = append(buyers[i].Phases, p)
		}
	}
	return rows.Err()
}

func loadStatuses(ctx context.Context, q querier, ids []int32, buyers []models.Buyer, index map[int]int) error {
	rows, err := q.Query(ctx, `
		SELECT buyer_id, exemption_sum, unpaid_amount, unpaid_phases, amount_sum
		FROM buyer_statuses
		WHERE buyer_id = ANY($1)
	`, ids)
	if err != nil {
		return fmt.Errorf("load statuses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s models.StatusSummary
		if err := rows.Scan(&s.BuyerID, &s.ExemptionSum, &s.UnpaidAmount, &s.UnpaidPhases, &s.AmountSum); err != nil {
			return fmt.Errorf("scan status: %w", err)
		}
		if i, ok := index[s.BuyerID]; ok {
			buyers[i].Summary = &s
		}
	}
	return rows.Err()
}

// Delete removes the buyer and everything hanging off it. Unknown ids are not an error.
func (r *BuyerRepo) Delete(ctx context.Context, id int) error {
	return pgx.BeginFunc(ctx, r.pg.Pool, func(tx pgx.Tx) error {
		for _, q := range []string{
			`DELETE FROM buyer_statuses WHERE buyer_id = $1`,
			`DELETE FROM buyer_phases WHERE buyer_id = $1`,
			`UPDATE deposit_histories SET buyer_id = NULL, unlinked = TRUE WHERE buyer_id = $1`,
			`DELETE FROM buyers WHERE id = $1`,
		} {
			if _, err := tx.Exec(ctx, q, id); err != nil {
				return fmt.Errorf("delete buyer %d: %w", id, err)
			}
		}
		return nil
	})
}

func (r *BuyerRepo) CountByStatus(ctx context.Context, status models.BuyerStatus) (int64, error) {
	var n int64
	err := r.pg.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM buyers WHERE status = $1`, string(status)).Scan(&n)
	return n, err
}
