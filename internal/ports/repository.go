package ports

import (
	"context"
	"errors"

	"lotting_ledger/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate identifier")
)

// BuyerFilter selects buyers. Empty fields are ignored; the zero filter lists all.
type BuyerFilter struct {
	ID           *int
	IDContains   string
	Name         string
	NameContains string
}

type BuyerRepository interface {
	NextID(ctx context.Context) (int, error)
	Exists(ctx context.Context, id int) (bool, error)
	// Create inserts the buyer with its phases and summary as one unit.
	Create(ctx context.Context, b *models.Buyer) error
	FindByID(ctx context.Context, id int) (*models.Buyer, error)
	// FindByName is an exact name match; the first registered buyer wins on ties.
	FindByName(ctx context.Context, name string) (*models.Buyer, error)
	Search(ctx context.Context, f BuyerFilter) ([]models.Buyer, error)
	// Save rewrites the buyer row, its phases and summary as one unit.
	Save(ctx context.Context, b *models.Buyer) error
	// SaveWithDeposit is Save plus the insert of the deposit that changed the
	// schedule; either both are stored or neither is. rec.ID is set on success.
	SaveWithDeposit(ctx context.Context, b *models.Buyer, rec *models.TransactionRecord) error
	// Delete removes the buyer and unlinks its deposit records.
	Delete(ctx context.Context, id int) error
	CountByStatus(ctx context.Context, status models.BuyerStatus) (int64, error)
}

type FeePlanRepository interface {
	// FindByKey returns nil, nil when no plan matches.
	FindByKey(ctx context.Context, groupKey, batch string) (*models.FeePlan, error)
}

type DepositRepository interface {
	Insert(ctx context.Context, rec *models.TransactionRecord) error
	List(ctx context.Context) ([]models.TransactionRecord, error)
}
