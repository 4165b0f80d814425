package processors

import (
	"context"

	mg "lotting_ledger/internal/config/connections/mongo"
	"lotting_ledger/internal/logger"
	importitems "lotting_ledger/internal/repository/imports"

	"go.uber.org/zap"
)

// BaseProcessor carries what every processor needs to journal its rows.
type BaseProcessor struct {
	MG  *mg.Mongo
	Log *zap.Logger
}

func NewBaseProcessor(m *mg.Mongo, log *zap.Logger) *BaseProcessor {
	return &BaseProcessor{MG: m, Log: logger.OrNop(log)}
}

func (b *BaseProcessor) logItem(ctx context.Context, p importitems.LogParams) {
	importitems.LogMongo(ctx, b.MG, b.Log, p)
}
