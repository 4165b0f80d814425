package importitems

import (
	"context"
	"encoding/json"
	"time"

	mg "lotting_ledger/internal/config/connections/mongo"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const ImportRecordItemsCollection = "import_record_items"

const (
	ItemDone    = "done"
	ItemWarning = "warning"
	ItemFailed  = "failed"
)

type Item struct {
	ID             string    `bson:"_id" json:"id"`
	ImportRecordID string    `bson:"import_record_id" json:"import_record_id"`
	ModelType      string    `bson:"model_type" json:"model_type"`
	ModelID        string    `bson:"model_id" json:"model_id"`
	RowNumber      int       `bson:"row" json:"row"`
	Payload        string    `bson:"payload" json:"payload"`
	Status         string    `bson:"status" json:"status"`
	Errors         string    `bson:"errors" json:"errors"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at" json:"updated_at"`
}

type LogParams struct {
	ImportRecordID string
	ModelType      ModelType
	ModelID        string
	RowNumber      int
	Payload        any
	Status         string
	Errors         string
}

func InsertItem(ctx context.Context, m *mg.Mongo, item Item) (*mongo.InsertOneResult, error) {
	if m == nil || m.Client == nil || m.Database == nil {
		return nil, mongo.ErrClientDisconnected
	}

	now := time.Now().UTC()
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	doc := bson.D{
		{Key: "_id", Value: item.ID},
		{Key: "import_record_id", Value: item.ImportRecordID},
		{Key: "model_type", Value: item.ModelType},
		{Key: "model_id", Value: item.ModelID},
		{Key: "row", Value: item.RowNumber},
		{Key: "payload", Value: item.Payload},
		{Key: "status", Value: item.Status},
		{Key: "errors", Value: item.Errors},
		{Key: "created_at", Value: item.CreatedAt},
		{Key: "updated_at", Value: item.UpdatedAt},
	}

	return m.Database.Collection(ImportRecordItemsCollection).InsertOne(ctx, doc, options.InsertOne())
}

// ListItems returns the per-row log of one import in row order.
func ListItems(ctx context.Context, m *mg.Mongo, importRecordID string) ([]Item, error) {
	if m == nil || m.Database == nil {
		return nil, mongo.ErrClientDisconnected
	}
	cur, err := m.Database.Collection(ImportRecordItemsCollection).Find(ctx,
		bson.M{"import_record_id": importRecordID},
		options.Find().SetSort(bson.D{{Key: "row", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	items := make([]Item, 0)
	if err := cur.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// LogMongo writes one row outcome. A nil connection turns it into a no-op.
func LogMongo(ctx context.Context, mgc *mg.Mongo, log *zap.Logger, p LogParams) {
	if mgc == nil || mgc.Database == nil {
		return
	}

	b, _ := json.Marshal(p.Payload)

	if _, mErr := InsertItem(ctx, mgc, Item{
		ImportRecordID: p.ImportRecordID,
		ModelType:      string(p.ModelType),
		ModelID:        p.ModelID,
		RowNumber:      p.RowNumber,
		Payload:        string(b),
		Status:         p.Status,
		Errors:         p.Errors,
	}); mErr != nil && log != nil {
		log.Warn("[PROC][MONGO][ERR] log item",
			zap.String("model", string(p.ModelType)), zap.String("id", p.ModelID),
			zap.String("status", p.Status), zap.Error(mErr))
	}
}
