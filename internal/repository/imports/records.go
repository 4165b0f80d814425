package importitems

import (
	"context"
	"fmt"
	"time"

	mg "lotting_ledger/internal/config/connections/mongo"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const ImportRecordsCollection = "import_records"

const (
	StatusParsed     = "parsed"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

type Record struct {
	ID        any        `bson:"_id" json:"id"`
	UserID    *string    `bson:"user_id,omitempty" json:"user_id,omitempty"`
	Count     int        `bson:"count" json:"count"`
	Applied   int        `bson:"applied" json:"applied"`
	Skipped   int        `bson:"skipped" json:"skipped"`
	Warnings  int        `bson:"warnings" json:"warnings"`
	Status    string     `bson:"status" json:"status"`
	Errors    *string    `bson:"errors,omitempty" json:"errors,omitempty"`
	Type      string     `bson:"type" json:"type"`
	Path      *string    `bson:"path,omitempty" json:"path,omitempty"`
	Bucket    *string    `bson:"bucket,omitempty" json:"bucket,omitempty"`
	Key       *string    `bson:"key,omitempty" json:"key,omitempty"`
	SizeBytes *int64     `bson:"size_bytes,omitempty" json:"size_bytes,omitempty"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`
}

// Totals is what a finished import writes back onto its record.
type Totals struct {
	Count    int
	Applied  int
	Skipped  int
	Warnings int
	Errors   string
}

func InsertImportRecord(ctx context.Context, m *mg.Mongo, rec Record) (*mongo.InsertOneResult, error) {
	if m == nil || m.Client == nil || m.Database == nil {
		return nil, mongo.ErrClientDisconnected
	}

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	if rec.Status == "" {
		rec.Status = StatusParsed
	}

	doc := bson.D{
		{Key: "user_id", Value: rec.UserID},
		{Key: "count", Value: rec.Count},
		{Key: "status", Value: rec.Status},
		{Key: "errors", Value: rec.Errors},
		{Key: "type", Value: rec.Type},
		{Key: "path", Value: rec.Path},
		{Key: "bucket", Value: rec.Bucket},
		{Key: "key", Value: rec.Key},
		{Key: "size_bytes", Value: rec.SizeBytes},
		{Key: "created_at", Value: rec.CreatedAt},
		{Key: "updated_at", Value: rec.UpdatedAt},
	}

	return m.Database.Collection(ImportRecordsCollection).InsertOne(ctx, doc, options.InsertOne())
}

func FindImportRecordByID(ctx context.Context, m *mg.Mongo, id string) (Record, error) {
	var out Record
	if m == nil || m.Database == nil {
		return out, mongo.ErrClientDisconnected
	}
	coll := m.Database.Collection(ImportRecordsCollection)

	if err := coll.FindOne(ctx, bson.M{"_id": recordKey(id)}).Decode(&out); err != nil {
		return out, fmt.Errorf("import record %s: %w", id, err)
	}
	return out, nil
}

func ListImportRecords(ctx context.Context, m *mg.Mongo, importType string, limit int64) ([]Record, error) {
	if m == nil || m.Database == nil {
		return nil, mongo.ErrClientDisconnected
	}
	filter := bson.M{}
	if importType != "" {
		filter["type"] = importType
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cur, err := m.Database.Collection(ImportRecordsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	recs := make([]Record, 0)
	if err := cur.All(ctx, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func UpdateImportRecordStatus(ctx context.Context, m *mg.Mongo, importRecordID, status string) error {
	if status == "" {
		return fmt.Errorf("empty status")
	}
	return updateRecord(ctx, m, importRecordID, bson.M{"status": status})
}

// FinishImportRecord stores the final status and totals of an import run.
func FinishImportRecord(ctx context.Context, m *mg.Mongo, importRecordID, status string, t Totals) error {
	set := bson.M{
		"status":   status,
		"count":    t.Count,
		"applied":  t.Applied,
		"skipped":  t.Skipped,
		"warnings": t.Warnings,
	}
	if t.Errors != "" {
		set["errors"] = t.Errors
	}
	return updateRecord(ctx, m, importRecordID, set)
}

func updateRecord(ctx context.Context, m *mg.Mongo, importRecordID string, set bson.M) error {
	if m == nil || m.Database == nil {
		return mongo.ErrClientDisconnected
	}
	if importRecordID == "" {
		return fmt.Errorf("empty importRecordID")
	}
	set["updated_at"] = time.Now().UTC()

	res, err := m.Database.Collection(ImportRecordsCollection).
		UpdateOne(ctx, bson.M{"_id": recordKey(importRecordID)}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("no import_record found with id %s", importRecordID)
	}
	return nil
}

// recordKey accepts both ObjectId hex and plain string ids.
func recordKey(id string) any {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

// EnsureIndexes creates the lookups used by the import endpoints: items by
// record and row, records by type and recency.
func EnsureIndexes(ctx context.Context, m *mg.Mongo) error {
	if m == nil || m.Database == nil {
		return mongo.ErrClientDisconnected
	}
	_, err := m.Database.Collection(ImportRecordItemsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "import_record_id", Value: 1}, {Key: "row", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("import items index: %w", err)
	}
	_, err = m.Database.Collection(ImportRecordsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "type", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("import records index: %w", err)
	}
	return nil
}
