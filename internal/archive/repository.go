package archive

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"hookrelay/internal/constants"
)

type Repository interface {
	Save(ctx context.Context, record Record) error
	FindByWebhookID(ctx context.Context, webhookID string) (*Record, error)
	RecentBySource(ctx context.Context, source string, limit int64) ([]Record, error)
}

type MongoDBRepository struct {
	collection *mongo.Collection
}

func NewRepository(db *mongo.Database) Repository {
	return &MongoDBRepository{
		collection: db.Collection(constants.ArchiveCollection),
	}
}

func (r *MongoDBRepository) Save(ctx context.Context, record Record) error {
	if record.ProcessedAt.IsZero() {
		record.ProcessedAt = time.Now().UTC()
	}

	if _, err := r.collection.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("failed to archive webhook %s: %w", record.WebhookID, err)
	}
	return nil
}

func (r *MongoDBRepository) FindByWebhookID(ctx context.Context, webhookID string) (*Record, error) {
	var record Record
	err := r.collection.FindOne(ctx, bson.M{"webhook_id": webhookID}).Decode(&record)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find archived webhook: %w", err)
	}
	return &record, nil
}

func (r *MongoDBRepository) RecentBySource(ctx context.Context, source string, limit int64) ([]Record, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "processed_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, bson.M{"source": source}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query archive: %w", err)
	}
	defer cursor.Close(ctx)

	var records []Record
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode archive records: %w", err)
	}

	return records, nil
}
