package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"hookrelay/internal/constants"
)

// EnsureArchiveCollection creates the indexes the delivery archive queries
// rely on. The collection itself appears on first insert.
func EnsureArchiveCollection(ctx context.Context, db *mongo.Database) error {
	collection := db.Collection(constants.ArchiveCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "webhook_id", Value: 1}},
			Options: options.Index().SetName("idx_webhook_archive_webhook_id"),
		},
		{
			Keys:    bson.D{{Key: "source", Value: 1}, {Key: "processed_at", Value: -1}},
			Options: options.Index().SetName("idx_webhook_archive_source_processed_at"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_webhook_archive_status"),
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		if !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("failed to create archive indexes: %w", err)
		}
	}
	return nil
}
