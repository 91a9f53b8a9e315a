package sources

import (
	"context"
	"database/sql"
	"fmt"
)

type Repository interface {
	GetActiveSources(ctx context.Context) ([]WebhookSource, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetActiveSources(ctx context.Context) ([]WebhookSource, error) {
	query := `
		SELECT id, name, enabled, secret, filter_expression, created_at, updated_at
		FROM webhook_sources
		WHERE enabled = true
		ORDER BY name ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query webhook sources: %w", err)
	}
	defer rows.Close()

	var result []WebhookSource
	for rows.Next() {
		var src WebhookSource
		var secret, filter sql.NullString
		if err := rows.Scan(
			&src.ID,
			&src.Name,
			&src.Enabled,
			&secret,
			&filter,
			&src.CreatedAt,
			&src.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan webhook source: %w", err)
		}
		src.Secret = secret.String
		src.FilterExpression = filter.String
		result = append(result, src)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}
