package postgres

import (
	"context"
	"fmt"

	"github.com/opentrusty/qaguard/internal/activity"
)

// ActivityRepository implements activity.Store
type ActivityRepository struct {
	db *DB
}

// NewActivityRepository creates a new token activity repository
func NewActivityRepository(db *DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Append inserts one activity row. Rows are never updated.
func (r *ActivityRepository) Append(ctx context.Context, rec *activity.Record) error {
	_, err := r.db.sql.ExecContext(ctx, `
		INSERT INTO api_token_activity (
			id, token_id, method, path, status_code, ip_address, user_agent,
			resource, action, allowed, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		rec.ID, rec.TokenID, rec.Method, rec.Path, rec.StatusCode,
		nullString(rec.IPAddress), nullString(rec.UserAgent),
		nullString(rec.Resource), nullString(rec.Action), rec.Allowed, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert token activity: %w", err)
	}
	return nil
}
