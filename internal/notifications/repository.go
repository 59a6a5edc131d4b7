package notifications

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/studyhive/backend/internal/models"
)

// Repository persists notification records.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a notification repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a notification for an identity.
func (r *Repository) Create(ctx context.Context, identity uuid.UUID, kind, message string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (identity, kind, message)
		VALUES ($1, $2, $3)`, identity, kind, message)
	return err
}

// ListByIdentity returns an identity's notifications, newest first.
func (r *Repository) ListByIdentity(ctx context.Context, identity uuid.UUID, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, identity, kind, message, read, created_at
		FROM notifications
		WHERE identity = $1
		ORDER BY created_at DESC
		LIMIT $2`, identity, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.Identity, &n.Kind, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead flags a notification as read. Returns false when the row does not
// belong to the identity.
func (r *Repository) MarkRead(ctx context.Context, id, identity uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications SET read = TRUE
		WHERE id = $1 AND identity = $2`, id, identity)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
