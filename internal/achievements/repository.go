package achievements

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/studyhive/backend/internal/models"
)

// Metric names tracked per identity.
const (
	MetricQuizzesCompleted    = "quizzes_completed"
	MetricCompetitionsEntered = "competitions_entered"
	MetricCompetitionsWon     = "competitions_won"
	MetricTotalScore          = "total_score"
)

// Repository persists per-identity achievement counters.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an achievement repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Increment adds delta to a counter, creating it at delta when absent.
func (r *Repository) Increment(ctx context.Context, identity uuid.UUID, metric string, delta int) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO achievements (identity, metric, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (identity, metric)
		DO UPDATE SET value = achievements.value + EXCLUDED.value, updated_at = NOW()`,
		identity, metric, delta)
	return err
}

// ListByIdentity returns all counters for an identity.
func (r *Repository) ListByIdentity(ctx context.Context, identity uuid.UUID) ([]models.Achievement, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT identity, metric, value, updated_at
		FROM achievements
		WHERE identity = $1
		ORDER BY metric`, identity)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Achievement
	for rows.Next() {
		var a models.Achievement
		if err := rows.Scan(&a.Identity, &a.Metric, &a.Value, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
