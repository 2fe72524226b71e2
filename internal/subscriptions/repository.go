package subscriptions

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fundmatch/backend/internal/models"
)

// Repository reads subscription plans. Billing state transitions are owned by
// the billing system; only the plan tier and seats are consumed here.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a subscriptions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByOrganization returns the organization's current plan. Organizations
// without a subscription row default to FREE.
func (r *Repository) GetByOrganization(ctx context.Context, orgID uuid.UUID) (*models.Subscription, error) {
	const q = `SELECT organization_id, plan, seats, updated_at FROM subscriptions WHERE organization_id = $1`
	var s models.Subscription
	err := r.pool.QueryRow(ctx, q, orgID).Scan(&s.OrganizationID, &s.Plan, &s.Seats, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &models.Subscription{OrganizationID: orgID, Plan: models.PlanFree, Seats: 1}, nil
		}
		return nil, err
	}
	return &s, nil
}
