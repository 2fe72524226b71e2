package organizations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fundmatch/backend/internal/models"
)

// Repository reads organization profiles. The engine owns only the UpdatedAt
// bump that rides along with an external profile mutation.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an organizations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const profileColumns = `id, name, org_type, industry_sector, employee_count_band,
	trl, rd_experience, business_structure, certifications, research_focus_areas,
	created_at, updated_at`

// GetProfile returns the full matching profile by organization id.
func (r *Repository) GetProfile(ctx context.Context, id uuid.UUID) (*models.OrganizationProfile, error) {
	q := `SELECT ` + profileColumns + ` FROM organizations WHERE id = $1`
	var p models.OrganizationProfile
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&p.ID, &p.Name, &p.Type, &p.IndustrySector, &p.EmployeeCountBand,
		&p.TRL, &p.RDExperience, &p.BusinessStructure, &p.Certifications,
		&p.ResearchFocusAreas, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// GetUpdatedAt returns the profile's last mutation time for staleness checks.
func (r *Repository) GetUpdatedAt(ctx context.Context, id uuid.UUID) (time.Time, error) {
	var t time.Time
	err := r.pool.QueryRow(ctx, `SELECT updated_at FROM organizations WHERE id = $1`, id).Scan(&t)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, models.ErrNotFound
		}
		return time.Time{}, err
	}
	return t, nil
}

// UpdateProfile persists a profile mutation and bumps updated_at. Callers are
// responsible for triggering cache invalidation afterwards.
func (r *Repository) UpdateProfile(ctx context.Context, p *models.OrganizationProfile) error {
	const q = `UPDATE organizations SET
			name = $2, org_type = $3, industry_sector = $4, employee_count_band = $5,
			trl = $6, rd_experience = $7, business_structure = $8,
			certifications = $9, research_focus_areas = $10, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q,
		p.ID, p.Name, p.Type, p.IndustrySector, p.EmployeeCountBand,
		p.TRL, p.RDExperience, p.BusinessStructure, p.Certifications, p.ResearchFocusAreas,
	).Scan(&p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}
	return err
}

// ListActiveSince returns organization ids with a generation session since the
// cutoff, newest first, capped at limit. Used by cache warming to pick
// candidates without scanning every tenant.
func (r *Repository) ListActiveSince(ctx context.Context, since time.Time, limit int) ([]uuid.UUID, error) {
	const q = `SELECT organization_id FROM generation_sessions
		WHERE created_at >= $1
		GROUP BY organization_id
		ORDER BY MAX(created_at) DESC
		LIMIT $2`
	rows, err := r.pool.Query(ctx, q, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

func scanIDs(rows pgx.Rows) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
