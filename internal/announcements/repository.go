package announcements

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fundmatch/backend/internal/models"
)

// Repository reads the funding announcement catalog. The catalog is written
// by the ingestion pipeline; the only write here is the reclassify override.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an announcements repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const announcementColumns = `id, agency_id, title, category, min_trl, max_trl,
	target_types, allowed_business_structures, deadline, published_at, status,
	announcement_type, rd_bonus, created_at, updated_at`

// GetByID returns a single announcement.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Announcement, error) {
	q := `SELECT ` + announcementColumns + ` FROM announcements WHERE id = $1`
	var a models.Announcement
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&a.ID, &a.AgencyID, &a.Title, &a.Category, &a.MinTRL, &a.MaxTRL,
		&a.TargetTypes, &a.AllowedBusinessStructures, &a.Deadline, &a.PublishedAt,
		&a.Status, &a.AnnouncementType, &a.RDBonus, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// ListMatchable returns ACTIVE R_D_PROJECT announcements in pages. The filter
// lives in the query so candidate fetch never loads surveys or notices.
func (r *Repository) ListMatchable(ctx context.Context, limit, offset int) ([]models.Announcement, error) {
	q := `SELECT ` + announcementColumns + ` FROM announcements
		WHERE status = $1 AND announcement_type = $2
		ORDER BY published_at DESC
		LIMIT $3 OFFSET $4`
	rows, err := r.pool.Query(ctx, q, models.AnnouncementActive, models.TypeRDProject, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAnnouncements(rows)
}

// ListAllMatchable pages through the whole matchable catalog.
func (r *Repository) ListAllMatchable(ctx context.Context) ([]models.Announcement, error) {
	const pageSize = 500
	var all []models.Announcement
	for offset := 0; ; offset += pageSize {
		page, err := r.ListMatchable(ctx, pageSize, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}

// ListUpdatedSince returns ids of matchable announcements whose details
// changed since the cutoff, most recently changed first, capped at limit.
// Cache warming uses it to pick the programs worth re-warming.
func (r *Repository) ListUpdatedSince(ctx context.Context, since time.Time, limit int) ([]uuid.UUID, error) {
	const q = `SELECT id FROM announcements
		WHERE status = $1 AND announcement_type = $2 AND updated_at >= $3
		ORDER BY updated_at DESC
		LIMIT $4`
	rows, err := r.pool.Query(ctx, q, models.AnnouncementActive, models.TypeRDProject, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
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

// Reclassify overrides the classifier's announcement type. This is the single
// write path the engine has into the catalog; callers must trigger
// announcement-scope cache invalidation afterwards.
func (r *Repository) Reclassify(ctx context.Context, id uuid.UUID, newType string) (*models.Announcement, error) {
	const q = `UPDATE announcements SET announcement_type = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, id, newType)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, models.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func scanAnnouncements(rows pgx.Rows) ([]models.Announcement, error) {
	var list []models.Announcement
	for rows.Next() {
		var a models.Announcement
		if err := rows.Scan(
			&a.ID, &a.AgencyID, &a.Title, &a.Category, &a.MinTRL, &a.MaxTRL,
			&a.TargetTypes, &a.AllowedBusinessStructures, &a.Deadline, &a.PublishedAt,
			&a.Status, &a.AnnouncementType, &a.RDBonus, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}
