package matching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fundmatch/backend/internal/models"
)

// Repository persists matches and generation sessions.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// UpsertAll writes one generation's matches and its session row in a single
// transaction. Existing rows are updated in place; saved and viewed flags are
// never touched so regeneration cannot erase user engagement.
func (r *Repository) UpsertAll(ctx context.Context, matches []*models.Match, session *models.GenerationSession) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, m := range matches {
		explanation, err := json.Marshal(m.Explanation)
		if err != nil {
			return fmt.Errorf("marshal explanation: %w", err)
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO matches (organization_id, announcement_id, score, bonus, explanation)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (organization_id, announcement_id) DO UPDATE SET
				score = EXCLUDED.score,
				bonus = EXCLUDED.bonus,
				explanation = EXCLUDED.explanation,
				updated_at = NOW()
			RETURNING id, saved, viewed, created_at, updated_at`,
			m.OrganizationID, m.AnnouncementID, m.Score, m.Bonus, explanation,
		).Scan(&m.ID, &m.Saved, &m.Viewed, &m.CreatedAt, &m.UpdatedAt)
		if err != nil {
			return fmt.Errorf("upsert match: %w", err)
		}
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO generation_sessions (organization_id, items_generated, scoring_config_name)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		session.OrganizationID, session.ItemsGenerated, session.ScoringConfigName,
	).Scan(&session.ID, &session.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	return tx.Commit(ctx)
}

// GetByID returns one match.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Match, error) {
	var m models.Match
	var explanation []byte
	err := r.db.QueryRow(ctx, `
		SELECT id, organization_id, announcement_id, score, bonus, explanation,
		       saved, viewed, created_at, updated_at
		FROM matches
		WHERE id = $1`, id,
	).Scan(&m.ID, &m.OrganizationID, &m.AnnouncementID, &m.Score, &m.Bonus,
		&explanation, &m.Saved, &m.Viewed, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("get match: %w", err)
	}
	if err := json.Unmarshal(explanation, &m.Explanation); err != nil {
		return nil, fmt.Errorf("decode explanation: %w", err)
	}
	return &m, nil
}

// ListByAnnouncement returns the matches referencing one announcement, best
// ranked first. Used by program-targeted cache warming.
func (r *Repository) ListByAnnouncement(ctx context.Context, annID uuid.UUID, limit int) ([]*models.Match, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, organization_id, announcement_id, score, bonus, explanation,
		       saved, viewed, created_at, updated_at
		FROM matches
		WHERE announcement_id = $1
		ORDER BY (score + bonus) DESC
		LIMIT $2`, annID, limit)
	if err != nil {
		return nil, fmt.Errorf("list matches by announcement: %w", err)
	}
	defer rows.Close()
	return scanMatches(rows)
}

// ListByOrganization returns the organization's matches in display order:
// highest score plus bonus first.
func (r *Repository) ListByOrganization(ctx context.Context, orgID uuid.UUID, limit int) ([]*models.Match, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, organization_id, announcement_id, score, bonus, explanation,
		       saved, viewed, created_at, updated_at
		FROM matches
		WHERE organization_id = $1
		ORDER BY (score + bonus) DESC, updated_at DESC
		LIMIT $2`, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()
	return scanMatches(rows)
}

func scanMatches(rows pgx.Rows) ([]*models.Match, error) {
	var matches []*models.Match
	for rows.Next() {
		var m models.Match
		var explanation []byte
		if err := rows.Scan(&m.ID, &m.OrganizationID, &m.AnnouncementID, &m.Score, &m.Bonus,
			&explanation, &m.Saved, &m.Viewed, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		if err := json.Unmarshal(explanation, &m.Explanation); err != nil {
			return nil, fmt.Errorf("decode explanation: %w", err)
		}
		matches = append(matches, &m)
	}
	return matches, rows.Err()
}
