// Package engagement records user interactions with matches: saves, views,
// and the session-attributed save events the ranking metrics are built on.
package engagement

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fundmatch/backend/internal/models"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// SetSaved sets the match's saved flag to the requested state and returns
// its announcement id so the caller can attribute a save to a session.
// Idempotent in either direction.
func (r *Repository) SetSaved(ctx context.Context, matchID uuid.UUID, saved bool) (uuid.UUID, error) {
	var annID uuid.UUID
	err := r.db.QueryRow(ctx, `
		UPDATE matches SET saved = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING announcement_id`, matchID, saved,
	).Scan(&annID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, models.ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("set saved: %w", err)
	}
	return annID, nil
}

// SetViewed sets the match's viewed flag to the requested state. Idempotent.
func (r *Repository) SetViewed(ctx context.Context, matchID uuid.UUID, viewed bool) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE matches SET viewed = $2, updated_at = NOW()
		WHERE id = $1`, matchID, viewed)
	if err != nil {
		return fmt.Errorf("set viewed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// InsertAttributedSave records a save against the generation session that
// displayed the item. Rows are append-only.
func (r *Repository) InsertAttributedSave(ctx context.Context, save *models.AttributedSave) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO attributed_saves (session_id, announcement_id, position)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		save.SessionID, save.AnnouncementID, save.Position,
	).Scan(&save.ID, &save.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert attributed save: %w", err)
	}
	return nil
}
