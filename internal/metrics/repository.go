package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ListSessionStats returns every generation session inside the window with
// the positions of its attributed saves. The save watermark is the latest
// attribution timestamp seen, so readers can tell how fresh the engagement
// data is relative to the window.
func (r *Repository) ListSessionStats(ctx context.Context, start, end time.Time) ([]SessionStats, time.Time, error) {
	rows, err := r.db.Query(ctx, `
		SELECT s.id, s.items_generated, s.scoring_config_name,
		       COALESCE(ARRAY_AGG(a.position) FILTER (WHERE a.position IS NOT NULL), '{}'),
		       MAX(a.created_at)
		FROM generation_sessions s
		LEFT JOIN attributed_saves a ON a.session_id = s.id
		WHERE s.created_at >= $1 AND s.created_at < $2
		GROUP BY s.id, s.items_generated, s.scoring_config_name`,
		start, end)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("list session stats: %w", err)
	}
	defer rows.Close()

	var stats []SessionStats
	var watermark time.Time
	for rows.Next() {
		var id uuid.UUID
		var s SessionStats
		var lastSave *time.Time
		if err := rows.Scan(&id, &s.ItemsGenerated, &s.ConfigName, &s.SavedPositions, &lastSave); err != nil {
			return nil, time.Time{}, fmt.Errorf("scan session stats: %w", err)
		}
		if lastSave != nil && lastSave.After(watermark) {
			watermark = *lastSave
		}
		stats = append(stats, s)
	}
	return stats, watermark, rows.Err()
}

// InsertSnapshot persists one computed report for trend inspection.
func (r *Repository) InsertSnapshot(ctx context.Context, report Report, watermark time.Time) error {
	var wm *time.Time
	if !watermark.IsZero() {
		wm = &watermark
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO metric_snapshots
			(window_start, window_end, k, precision_at_k, ndcg_at_k, hit_rate_at_k,
			 sample_size, is_sufficient, scoring_config_name, watermark)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		report.WindowStart, report.WindowEnd, report.K,
		report.PrecisionAtK.Value, report.NDCGAtK.Value, report.HitRateAtK.Value,
		report.PrecisionAtK.SampleSize, report.PrecisionAtK.IsSufficient,
		report.DominantConfig, wm)
	if err != nil {
		return fmt.Errorf("insert metric snapshot: %w", err)
	}
	return nil
}
