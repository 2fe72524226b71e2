// Package matching coordinates match generation: quota check, candidate
// fetch, eligibility filter, scoring, ranking, and persistence.
package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fundmatch/backend/internal/models"
	"github.com/fundmatch/backend/internal/quota"
	"github.com/fundmatch/backend/internal/scoring"
)

// ProfileStore reads organization profiles.
type ProfileStore interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*models.OrganizationProfile, error)
}

// Catalog reads matchable announcements.
type Catalog interface {
	ListAllMatchable(ctx context.Context) ([]models.Announcement, error)
}

// PlanStore reads subscription plans.
type PlanStore interface {
	GetByOrganization(ctx context.Context, orgID uuid.UUID) (*models.Subscription, error)
}

// Quota reserves and releases generation slots.
type Quota interface {
	Reserve(ctx context.Context, orgID uuid.UUID, plan string) (models.QuotaUsage, error)
	Release(ctx context.Context, orgID uuid.UUID) error
	Usage(ctx context.Context, orgID uuid.UUID, plan string) (models.QuotaUsage, error)
}

// MatchStore persists generated matches and their session row atomically.
type MatchStore interface {
	UpsertAll(ctx context.Context, matches []*models.Match, session *models.GenerationSession) error
}

// QuotaExceededError is the expected, user-facing rejection. It carries the
// usage snapshot with the reset timestamp.
type QuotaExceededError struct {
	Usage models.QuotaUsage
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("generation quota exceeded for plan %s, resets %s",
		e.Usage.Plan, e.Usage.ResetsAt.Format(time.RFC3339))
}

// GenerateResult is the outcome of one generation invocation.
type GenerateResult struct {
	Matches   []*models.Match   `json:"matches"`
	Quota     models.QuotaUsage `json:"quota"`
	SessionID uuid.UUID         `json:"session_id"`
}

// Service is the match generation orchestrator.
type Service struct {
	profiles ProfileStore
	catalog  Catalog
	plans    PlanStore
	quota    Quota
	matches  MatchStore
	config   scoring.Config
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates the orchestrator.
func NewService(profiles ProfileStore, catalog Catalog, plans PlanStore, q Quota, matches MatchStore, cfg scoring.Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		profiles: profiles,
		catalog:  catalog,
		plans:    plans,
		quota:    q,
		matches:  matches,
		config:   cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// ConfigName returns the active scoring configuration name.
func (s *Service) ConfigName() string {
	return s.config.Name()
}

// Generate runs one generation invocation for the organization. The quota
// slot is reserved up front with an atomic increment-compare and handed back
// whenever the invocation produces nothing durable, so concurrent calls never
// overshoot the plan limit and failures are never charged.
func (s *Service) Generate(ctx context.Context, orgID uuid.UUID) (*GenerateResult, error) {
	profile, err := s.profiles.GetProfile(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	sub, err := s.plans.GetByOrganization(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}

	usage, err := s.quota.Reserve(ctx, orgID, sub.Plan)
	if err != nil {
		if errors.Is(err, quota.ErrQuotaExceeded) {
			return nil, &QuotaExceededError{Usage: usage}
		}
		return nil, fmt.Errorf("reserve quota: %w", err)
	}

	released := false
	committed := false
	defer func() {
		if committed || released {
			return
		}
		// Abort or cancellation before durable persistence: hand the slot back.
		if rerr := s.quota.Release(context.WithoutCancel(ctx), orgID); rerr != nil {
			s.logger.Error("quota release failed, counter may over-report until rollover",
				zap.Error(rerr), zap.String("organization_id", orgID.String()))
		}
	}()

	candidates, err := s.catalog.ListAllMatchable(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch candidates: %w", err)
	}

	eligible := scoring.FilterEligible(profile, candidates)
	if len(eligible) == 0 {
		released = true
		if rerr := s.quota.Release(ctx, orgID); rerr != nil {
			s.logger.Error("quota release failed", zap.Error(rerr), zap.String("organization_id", orgID.String()))
		}
		u, uerr := s.quota.Usage(ctx, orgID, sub.Plan)
		if uerr != nil {
			u = usage
		}
		return &GenerateResult{Matches: []*models.Match{}, Quota: u}, nil
	}

	now := s.now()
	type scored struct {
		ann    models.Announcement
		result scoring.Result
	}
	results := make([]scored, 0, len(eligible))
	for i := range eligible {
		res, serr := s.scoreCandidate(profile, &eligible[i], now)
		if serr != nil {
			// Fail-open per item: drop the candidate, keep the invocation.
			s.logger.Warn("candidate scoring failed, excluded from generation",
				zap.Error(serr),
				zap.String("announcement_id", eligible[i].ID.String()),
			)
			continue
		}
		results = append(results, scored{ann: eligible[i], result: res})
	}
	if len(results) == 0 {
		released = true
		if rerr := s.quota.Release(ctx, orgID); rerr != nil {
			s.logger.Error("quota release failed", zap.Error(rerr), zap.String("organization_id", orgID.String()))
		}
		u, uerr := s.quota.Usage(ctx, orgID, sub.Plan)
		if uerr != nil {
			u = usage
		}
		return &GenerateResult{Matches: []*models.Match{}, Quota: u}, nil
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		as, bs := a.result.Score+a.result.Bonus, b.result.Score+b.result.Bonus
		if as != bs {
			return as > bs
		}
		if !a.ann.PublishedAt.Equal(b.ann.PublishedAt) {
			return a.ann.PublishedAt.After(b.ann.PublishedAt)
		}
		return deadlineBefore(a.ann.Deadline, b.ann.Deadline)
	})

	if len(results) > s.config.TopK {
		results = results[:s.config.TopK]
	}

	matches := make([]*models.Match, 0, len(results))
	for _, r := range results {
		matches = append(matches, &models.Match{
			OrganizationID: orgID,
			AnnouncementID: r.ann.ID,
			Score:          r.result.Score,
			Bonus:          r.result.Bonus,
			Explanation: models.Explanation{
				Breakdown: r.result.Breakdown,
				Reasons:   r.result.ReasonCodes,
			},
		})
	}

	session := &models.GenerationSession{
		OrganizationID:    orgID,
		ItemsGenerated:    len(matches),
		ScoringConfigName: s.config.Name(),
	}
	if err := s.matches.UpsertAll(ctx, matches, session); err != nil {
		// Fail-closed in the user's favor: the deferred release uncharges.
		return nil, fmt.Errorf("persist matches: %w", err)
	}
	committed = true

	s.logger.Info("matches generated",
		zap.String("organization_id", orgID.String()),
		zap.Int("candidates", len(candidates)),
		zap.Int("eligible", len(eligible)),
		zap.Int("persisted", len(matches)),
		zap.String("scoring_config", session.ScoringConfigName),
	)

	return &GenerateResult{Matches: matches, Quota: usage, SessionID: session.ID}, nil
}

// scoreCandidate isolates one candidate's scoring so a panic on bad catalog
// data drops only that candidate.
func (s *Service) scoreCandidate(profile *models.OrganizationProfile, ann *models.Announcement, now time.Time) (res scoring.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scoring panic: %v", r)
		}
	}()
	return s.config.Score(profile, ann, now), nil
}

// deadlineBefore orders sooner deadlines first, null deadlines last.
func deadlineBefore(a, b *time.Time) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return a.Before(*b)
	}
}
