// Package cachewarm pre-populates the explanation cache so first reads after
// a profile change or a quiet deploy window do not all miss at once.
package cachewarm

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fundmatch/backend/internal/explain"
	"github.com/fundmatch/backend/internal/models"
)

// Warming strategies.
const (
	StrategyOrganization = "organization" // one organization's top matches
	StrategyPrograms     = "programs"     // matches referencing given announcements
	StrategySmart        = "smart"        // organizations active today plus recently changed programs
	StrategyFull         = "full"         // every organization active inside the full window
)

// ValidStrategy reports whether s is a known warming strategy.
func ValidStrategy(s string) bool {
	switch s {
	case StrategyOrganization, StrategyPrograms, StrategySmart, StrategyFull:
		return true
	}
	return false
}

// Params selects the warming strategy and its target. OrganizationID is
// required for the organization strategy, AnnouncementIDs for programs; the
// other strategies pick their own targets.
type Params struct {
	Strategy        string      `json:"strategy"`
	OrganizationID  uuid.UUID   `json:"organization_id,omitempty"`
	AnnouncementIDs []uuid.UUID `json:"announcement_ids,omitempty"`
}

// OrganizationSource enumerates warm targets by recent generation activity.
type OrganizationSource interface {
	ListActiveSince(ctx context.Context, since time.Time, limit int) ([]uuid.UUID, error)
}

// ProfileSource loads profiles for prompt assembly.
type ProfileSource interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*models.OrganizationProfile, error)
}

// MatchSource loads matches to warm.
type MatchSource interface {
	ListByOrganization(ctx context.Context, orgID uuid.UUID, limit int) ([]*models.Match, error)
	ListByAnnouncement(ctx context.Context, annID uuid.UUID, limit int) ([]*models.Match, error)
}

// AnnouncementSource loads announcements for prompt assembly and picks the
// recently changed programs the smart strategy re-warms.
type AnnouncementSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Announcement, error)
	ListUpdatedSince(ctx context.Context, since time.Time, limit int) ([]uuid.UUID, error)
}

// Explainer produces and caches explanations.
type Explainer interface {
	Explain(ctx context.Context, match *models.Match, profile *models.OrganizationProfile, ann *models.Announcement) (explain.Result, error)
}

// Report summarizes one warming run.
type Report struct {
	Strategy      string `json:"strategy"`
	Organizations int    `json:"organizations"`
	ItemsWarmed   int    `json:"items_warmed"`
	AlreadyCached int    `json:"already_cached"`
	Failed        int    `json:"failed"`
	DurationMs    int64  `json:"duration_ms"`
}

func (r *Report) add(warmed, cached, failed int) {
	r.ItemsWarmed += warmed
	r.AlreadyCached += cached
	r.Failed += failed
}

// Controller runs warming passes. Each run carries its own deadline so a
// large catalog cannot wedge the worker's schedule.
type Controller struct {
	orgs        OrganizationSource
	profiles    ProfileSource
	matches     MatchSource
	anns        AnnouncementSource
	explainer   Explainer
	topN        int
	smartWindow time.Duration
	fullWindow  time.Duration
	timeout     time.Duration
	maxOrgs     int
	logger      *zap.Logger
	now         func() time.Time
}

func NewController(orgs OrganizationSource, profiles ProfileSource, matches MatchSource, anns AnnouncementSource, explainer Explainer, topN int, smartWindow, fullWindow, timeout time.Duration, maxOrgs int, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		orgs:        orgs,
		profiles:    profiles,
		matches:     matches,
		anns:        anns,
		explainer:   explainer,
		topN:        topN,
		smartWindow: smartWindow,
		fullWindow:  fullWindow,
		timeout:     timeout,
		maxOrgs:     maxOrgs,
		logger:      logger,
		now:         time.Now,
	}
}

// Warm runs one pass. Warming is best-effort: a failing item is counted and
// skipped, never fatal.
func (c *Controller) Warm(ctx context.Context, p Params) (Report, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	started := c.now()
	report := Report{Strategy: p.Strategy}

	switch p.Strategy {
	case StrategyPrograms:
		if len(p.AnnouncementIDs) == 0 {
			return report, fmt.Errorf("programs strategy requires announcement ids")
		}
		c.warmPrograms(ctx, p.AnnouncementIDs, make(map[uuid.UUID]struct{}), &report)
	case StrategyOrganization, StrategySmart, StrategyFull:
		targets, err := c.listTargets(ctx, p)
		if err != nil {
			return report, err
		}
		seen := make(map[uuid.UUID]struct{}, len(targets))
		for _, id := range targets {
			if ctx.Err() != nil {
				break
			}
			seen[id] = struct{}{}
			report.Organizations++
			report.add(c.warmOrganization(ctx, id))
		}
		if p.Strategy == StrategySmart {
			// Smart also refreshes the shared entries of programs whose
			// details changed inside the window, across every holder.
			annIDs, err := c.anns.ListUpdatedSince(ctx, c.now().Add(-c.smartWindow), c.maxOrgs)
			if err != nil {
				c.logger.Warn("warm could not list updated announcements", zap.Error(err))
				report.Failed++
			} else {
				c.warmPrograms(ctx, annIDs, seen, &report)
			}
		}
	default:
		return report, fmt.Errorf("unknown warming strategy %q", p.Strategy)
	}

	report.DurationMs = c.now().Sub(started).Milliseconds()
	c.logger.Info("cache warm completed",
		zap.String("strategy", p.Strategy),
		zap.Int("organizations", report.Organizations),
		zap.Int("items_warmed", report.ItemsWarmed),
		zap.Int("already_cached", report.AlreadyCached),
		zap.Int("failed", report.Failed),
		zap.Int64("duration_ms", report.DurationMs),
	)
	return report, nil
}

func (c *Controller) listTargets(ctx context.Context, p Params) ([]uuid.UUID, error) {
	switch p.Strategy {
	case StrategyOrganization:
		if p.OrganizationID == uuid.Nil {
			return nil, fmt.Errorf("organization strategy requires an organization id")
		}
		return []uuid.UUID{p.OrganizationID}, nil
	case StrategySmart:
		targets, err := c.orgs.ListActiveSince(ctx, c.now().Add(-c.smartWindow), c.maxOrgs)
		if err != nil {
			return nil, fmt.Errorf("list active organizations: %w", err)
		}
		return targets, nil
	default:
		targets, err := c.orgs.ListActiveSince(ctx, c.now().Add(-c.fullWindow), c.maxOrgs)
		if err != nil {
			return nil, fmt.Errorf("list active organizations: %w", err)
		}
		return targets, nil
	}
}

func (c *Controller) warmOrganization(ctx context.Context, orgID uuid.UUID) (warmed, cached, failed int) {
	profile, err := c.profiles.GetProfile(ctx, orgID)
	if err != nil {
		c.logger.Warn("warm skipped organization", zap.Error(err), zap.String("organization_id", orgID.String()))
		return 0, 0, 1
	}

	matches, err := c.matches.ListByOrganization(ctx, orgID, c.topN)
	if err != nil {
		c.logger.Warn("warm could not list matches", zap.Error(err), zap.String("organization_id", orgID.String()))
		return 0, 0, 1
	}

	for _, m := range matches {
		if ctx.Err() != nil {
			return warmed, cached, failed
		}
		ann, err := c.anns.GetByID(ctx, m.AnnouncementID)
		if err != nil {
			failed++
			continue
		}
		w, ch, f := c.warmMatch(ctx, m, profile, ann)
		warmed, cached, failed = warmed+w, cached+ch, failed+f
	}
	return warmed, cached, failed
}

// warmPrograms warms every match that references the given announcements,
// across organizations. Used after a program's details change. seen carries
// organizations already counted by an earlier pass of the same run.
func (c *Controller) warmPrograms(ctx context.Context, annIDs []uuid.UUID, seen map[uuid.UUID]struct{}, report *Report) {
	for _, annID := range annIDs {
		if ctx.Err() != nil {
			return
		}
		ann, err := c.anns.GetByID(ctx, annID)
		if err != nil {
			c.logger.Warn("warm skipped announcement", zap.Error(err), zap.String("announcement_id", annID.String()))
			report.Failed++
			continue
		}
		matches, err := c.matches.ListByAnnouncement(ctx, annID, c.maxOrgs)
		if err != nil {
			c.logger.Warn("warm could not list matches", zap.Error(err), zap.String("announcement_id", annID.String()))
			report.Failed++
			continue
		}
		for _, m := range matches {
			if ctx.Err() != nil {
				return
			}
			profile, err := c.profiles.GetProfile(ctx, m.OrganizationID)
			if err != nil {
				report.Failed++
				continue
			}
			if _, ok := seen[m.OrganizationID]; !ok {
				seen[m.OrganizationID] = struct{}{}
				report.Organizations++
			}
			report.add(c.warmMatch(ctx, m, profile, ann))
		}
	}
}

func (c *Controller) warmMatch(ctx context.Context, m *models.Match, profile *models.OrganizationProfile, ann *models.Announcement) (warmed, cached, failed int) {
	result, err := c.explainer.Explain(ctx, m, profile, ann)
	if err != nil {
		return 0, 0, 1
	}
	if result.Cached {
		return 0, 1, 0
	}
	return 1, 0, 0
}
