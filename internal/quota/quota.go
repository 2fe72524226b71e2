// Package quota enforces per-organization, per-billing-period generation
// limits against a shared atomic counter store.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fundmatch/backend/internal/models"
)

// ErrQuotaExceeded is returned when the plan limit has been reached for the
// current billing period. Expected and user-facing.
var ErrQuotaExceeded = errors.New("quota exceeded")

// Unlimited marks plans without a generation cap.
const Unlimited = -1

// Counter is the shared atomic counter store. Production uses Redis; tests
// substitute an in-memory implementation.
type Counter interface {
	// Incr atomically increments key, setting ttl on first creation.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// Decr atomically decrements key.
	Decr(ctx context.Context, key string) (int64, error)
	// Get returns the current value, 0 when the key is absent.
	Get(ctx context.Context, key string) (int64, error)
}

// Service implements reserve/release quota accounting. The check is an
// atomic increment-then-compare: N concurrent calls against a counter at
// limit-1 admit at most one. A reservation that produced nothing durable is
// released with a compensating decrement.
type Service struct {
	counter   Counter
	freeLimit int
	now       func() time.Time
}

// NewService creates a quota service.
func NewService(counter Counter, freeLimit int) *Service {
	return &Service{counter: counter, freeLimit: freeLimit, now: time.Now}
}

// LimitFor returns the monthly generation limit for a plan tier. PRO and
// TEAM are unlimited for generation.
func (s *Service) LimitFor(plan string) int {
	if plan == models.PlanFree {
		return s.freeLimit
	}
	return Unlimited
}

// Reserve atomically claims one generation slot for the current period.
// Returns ErrQuotaExceeded without leaving the counter incremented when the
// limit is reached.
func (s *Service) Reserve(ctx context.Context, orgID uuid.UUID, plan string) (models.QuotaUsage, error) {
	now := s.now().UTC()
	limit := s.LimitFor(plan)
	key := periodKey(orgID, now)

	n, err := s.counter.Incr(ctx, key, periodTTL(now))
	if err != nil {
		return models.QuotaUsage{}, fmt.Errorf("quota incr: %w", err)
	}
	if limit != Unlimited && n > int64(limit) {
		if _, derr := s.counter.Decr(ctx, key); derr != nil {
			return models.QuotaUsage{}, fmt.Errorf("quota rollback: %w", derr)
		}
		return models.QuotaUsage{
			Plan:      plan,
			Used:      limit,
			Remaining: 0,
			ResetsAt:  periodReset(now),
		}, ErrQuotaExceeded
	}
	return s.usage(plan, limit, int(n), now), nil
}

// Release returns a reserved slot after a failed or cancelled invocation, so
// the counter never reflects work that produced nothing durable.
func (s *Service) Release(ctx context.Context, orgID uuid.UUID) error {
	now := s.now().UTC()
	if _, err := s.counter.Decr(ctx, periodKey(orgID, now)); err != nil {
		return fmt.Errorf("quota release: %w", err)
	}
	return nil
}

// Usage reports the current period's consumption without reserving.
func (s *Service) Usage(ctx context.Context, orgID uuid.UUID, plan string) (models.QuotaUsage, error) {
	now := s.now().UTC()
	n, err := s.counter.Get(ctx, periodKey(orgID, now))
	if err != nil {
		return models.QuotaUsage{}, fmt.Errorf("quota get: %w", err)
	}
	return s.usage(plan, s.LimitFor(plan), int(n), now), nil
}

func (s *Service) usage(plan string, limit, used int, now time.Time) models.QuotaUsage {
	remaining := Unlimited
	if limit != Unlimited {
		remaining = limit - used
		if remaining < 0 {
			remaining = 0
		}
	}
	return models.QuotaUsage{
		Plan:      plan,
		Used:      used,
		Remaining: remaining,
		ResetsAt:  periodReset(now),
	}
}

func periodKey(orgID uuid.UUID, now time.Time) string {
	return fmt.Sprintf("quota:gen:%s:%s", orgID, now.Format("2006-01"))
}

func periodReset(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}

// periodTTL keeps the counter alive one day past the period rollover.
func periodTTL(now time.Time) time.Duration {
	return periodReset(now).Add(24 * time.Hour).Sub(now)
}
