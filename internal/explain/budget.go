package explain

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// BudgetGate caps daily AI spend. When exhausted, callers fall back to the
// templated explanation rather than erroring.
type BudgetGate interface {
	Allow(ctx context.Context) (bool, error)
}

// DailyBudget counts provider calls per UTC day in Redis.
type DailyBudget struct {
	client *redis.Client
	limit  int
	now    func() time.Time
}

// NewDailyBudget creates a redis-backed daily call budget.
func NewDailyBudget(client *redis.Client, limit int) *DailyBudget {
	return &DailyBudget{client: client, limit: limit, now: time.Now}
}

// Allow consumes one unit of today's budget and reports whether the call may
// proceed. The counter key outlives the day by a couple of hours so a spend
// spike at midnight rollover still has full history.
func (b *DailyBudget) Allow(ctx context.Context) (bool, error) {
	key := fmt.Sprintf("ai:spend:%s", b.now().UTC().Format("20060102"))
	n, err := b.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("budget incr: %w", err)
	}
	if n == 1 {
		_ = b.client.Expire(ctx, key, 26*time.Hour).Err()
	}
	return n <= int64(b.limit), nil
}
