package explain

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fundmatch/backend/internal/models"
)

// Fingerprint derives the cache key for one explanation. A scoring-config
// change or a profile update therefore invalidates only affected entries.
func Fingerprint(orgID, annID uuid.UUID, configName string) string {
	sum := sha256.Sum256([]byte(orgID.String() + "|" + annID.String() + "|" + configName))
	return fmt.Sprintf("%x", sum[:8])
}

// Store is the explanation cache. Production uses Redis; tests substitute an
// in-memory implementation.
type Store interface {
	Get(ctx context.Context, fingerprint string) (*models.Explanation, error)
	Set(ctx context.Context, fingerprint string, orgID, annID uuid.UUID, exp *models.Explanation) error
	InvalidateOrganization(ctx context.Context, orgID uuid.UUID) (int, error)
	InvalidateAnnouncement(ctx context.Context, annID uuid.UUID) (int, error)
}

// RedisStore caches explanations with a bounded TTL and maintains
// per-organization and per-announcement fingerprint index sets, so bulk
// invalidation is a targeted lookup rather than a keyspace scan.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates the redis explanation cache.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func entryKey(fp string) string       { return "explain:fp:" + fp }
func orgIndexKey(id uuid.UUID) string { return "explain:org:" + id.String() }
func annIndexKey(id uuid.UUID) string { return "explain:ann:" + id.String() }

// Get returns the cached explanation or nil on a miss.
func (s *RedisStore) Get(ctx context.Context, fingerprint string) (*models.Explanation, error) {
	raw, err := s.client.Get(ctx, entryKey(fingerprint)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}
	var exp models.Explanation
	if err := json.Unmarshal(raw, &exp); err != nil {
		return nil, fmt.Errorf("cache decode: %w", err)
	}
	return &exp, nil
}

// Set stores the explanation and registers its fingerprint in both index
// sets. Index TTL trails the entry TTL so indexes never outlive entries by
// much, and never expire before them.
func (s *RedisStore) Set(ctx context.Context, fingerprint string, orgID, annID uuid.UUID, exp *models.Explanation) error {
	raw, err := json.Marshal(exp)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, entryKey(fingerprint), raw, s.ttl)
	pipe.SAdd(ctx, orgIndexKey(orgID), fingerprint)
	pipe.Expire(ctx, orgIndexKey(orgID), s.ttl+time.Hour)
	pipe.SAdd(ctx, annIndexKey(annID), fingerprint)
	pipe.Expire(ctx, annIndexKey(annID), s.ttl+time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// InvalidateOrganization deletes every cached fingerprint for the
// organization. Other organizations' entries are untouched.
func (s *RedisStore) InvalidateOrganization(ctx context.Context, orgID uuid.UUID) (int, error) {
	return s.invalidateIndex(ctx, orgIndexKey(orgID))
}

// InvalidateAnnouncement deletes every cached fingerprint referencing the
// announcement, platform-wide.
func (s *RedisStore) InvalidateAnnouncement(ctx context.Context, annID uuid.UUID) (int, error) {
	return s.invalidateIndex(ctx, annIndexKey(annID))
}

func (s *RedisStore) invalidateIndex(ctx context.Context, indexKey string) (int, error) {
	fps, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("index read: %w", err)
	}
	if len(fps) == 0 {
		return 0, nil
	}
	keys := make([]string, 0, len(fps)+1)
	for _, fp := range fps {
		keys = append(keys, entryKey(fp))
	}
	keys = append(keys, indexKey)
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return 0, fmt.Errorf("cache delete: %w", err)
	}
	return len(fps), nil
}
