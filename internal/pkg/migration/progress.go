package migration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/helioscale/billmigrate/internal/pkg/cache"
	"github.com/helioscale/billmigrate/internal/pkg/env"
)

// defaultProgressTTL is the sliding inactivity window after which progress
// entries expire. Every read and write pushes the window out again.
const defaultProgressTTL = 72 * time.Hour

// ProviderProgress is the persisted checkpoint snapshot of a provider saga.
// OrganizationIDs lists the clients the saga enumerated so a later status
// query can find their per-client entries.
type ProviderProgress struct {
	ProviderID      uint               `json:"provider_id"`
	Checkpoint      ProviderCheckpoint `json:"checkpoint"`
	OrganizationIDs []uint             `json:"organization_ids,omitempty"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// ClientProgress is the persisted checkpoint snapshot of a per-client saga.
type ClientProgress struct {
	ProviderID     uint             `json:"provider_id"`
	OrganizationID uint             `json:"organization_id"`
	Checkpoint     ClientCheckpoint `json:"checkpoint"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// ProgressStore is the externalized saga state machine: a TTL'd key-value
// store of checkpoint snapshots. It has no in-process state so a restart
// mid-migration never loses resumability. Absent entries are (nil, nil).
type ProgressStore interface {
	GetProvider(ctx context.Context, providerID uint) (*ProviderProgress, error)
	SetProvider(ctx context.Context, p *ProviderProgress) error
	GetClient(ctx context.Context, providerID, orgID uint) (*ClientProgress, error)
	SetClient(ctx context.Context, c *ClientProgress) error
}

type redisProgressStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisProgressStore creates a progress store on an existing Redis client.
func NewRedisProgressStore(rdb *redis.Client, ttl time.Duration) ProgressStore {
	if ttl <= 0 {
		ttl = defaultProgressTTL
	}
	return &redisProgressStore{rdb: rdb, ttl: ttl}
}

// NewProgressStoreFromEnv creates a progress store on the shared cache
// client. MIGRATION_PROGRESS_TTL_HOURS overrides the sliding window.
func NewProgressStoreFromEnv() ProgressStore {
	ttl := defaultProgressTTL
	if raw := env.GetEnv("MIGRATION_PROGRESS_TTL_HOURS", ""); raw != "" {
		if hours, err := strconv.Atoi(raw); err == nil && hours > 0 {
			ttl = time.Duration(hours) * time.Hour
		}
	}
	return NewRedisProgressStore(cache.GetClient(), ttl)
}

func providerProgressKey(providerID uint) string {
	return fmt.Sprintf("billing:migration:provider:%d", providerID)
}

func clientProgressKey(providerID, orgID uint) string {
	return fmt.Sprintf("billing:migration:client:%d:%d", providerID, orgID)
}

func (s *redisProgressStore) GetProvider(ctx context.Context, providerID uint) (*ProviderProgress, error) {
	var p ProviderProgress
	if ok, err := s.get(ctx, providerProgressKey(providerID), &p); err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

func (s *redisProgressStore) SetProvider(ctx context.Context, p *ProviderProgress) error {
	p.UpdatedAt = time.Now().UTC()
	return s.set(ctx, providerProgressKey(p.ProviderID), p)
}

func (s *redisProgressStore) GetClient(ctx context.Context, providerID, orgID uint) (*ClientProgress, error) {
	var c ClientProgress
	if ok, err := s.get(ctx, clientProgressKey(providerID, orgID), &c); err != nil || !ok {
		return nil, err
	}
	return &c, nil
}

func (s *redisProgressStore) SetClient(ctx context.Context, c *ClientProgress) error {
	c.UpdatedAt = time.Now().UTC()
	return s.set(ctx, clientProgressKey(c.ProviderID, c.OrganizationID), c)
}

func (s *redisProgressStore) get(ctx context.Context, key string, out interface{}) (bool, error) {
	raw, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read progress %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("decode progress %s: %w", key, err)
	}
	// Reads slide the expiration window just like writes.
	if err := s.rdb.Expire(ctx, key, s.ttl).Err(); err != nil {
		return false, fmt.Errorf("refresh progress ttl %s: %w", key, err)
	}
	return true, nil
}

func (s *redisProgressStore) set(ctx context.Context, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode progress %s: %w", key, err)
	}
	if err := s.rdb.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("write progress %s: %w", key, err)
	}
	return nil
}
