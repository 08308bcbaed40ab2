package database

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	tierKeyPrefix     = "agent:position:tier:"
	cooldownKeyPrefix = "agent:cooldown:"
	stateTTL          = 7 * 24 * time.Hour
)

// RedisState mirrors per-position tier counters and per-agent cooldowns
// so a process restart does not repeat tier sells or lift an active
// cooldown. A nil client turns every call into a no-op; the in-memory
// state is then the only copy.
type RedisState struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedisState connects and pings; returns a disabled state when addr is empty
func NewRedisState(addr, password string, db int, logger zerolog.Logger) (*RedisState, error) {
	l := logger.With().Str("component", "redis").Logger()
	if addr == "" {
		return &RedisState{logger: l}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	l.Info().Str("addr", addr).Msg("connected to Redis")
	return &RedisState{client: client, logger: l}, nil
}

// Enabled reports whether a backing Redis connection exists
func (r *RedisState) Enabled() bool { return r != nil && r.client != nil }

// Close releases the connection
func (r *RedisState) Close() {
	if r.Enabled() {
		_ = r.client.Close()
	}
}

// TierCounter returns the mirrored tier counter for a position, 0 when absent
func (r *RedisState) TierCounter(ctx context.Context, positionID string) int {
	if !r.Enabled() {
		return 0
	}
	v, err := r.client.Get(ctx, tierKeyPrefix+positionID).Result()
	if err != nil {
		return 0
	}
	n, _ := strconv.Atoi(v)
	return n
}

// SetTierCounter mirrors the tier counter after a tier sell
func (r *RedisState) SetTierCounter(ctx context.Context, positionID string, counter int) {
	if !r.Enabled() {
		return
	}
	if err := r.client.Set(ctx, tierKeyPrefix+positionID, counter, stateTTL).Err(); err != nil {
		r.logger.Warn().Err(err).Str("position", positionID).Msg("tier counter mirror failed")
	}
}

// ClearTierCounter drops the mirror after a full close
func (r *RedisState) ClearTierCounter(ctx context.Context, positionID string) {
	if !r.Enabled() {
		return
	}
	if err := r.client.Del(ctx, tierKeyPrefix+positionID).Err(); err != nil {
		r.logger.Warn().Err(err).Str("position", positionID).Msg("tier counter clear failed")
	}
}

// CooldownCycles returns the mirrored loss-streak cooldown for an agent
func (r *RedisState) CooldownCycles(ctx context.Context, agentID string) int {
	if !r.Enabled() {
		return 0
	}
	v, err := r.client.Get(ctx, cooldownKeyPrefix+agentID).Result()
	if err != nil {
		return 0
	}
	n, _ := strconv.Atoi(v)
	return n
}

// SetCooldownCycles mirrors the remaining cooldown cycles, deleting the
// key once the cooldown expires
func (r *RedisState) SetCooldownCycles(ctx context.Context, agentID string, cycles int) {
	if !r.Enabled() {
		return
	}
	key := cooldownKeyPrefix + agentID
	var err error
	if cycles <= 0 {
		err = r.client.Del(ctx, key).Err()
	} else {
		err = r.client.Set(ctx, key, cycles, stateTTL).Err()
	}
	if err != nil {
		r.logger.Warn().Err(err).Str("agent", agentID).Msg("cooldown mirror failed")
	}
}
