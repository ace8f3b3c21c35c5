package boost

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Deduplicator decides whether a click should be suppressed before any
// budget check runs. A suppressed click returns charged=false without
// touching the campaign.
type Deduplicator interface {
	Suppress(ctx context.Context, campaignID uuid.UUID, ip string) (bool, error)
}

// RedisDeduplicator suppresses repeat clicks from the same IP on the same
// campaign within a fixed window, via SET NX with TTL. First click wins the
// key; every later click inside the window is suppressed.
type RedisDeduplicator struct {
	client *redis.Client
	window time.Duration
}

func NewRedisDeduplicator(client *redis.Client, window time.Duration) *RedisDeduplicator {
	if window <= 0 {
		window = 10 * time.Minute
	}
	return &RedisDeduplicator{client: client, window: window}
}

func (d *RedisDeduplicator) Suppress(ctx context.Context, campaignID uuid.UUID, ip string) (bool, error) {
	if ip == "" {
		return false, nil
	}

	key := fmt.Sprintf("boost:click:%s:%s", campaignID, ip)
	set, err := d.client.SetNX(ctx, key, 1, d.window).Result()
	if err != nil {
		// Redis being down must not block charging; log and let it through
		log.Warn().Err(err).Str("campaign_id", campaignID.String()).Msg("click dedup unavailable")
		return false, nil
	}
	return !set, nil
}

// NoopDeduplicator never suppresses. Used when Redis is not configured.
type NoopDeduplicator struct{}

func (NoopDeduplicator) Suppress(ctx context.Context, campaignID uuid.UUID, ip string) (bool, error) {
	return false, nil
}
