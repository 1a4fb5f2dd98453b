package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"growthdash/internal/domain"
	"growthdash/pkg/logger"
	"growthdash/pkg/metrics"
)

const credentialKeyPrefix = "growthdash:credential:"

// CachedCredentialStore fronts a CredentialStore with Redis. A Redis failure
// falls through to the underlying store.
type CachedCredentialStore struct {
	next    domain.CredentialStore
	redis   *redis.Client
	ttl     time.Duration
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewCachedCredentialStore(next domain.CredentialStore, client *redis.Client, ttl time.Duration, logger *logger.Logger, metrics *metrics.Metrics) *CachedCredentialStore {
	return &CachedCredentialStore{
		next:    next,
		redis:   client,
		ttl:     ttl,
		logger:  logger,
		metrics: metrics,
	}
}

func (c *CachedCredentialStore) CredentialStatus(ctx context.Context, platform string) (*domain.CredentialStatus, error) {
	platform = domain.NormalizePlatform(platform)
	key := credentialKeyPrefix + platform
	log := c.logger.WithContext(ctx).WithField("platform", platform)

	raw, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var status domain.CredentialStatus
		if jsonErr := json.Unmarshal(raw, &status); jsonErr == nil {
			c.metrics.RecordCredentialCache("hit")
			return &status, nil
		}
		log.Warn("Discarding unreadable cached credential status")
		c.metrics.RecordCredentialCache("error")
	case errors.Is(err, redis.Nil):
		c.metrics.RecordCredentialCache("miss")
	default:
		log.WithError(err).Warn("Credential cache unavailable")
		c.metrics.RecordCredentialCache("error")
	}

	status, err := c.next.CredentialStatus(ctx, platform)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(status)
	if err == nil {
		err = c.redis.Set(ctx, key, payload, c.ttl).Err()
	}
	if err != nil {
		log.WithError(err).Warn("Failed to cache credential status")
	}
	return status, nil
}
