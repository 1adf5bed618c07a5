package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/yungbote/studyhub-backend/internal/platform/apierr"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
	"github.com/yungbote/studyhub-backend/internal/platform/redisx"
)

var errQuotaExceeded = apierr.TooManyRequests("assistant_quota_exceeded", "daily assistant limit reached, try again tomorrow")

// AssistantQuota limits assistant requests per user per UTC day.
type AssistantQuota interface {
	// Take consumes one request and reports how many remain today.
	Take(ctx context.Context, userID uuid.UUID) (remaining int, err error)
}

type assistantQuota struct {
	log   *logger.Logger
	cache *redisx.Cache
	limit int
	now   Clock

	mu       sync.Mutex
	limiters map[uuid.UUID]*rate.Limiter
}

// NewAssistantQuota counts in Redis when the cache is enabled. Without Redis, or when
// Redis errors, each process keeps a token bucket per user refilling limit per day.
// A limit <= 0 disables the quota.
func NewAssistantQuota(baseLog *logger.Logger, cache *redisx.Cache, limit int, now Clock) AssistantQuota {
	return &assistantQuota{
		log:      baseLog.With("component", "AssistantQuota"),
		cache:    cache,
		limit:    limit,
		now:      orClock(now),
		limiters: map[uuid.UUID]*rate.Limiter{},
	}
}

func (q *assistantQuota) Take(ctx context.Context, userID uuid.UUID) (int, error) {
	if q.limit <= 0 {
		return -1, nil
	}
	if q.cache.Enabled() {
		now := q.now()
		key := q.cache.Key("quota", "assistant", userID.String(), now.Format("20060102"))
		n, err := q.cache.IncrWindow(ctx, key, 25*time.Hour)
		if err == nil {
			if n > int64(q.limit) {
				return 0, errQuotaExceeded
			}
			return q.limit - int(n), nil
		}
		q.log.Warn("Quota counter unavailable, using local limiter", "error", err)
	}
	return q.takeLocal(userID)
}

func (q *assistantQuota) takeLocal(userID uuid.UUID) (int, error) {
	q.mu.Lock()
	lim, ok := q.limiters[userID]
	if !ok {
		lim = rate.NewLimiter(rate.Every(24*time.Hour/time.Duration(q.limit)), q.limit)
		q.limiters[userID] = lim
	}
	q.mu.Unlock()

	now := q.now()
	if !lim.AllowN(now, 1) {
		return 0, errQuotaExceeded
	}
	return int(lim.TokensAt(now)), nil
}
