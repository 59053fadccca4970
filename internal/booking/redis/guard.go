package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"startickets/internal/logger"
)

const defaultGuardTTL = 30 * time.Second

// releaseScript deletes the key only while it still holds our token, so a guard
// that expired and was re-acquired by another request is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Guard serializes checkout submissions per customer and event.
type Guard struct {
	Client *redis.Client
	TTL    time.Duration
	Logger *logger.Logger
}

func NewGuard(client *redis.Client, ttl time.Duration, log *logger.Logger) *Guard {
	if ttl <= 0 {
		ttl = defaultGuardTTL
	}
	return &Guard{Client: client, TTL: ttl, Logger: log}
}

func guardKey(customerID, eventID int64) string {
	return fmt.Sprintf("checkout_lock:%d:%d", customerID, eventID)
}

// Acquire returns ok=false when another checkout of the same customer for the
// same event holds the guard.
func (g *Guard) Acquire(ctx context.Context, customerID, eventID int64) (string, bool, error) {
	token := uuid.NewString()
	ok, err := g.Client.SetNX(ctx, guardKey(customerID, eventID), token, g.TTL).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquire checkout guard: %w", err)
	}
	if !ok {
		g.Logger.Info("REDIS", fmt.Sprintf("checkout already in progress for customer %d event %d", customerID, eventID))
	}
	return token, ok, nil
}

func (g *Guard) Release(ctx context.Context, customerID, eventID int64, token string) error {
	if err := releaseScript.Run(ctx, g.Client, []string{guardKey(customerID, eventID)}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release checkout guard: %w", err)
	}
	return nil
}
