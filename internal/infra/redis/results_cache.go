package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"trivia-service/internal/domain"
)

// ResultsCache keeps the latest final standings per room code in Redis so
// clients can fetch them shortly after a lobby is torn down. Writes are
// best-effort; the lobby never waits on this.
type ResultsCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewResultsCache(client *redis.Client, ttl time.Duration) *ResultsCache {
	return &ResultsCache{client: client, ttl: ttl}
}

func (c *ResultsCache) SaveResult(ctx context.Context, summary domain.GameSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := c.client.Set(ctx, c.key(summary.Code), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache summary: %w", err)
	}
	return nil
}

// GetResult returns the cached summary for a room code, if present.
func (c *ResultsCache) GetResult(ctx context.Context, code string) (domain.GameSummary, bool, error) {
	data, err := c.client.Get(ctx, c.key(code)).Bytes()
	if err == redis.Nil {
		return domain.GameSummary{}, false, nil
	}
	if err != nil {
		return domain.GameSummary{}, false, fmt.Errorf("get summary: %w", err)
	}
	var summary domain.GameSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return domain.GameSummary{}, false, fmt.Errorf("unmarshal summary: %w", err)
	}
	return summary, true, nil
}

func (c *ResultsCache) key(code string) string {
	return "result:" + code
}
