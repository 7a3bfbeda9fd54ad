package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"trivia-service/internal/domain"
)

// QuestionLoader fetches a category's question pool from a backing store
// (e.g., postgres).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, category string) ([]domain.Question, error)
}

// QuestionSource caches category pools in Redis as JSON values and falls
// back to a loader on cache miss. Pools are stored as:
// SET questions:{category} {json array} EX ttl
type QuestionSource struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionSource(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionSource {
	return &QuestionSource{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *QuestionSource) LoadQuestions(ctx context.Context, category string) ([]domain.Question, error) {
	key := s.key(category)

	if pool, ok := s.fromCache(ctx, key); ok {
		return pool, nil
	}

	result, err, _ := s.sf.Do(category, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if pool, ok := s.fromCache(ctx, key); ok {
			return pool, nil
		}

		pool, err := s.loader.LoadQuestions(ctx, category)
		if err != nil {
			return nil, err
		}

		if data, err := json.Marshal(pool); err == nil {
			_ = s.client.Set(ctx, key, data, s.ttlWithJitter()).Err()
		}
		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (s *QuestionSource) fromCache(ctx context.Context, key string) ([]domain.Question, bool) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil || len(data) == 0 {
		return nil, false
	}
	var pool []domain.Question
	if err := json.Unmarshal(data, &pool); err != nil {
		return nil, false
	}
	return pool, true
}

func (s *QuestionSource) key(category string) string {
	return "questions:" + category
}

func (s *QuestionSource) ttlWithJitter() time.Duration {
	if s.ttl <= 0 {
		return 0
	}
	jitterMax := int64(s.ttl) / 10
	return s.ttl + time.Duration(s.rnd.Int63n(jitterMax+1))
}
