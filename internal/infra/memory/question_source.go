package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"trivia-service/internal/domain"
)

// QuestionLoader fetches a category's question pool from a backing store.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, category string) ([]domain.Question, error)
}

// QuestionSource caches category pools with TTL to avoid repeated loads.
type QuestionSource struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedPool
}

type cachedPool struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionSource(loader QuestionLoader, ttl time.Duration) *QuestionSource {
	return &QuestionSource{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedPool),
	}
}

func (s *QuestionSource) LoadQuestions(ctx context.Context, category string) ([]domain.Question, error) {
	now := s.clock()

	s.mu.RLock()
	if entry, ok := s.cache[category]; ok && entry.expiresAt.After(now) {
		s.mu.RUnlock()
		return entry.questions, nil
	}
	s.mu.RUnlock()

	result, err, _ := s.sf.Do(category, func() (interface{}, error) {
		now := s.clock()
		s.mu.RLock()
		if entry, ok := s.cache[category]; ok && entry.expiresAt.After(now) {
			s.mu.RUnlock()
			return entry.questions, nil
		}
		s.mu.RUnlock()

		pool, err := s.loader.LoadQuestions(ctx, category)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.cache[category] = cachedPool{
			questions: pool,
			expiresAt: now.Add(s.ttlWithJitter()),
		}
		s.mu.Unlock()
		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (s *QuestionSource) ttlWithJitter() time.Duration {
	if s.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(s.ttl) / 10
	return s.ttl + time.Duration(s.rnd.Int63n(jitterMax+1))
}

// StaticQuestionLoader serves pools from an in-memory map (tests/demos and
// the no-database fallback).
type StaticQuestionLoader struct {
	pools map[string][]domain.Question
}

func NewStaticQuestionLoader(pools map[string][]domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{pools: pools}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context, category string) ([]domain.Question, error) {
	if pool, ok := l.pools[category]; ok {
		return pool, nil
	}
	return nil, domain.ErrCategoryNotFound
}
