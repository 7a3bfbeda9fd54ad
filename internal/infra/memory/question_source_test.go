package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"trivia-service/internal/domain"
)

type countingLoader struct {
	mu    sync.Mutex
	calls int
	pools map[string][]domain.Question
}

func (l *countingLoader) LoadQuestions(_ context.Context, category string) ([]domain.Question, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	if pool, ok := l.pools[category]; ok {
		return pool, nil
	}
	return nil, domain.ErrCategoryNotFound
}

func (l *countingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func sciencePool() []domain.Question {
	return []domain.Question{
		{Text: "q", Options: []string{"a", "b"}, Answer: "a", TimeLimitSeconds: 10},
	}
}

func TestQuestionSourceCachesByCategory(t *testing.T) {
	loader := &countingLoader{pools: map[string][]domain.Question{
		"Science": sciencePool(),
		"History": sciencePool(),
	}}
	source := NewQuestionSource(loader, time.Minute)
	ctx := context.Background()

	pool, err := source.LoadQuestions(ctx, "Science")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(pool) != 1 {
		t.Fatalf("pool size = %d, want 1", len(pool))
	}
	if got := loader.count(); got != 1 {
		t.Fatalf("loader calls = %d, want 1", got)
	}

	if _, err := source.LoadQuestions(ctx, "Science"); err != nil {
		t.Fatalf("cached load: %v", err)
	}
	if got := loader.count(); got != 1 {
		t.Fatalf("loader calls after cache hit = %d, want 1", got)
	}

	if _, err := source.LoadQuestions(ctx, "History"); err != nil {
		t.Fatalf("second category: %v", err)
	}
	if got := loader.count(); got != 2 {
		t.Fatalf("loader calls after second category = %d, want 2", got)
	}
}

func TestQuestionSourceExpiry(t *testing.T) {
	loader := &countingLoader{pools: map[string][]domain.Question{"Science": sciencePool()}}
	source := NewQuestionSource(loader, time.Minute)

	now := time.Now()
	source.clock = func() time.Time { return now }

	ctx := context.Background()
	if _, err := source.LoadQuestions(ctx, "Science"); err != nil {
		t.Fatalf("load: %v", err)
	}

	// Jitter stretches the TTL by at most 10%, so two minutes is past it.
	now = now.Add(2 * time.Minute)
	if _, err := source.LoadQuestions(ctx, "Science"); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := loader.count(); got != 2 {
		t.Fatalf("loader calls after expiry = %d, want 2", got)
	}
}

func TestQuestionSourceLoaderError(t *testing.T) {
	loader := &countingLoader{pools: nil}
	source := NewQuestionSource(loader, time.Minute)

	_, err := source.LoadQuestions(context.Background(), "Nope")
	if !errors.Is(err, domain.ErrCategoryNotFound) {
		t.Fatalf("err = %v, want ErrCategoryNotFound", err)
	}

	// Errors are not cached.
	source.LoadQuestions(context.Background(), "Nope")
	if got := loader.count(); got != 2 {
		t.Fatalf("loader calls = %d, want 2", got)
	}
}

func TestStaticQuestionLoader(t *testing.T) {
	loader := NewStaticQuestionLoader(map[string][]domain.Question{"Science": sciencePool()})

	pool, err := loader.LoadQuestions(context.Background(), "Science")
	if err != nil || len(pool) != 1 {
		t.Fatalf("load = (%d, %v)", len(pool), err)
	}
	if _, err := loader.LoadQuestions(context.Background(), "Nope"); !errors.Is(err, domain.ErrCategoryNotFound) {
		t.Fatalf("err = %v, want ErrCategoryNotFound", err)
	}
}
