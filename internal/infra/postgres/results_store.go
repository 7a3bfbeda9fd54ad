package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"trivia-service/internal/domain"
)

// ResultsStore persists final game summaries as JSONB rows for later
// statistics. The caller treats failures as best-effort.
type ResultsStore struct {
	pool *pgxpool.Pool
}

func NewResultsStore(pool *pgxpool.Pool) *ResultsStore {
	return &ResultsStore{pool: pool}
}

func (s *ResultsStore) SaveResult(ctx context.Context, summary domain.GameSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO game_results (code, category, data, created_at) VALUES ($1, $2, $3::jsonb, $4)`,
		summary.Code, summary.Category, string(data), summary.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("insert game result: %w", err)
	}
	return nil
}
