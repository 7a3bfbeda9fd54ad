package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"trivia-service/internal/app"
	"trivia-service/internal/config"
	"trivia-service/internal/domain"
	"trivia-service/internal/infra/memory"
	pginfra "trivia-service/internal/infra/postgres"
	redisinfra "trivia-service/internal/infra/redis"
	transport "trivia-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	var handler slog.Handler = slog.NewTextHandler(os.Stdout, nil)
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, nil)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.Duration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.QuestionLoader = memory.NewStaticQuestionLoader(sampleQuestions())
	if pool != nil {
		loader = pginfra.NewQuestionLoader(pool)
	}

	questionTTL := config.Duration(cfg.Questions.TTL, 10*time.Minute)
	var questions app.QuestionSource
	if redisClient != nil {
		questions = redisinfra.NewQuestionSource(redisClient, loader, questionTTL)
	} else {
		questions = memory.NewQuestionSource(loader, questionTTL)
	}

	var results []app.ResultsStore
	if pool != nil {
		results = append(results, pginfra.NewResultsStore(pool))
	}
	if redisClient != nil {
		results = append(results, redisinfra.NewResultsCache(redisClient, redisTTL))
	}

	service := app.NewService(app.Config{
		Store:     memory.NewLobbyStore(),
		Questions: questions,
		Results:   fanout(results),
		Game: app.GameConfig{
			QuestionsPerGame: cfg.Game.QuestionsPerGame,
			StartDelay:       config.Duration(cfg.Game.StartDelay, 0),
			QuestionDelay:    config.Duration(cfg.Game.QuestionDelay, 0),
			GracePeriod:      config.Duration(cfg.Game.GracePeriod, 0),
			FinishedLinger:   config.Duration(cfg.Game.FinishedLinger, 0),
		},
		Logger: logger,
	})
	defer service.Close()

	wsHandler := transport.NewWSHandler(service, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting trivia service", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// multiResults fans a summary out to every configured results sink.
type multiResults []app.ResultsStore

func (m multiResults) SaveResult(ctx context.Context, summary domain.GameSummary) error {
	var firstErr error
	for _, store := range m {
		if err := store.SaveResult(ctx, summary); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func fanout(stores []app.ResultsStore) app.ResultsStore {
	switch len(stores) {
	case 0:
		return nil
	case 1:
		return stores[0]
	default:
		return multiResults(stores)
	}
}

// sampleQuestions provides built-in categories for running without a
// database; swap in the postgres loader for real content.
func sampleQuestions() map[string][]domain.Question {
	return map[string][]domain.Question{
		"Science": {
			{
				Text:             "What planet is known as the Red Planet?",
				Options:          []string{"Venus", "Mars", "Jupiter", "Mercury"},
				Answer:           "Mars",
				TimeLimitSeconds: 10,
			},
			{
				Text:             "What gas do plants absorb from the atmosphere?",
				Options:          []string{"Oxygen", "Nitrogen", "Carbon dioxide", "Helium"},
				Answer:           "Carbon dioxide",
				TimeLimitSeconds: 10,
			},
			{
				Text:             "How many bones does an adult human have?",
				Options:          []string{"186", "206", "226", "246"},
				Answer:           "206",
				TimeLimitSeconds: 15,
			},
		},
		"History": {
			{
				Text:             "In which year did World War II end?",
				Options:          []string{"1943", "1944", "1945", "1946"},
				Answer:           "1945",
				TimeLimitSeconds: 10,
			},
			{
				Text:             "Who was the first president of the United States?",
				Options:          []string{"Thomas Jefferson", "John Adams", "George Washington", "James Madison"},
				Answer:           "George Washington",
				TimeLimitSeconds: 10,
			},
		},
	}
}
