package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"g1-quiz-service/internal/app"
	"g1-quiz-service/internal/bank"
	"g1-quiz-service/internal/config"
	"g1-quiz-service/internal/logger"

	"g1-quiz-service/internal/infra/memory"
	pgbank "g1-quiz-service/internal/infra/postgres"
	redisinfra "g1-quiz-service/internal/infra/redis"
	transport "g1-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
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

	log, err := logger.New(cfg.Env)
	if err != nil {
		return err
	}
	defer log.Sync()

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

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	staticBank, err := bank.Load()
	if err != nil {
		return err
	}

	var loader redisinfra.BankLoader = memory.NewStaticBankLoader(staticBank)
	if pool != nil {
		loader = pgbank.NewBankLoader(pool)
	}

	bankTTL := config.Duration(cfg.Quiz.BankTTL, 10*time.Minute)
	var bankRepo app.BankRepository
	if redisClient != nil {
		bankRepo = redisinfra.NewBankCache(redisClient, loader, bankTTL)
	} else {
		bankRepo = memory.NewBankCache(loader, bankTTL)
	}

	var store app.ProgressStore
	if redisClient != nil {
		store = redisinfra.NewProgressStore(redisClient)
	} else {
		store = memory.NewProgressStore()
	}
	progress := app.NewProgress(store, log)

	// One-time bank seeding of the not-completed set: no-op when already
	// populated, so restarts are safe.
	seedBank, err := bankRepo.Bank(ctx)
	if err != nil {
		return err
	}
	progress.SeedNotCompleted(ctx, seedBank)

	quizService := app.NewQuizService(progress, bankRepo, cfg.Quiz.FreshTestSize, log)
	answerDelay := config.Duration(cfg.Quiz.AnswerDelay, transport.DefaultAnswerDelay)
	wsHandler := transport.NewWSHandler(quizService, progress, answerDelay, log)
	apiHandler := transport.NewAPIHandler(progress, staticBank, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws/quiz", wsHandler.ServeQuiz)
	mux.HandleFunc("/ws/scoreboard", wsHandler.ServeScoreboard)
	apiHandler.Register(mux)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting quiz service", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
