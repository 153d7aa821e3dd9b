package cli

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"g1-quiz-service/internal/app"
	"g1-quiz-service/internal/bank"
	"g1-quiz-service/internal/config"
	"g1-quiz-service/internal/logger"

	"g1-quiz-service/internal/infra/memory"
	redisinfra "g1-quiz-service/internal/infra/redis"
)

// NewSeedCmd populates the not-completed set from the embedded question
// bank. Without --force this is the idempotent startup seeding; with it the
// set is reset to the full bank unconditionally.
func NewSeedCmd(configPath *string) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the not-completed question set from the bank",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite the not-completed set with the full bank")
	return cmd
}

func runSeed(ctx context.Context, configPath string, force bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		return err
	}
	defer log.Sync()

	var store app.ProgressStore
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store = redisinfra.NewProgressStore(client)
	} else {
		// Without a Redis backend the seed only exists for this process;
		// still useful as a config smoke test.
		store = memory.NewProgressStore()
	}

	fullBank, err := bank.Load()
	if err != nil {
		return err
	}

	progress := app.NewProgress(store, log)
	if force {
		progress.ResetNotCompleted(ctx, fullBank)
		log.Info("reset not-completed to full bank", zap.Int("bank", len(fullBank)))
		return nil
	}
	progress.SeedNotCompleted(ctx, fullBank)
	return nil
}
