package cli

import (
	"context"
	"fmt"

	"bahasa-quiz-service/internal/catalog"
	"bahasa-quiz-service/internal/config"
	"bahasa-quiz-service/internal/domain"
	"bahasa-quiz-service/internal/infra/postgres"
	infraredis "bahasa-quiz-service/internal/infra/redis"
	"bahasa-quiz-service/internal/logger"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewSeedCmd migrates the database and upserts the bundled question catalog.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the bundled question catalog into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg)
			if err != nil {
				return err
			}
			defer log.Sync()

			if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
				return err
			}
			sets, err := catalog.Load()
			if err != nil {
				return err
			}

			db, err := openBunDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := postgres.NewQuestionWriter(db).SaveSets(ctx, sets)
			if err != nil {
				return err
			}
			log.Info("question catalog seeded", zap.Int("sets", n))

			if cfg.Redis.Addr == "" {
				return nil
			}
			client := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			defer client.Close()
			if err := invalidateCachedSets(ctx, infraredis.NewQuestionRepository(client, nil, 0), sets); err != nil {
				return err
			}
			log.Info("question cache invalidated", zap.Int("sets", len(sets)))
			return nil
		},
	}
}

type questionCache interface {
	Invalidate(ctx context.Context, key domain.SetKey) error
}

// invalidateCachedSets drops cached copies of the seeded sets, including
// empty results cached before the seed ran.
func invalidateCachedSets(ctx context.Context, cache questionCache, sets map[domain.SetKey][]domain.Question) error {
	for key := range sets {
		if err := cache.Invalidate(ctx, key); err != nil {
			return fmt.Errorf("invalidate %s: %w", key, err)
		}
	}
	return nil
}
