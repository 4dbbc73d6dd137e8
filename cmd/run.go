package cmd

import (
	"context"
	"fmt"
	"time"

	"herald/bot"
	"herald/config"
	"herald/database"
	"herald/models"
	"herald/observability"
	"herald/repository"

	log "github.com/sirupsen/logrus"
)

var _ bot.Store = (*repository.Store)(nil)

// Run initializes and starts the application
func Run(ctx context.Context) error {
	cfg := config.Get()

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	log.SetLevel(level)

	log.WithFields(log.Fields{
		"environment": cfg.Environment,
		"shard_id":    cfg.ShardID,
		"shard_count": cfg.ShardCount,
	}).Info("Starting herald...")

	metrics := observability.NewMetricsProvider(cfg)
	if err := metrics.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("Database connection established successfully")

	store := repository.NewStore(db, repository.Options{
		Defaults:   models.NewDefaults(cfg.Prefix),
		ShardID:    cfg.ShardID,
		ShardCount: cfg.ShardCount,
		Logger:     log.StandardLogger(),
		Metrics:    metrics,
	})

	if err := store.CreateSchema(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}

	log.Info("Initializing Discord bot...")
	discordBot, err := bot.New(bot.Config{
		Token:      cfg.DiscordToken,
		ShardID:    cfg.ShardID,
		ShardCount: cfg.ShardCount,
	}, store)
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to initialize Discord bot: %w", err)
	}
	log.Info("Discord bot initialized successfully")

	<-ctx.Done()

	log.Info("Shutting down...")

	if err := discordBot.Close(); err != nil {
		log.WithError(err).Error("Error closing Discord bot")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := metrics.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Error shutting down metrics")
	}

	log.Info("Closing database connection...")
	db.Close()

	log.Info("Shutdown completed")
	return nil
}
