package repository

import (
	"context"
	"fmt"

	"herald/database"
	"herald/models"
	"herald/observability"

	log "github.com/sirupsen/logrus"
)

// Options configures a Store
type Options struct {
	Defaults   models.Defaults
	ShardID    int
	ShardCount int
	Logger     log.FieldLogger
	Metrics    *observability.MetricsProvider
}

// Store is the settings and permissions store: one pool shared by the
// channel registry, settings, notification and permission repositories.
type Store struct {
	*ChannelRepository
	*SettingsRepository
	*NotificationRepository
	*PermissionRepository

	db       *database.DB
	defaults models.Defaults
	metrics  *observability.MetricsProvider
}

// NewStore creates a store over db. A zero ShardCount means a single shard;
// a nil Logger uses the standard logrus logger.
func NewStore(db *database.DB, opts Options) *Store {
	if opts.ShardCount < 1 {
		opts.ShardCount = 1
	}
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	if opts.Defaults == (models.Defaults{}) {
		opts.Defaults = models.NewDefaults("")
	}

	channels := newChannelRepository(db.Pool, db, opts.Metrics, opts.Logger)

	return &Store{
		ChannelRepository:      channels,
		SettingsRepository:     newSettingsRepository(db.Pool, channels, opts.Defaults, opts.Metrics),
		NotificationRepository: newNotificationRepository(db.Pool, opts.Defaults.Platform, opts.ShardID, opts.ShardCount, opts.Metrics),
		PermissionRepository:   newPermissionRepository(db.Pool, opts.Metrics),
		db:                     db,
		defaults:               opts.Defaults,
		metrics:                opts.Metrics,
	}
}

// Defaults returns the values used for settings with no stored row
func (s *Store) Defaults() models.Defaults {
	return s.defaults
}

// CreateSchema creates every table, one statement at a time, dependencies
// first. The first failing statement stops the sequence.
func (s *Store) CreateSchema(ctx context.Context) (err error) {
	defer s.metrics.MeasureDatabaseQuery(ctx, "schema", "CreateSchema")(&err)

	statements, err := database.SchemaStatements()
	if err != nil {
		return err
	}

	for i, stmt := range statements {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema (statement %d of %d): %w", i+1, len(statements), err)
		}
	}

	return nil
}
