package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ashirxD/Hospital-App-sub000/internal/config"
	"github.com/ashirxD/Hospital-App-sub000/internal/domain/chat"
	"github.com/ashirxD/Hospital-App-sub000/internal/domain/identity"
	"github.com/ashirxD/Hospital-App-sub000/internal/domain/notification"
	"github.com/ashirxD/Hospital-App-sub000/internal/domain/scheduling"
	"github.com/ashirxD/Hospital-App-sub000/internal/platform/db"
	"github.com/ashirxD/Hospital-App-sub000/internal/platform/health"
	"github.com/ashirxD/Hospital-App-sub000/internal/platform/mongostore"
	"github.com/ashirxD/Hospital-App-sub000/migrations"
)

type txRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// stores holds one backend's repositories. Both backends expose the same
// interfaces, so the services never know which one is running.
type stores struct {
	users         identity.UserRepository
	appointments  scheduling.AppointmentRepository
	reviews       scheduling.ReviewRepository
	groups        chat.GroupRepository
	messages      chat.MessageRepository
	notifications notification.Repository
	tx            txRunner
	health        health.Check
	close         func()
}

func openStores(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*stores, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		return openPostgres(ctx, cfg, logger)
	case config.StoreMongo:
		return openMongo(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func openPostgres(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*stores, error) {
	pool, err := db.NewPool(ctx, db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
	if err != nil {
		return nil, err
	}
	applied, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	logger.Info().Int("applied", applied).Msg("connected to postgres")

	return &stores{
		users:         identity.NewUserRepoPG(pool),
		appointments:  scheduling.NewAppointmentRepoPG(pool),
		reviews:       scheduling.NewReviewRepoPG(pool),
		groups:        chat.NewGroupRepoPG(pool),
		messages:      chat.NewMessageRepoPG(pool),
		notifications: notification.NewRepoPG(pool),
		tx:            db.NewTxManager(pool),
		health:        db.HealthCheck(pool),
		close:         pool.Close,
	}, nil
}

func openMongo(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*stores, error) {
	client, err := mongostore.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return nil, err
	}
	database := client.Database(cfg.MongoDatabase)
	if err := mongostore.EnsureIndexes(ctx, database); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}
	logger.Info().Str("database", cfg.MongoDatabase).Msg("connected to mongo")

	return &stores{
		users:         identity.NewUserRepoMongo(database),
		appointments:  scheduling.NewAppointmentRepoMongo(database),
		reviews:       scheduling.NewReviewRepoMongo(database),
		groups:        chat.NewGroupRepoMongo(database),
		messages:      chat.NewMessageRepoMongo(database),
		notifications: notification.NewRepoMongo(database),
		tx:            mongostore.NewTxManager(client),
		health:        mongostore.HealthCheck(client),
		close: func() {
			if err := client.Disconnect(context.Background()); err != nil {
				logger.Warn().Err(err).Msg("mongo disconnect")
			}
		},
	}, nil
}
