// Package bootstrap opens the adapters selected by configuration.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/oksasatya/rxcheck-identity/config"
	"github.com/oksasatya/rxcheck-identity/internal/domain/port"
	"github.com/oksasatya/rxcheck-identity/internal/domain/repository"
	"github.com/oksasatya/rxcheck-identity/internal/infrastructure/memory"
	mongoinfra "github.com/oksasatya/rxcheck-identity/internal/infrastructure/mongo"
	"github.com/oksasatya/rxcheck-identity/internal/infrastructure/notification"
	pginfra "github.com/oksasatya/rxcheck-identity/internal/infrastructure/postgres"
	"github.com/oksasatya/rxcheck-identity/internal/infrastructure/search"
	"github.com/oksasatya/rxcheck-identity/internal/infrastructure/storage"
	"github.com/oksasatya/rxcheck-identity/pkg/helpers"
)

// Noop is returned as the close func of adapters holding no resources.
func Noop() {}

// OpenUserStore picks the repository named by USER_STORE.
func OpenUserStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (repository.UserRepository, func(), error) {
	switch cfg.UserStore {
	case "memory":
		logger.Warn("USER_STORE=memory; users are lost on restart")
		return memory.NewUserRepository(), Noop, nil

	case "mongo":
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(c)
		}
		repo := mongoinfra.NewUserRepository(client.Database(cfg.MongoDB).Collection("users"))
		if err := repo.EnsureIndexes(ctx); err != nil {
			closeFn()
			return nil, nil, err
		}
		return repo, closeFn, nil

	case "postgres", "":
		if cfg.RunMigrations {
			if err := pginfra.RunMigrations(cfg.PostgresDSN(), cfg.MigrationsDir, logger); err != nil {
				return nil, nil, fmt.Errorf("migrations: %w", err)
			}
		}
		pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), cfg.DBMaxConns, cfg.DBMinConns, cfg.DBMaxConnLife)
		if err != nil {
			return nil, nil, err
		}
		return pginfra.NewUserRepository(pool), pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown USER_STORE %q", cfg.UserStore)
	}
}

// OpenObjectStorage returns nil storage when STORAGE_DRIVER is empty, which
// disables avatar uploads.
func OpenObjectStorage(ctx context.Context, cfg *config.Config) (port.ObjectStorage, func(), error) {
	switch cfg.StorageDriver {
	case "":
		return nil, Noop, nil
	case "gcs":
		client, err := storage.NewGCSClient(ctx, cfg.GCSCredentialsJSONPath, cfg.GCSEndpoint)
		if err != nil {
			return nil, nil, err
		}
		return storage.NewGCSStore(client, cfg.GCSBucket), func() { _ = client.Close() }, nil
	case "s3":
		store, err := storage.NewS3Store(ctx, storage.S3Options{
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, Noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}
}

// OpenUserIndex returns nil when no Elasticsearch address is configured. A
// cluster that is down at startup is logged; indexing stays best-effort.
func OpenUserIndex(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (port.UserIndex, error) {
	addrs := cfg.ESAddrs()
	if len(addrs) == 0 {
		return nil, nil
	}
	es, err := search.NewClient(addrs, cfg.ElasticsearchUser, cfg.ElasticsearchPass)
	if err != nil {
		return nil, err
	}
	index := search.NewUserIndex(es, cfg.ESUsersIndex)
	if err := index.EnsureIndex(ctx); err != nil {
		logger.WithError(err).WithField("index", cfg.ESUsersIndex).Warn("ensure search index failed")
	}
	return index, nil
}

// OpenNotifier publishes notification jobs to RabbitMQ. A broker that cannot
// be reached at startup leaves notifications disabled.
func OpenNotifier(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (port.Notifier, func()) {
	if cfg.RabbitMQURL == "" {
		return nil, Noop
	}
	pub, err := helpers.NewRabbitPublisher(ctx, cfg.RabbitMQURL, cfg.RabbitMQQueue)
	if err != nil {
		logger.WithError(err).Warn("rabbitmq unavailable; notifications disabled")
		return nil, Noop
	}
	return notification.NewRabbitNotifier(pub, cfg.AppName, notification.BreakerSettings{}, logger), pub.Close
}
