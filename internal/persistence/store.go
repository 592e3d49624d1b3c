// Package persistence opens the repository backend selected by configuration.
package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/gym/internal/config"
	"example.com/gym/internal/domain"
	"example.com/gym/internal/persistence/memory"
	"example.com/gym/internal/persistence/mongostore"
	"example.com/gym/internal/persistence/postgres"
)

// Backend is the full set of repository contracts a driver provides.
type Backend interface {
	domain.AttendanceRepository
	domain.MemberRepository
	domain.SettingsRepository
	domain.RosterRepository
}

// Store bundles an opened backend with its shutdown hook.
type Store struct {
	Backend
	close func(context.Context) error
}

// Close releases the backend's connections.
func (s *Store) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx)
}

// Open connects to the backend named by cfg.StoreDriver and prepares its
// schema or indexes.
func Open(ctx context.Context, cfg config.Config) (*Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		client, err := mongostore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		backend := mongostore.NewStore(client.Database(cfg.MongoDatabase))
		if err := backend.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		return &Store{Backend: backend, close: client.Disconnect}, nil

	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		backend := postgres.NewRepository(pool)
		if err := backend.Migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return &Store{Backend: backend, close: func(context.Context) error {
			pool.Close()
			return nil
		}}, nil

	case config.DriverMemory:
		return &Store{Backend: memory.NewStore()}, nil

	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}
