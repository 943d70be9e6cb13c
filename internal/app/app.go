// Package app builds the long-lived dependencies shared by the API server and
// tripctl from a loaded Config.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/incentive-trips/backend/internal/config"
	"github.com/incentive-trips/backend/internal/lock"
	"github.com/incentive-trips/backend/internal/repo"
)

// NewLogger returns a JSON slog logger at the named level. Unknown levels
// fall back to info.
func NewLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// Stores holds the trip and backup stores and whatever connections back them.
type Stores struct {
	Trips   repo.TripRepo
	Backups repo.BackupRepo

	// Pool is set when either store uses Postgres.
	Pool *pgxpool.Pool

	closers []func()
	mem     *repo.MemoryStore
}

// Close releases every connection opened by OpenStores or OpenTripStore,
// newest first.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// OpenStores connects the stores selected by cfg.Store and cfg.BackupStore.
// A memory trip store with a memory backup store share one MemoryStore so
// backups survive alongside their trips for the life of the process.
func OpenStores(ctx context.Context, cfg config.Config, log *slog.Logger) (*Stores, error) {
	s := &Stores{}
	if cfg.Store == config.StorePostgres || cfg.BackupStore == config.StorePostgres {
		if err := s.openPool(ctx, cfg, log); err != nil {
			return nil, fmt.Errorf("app.OpenStores: %w", err)
		}
	}
	if err := s.openTrips(cfg, log); err != nil {
		s.Close()
		return nil, fmt.Errorf("app.OpenStores: %w", err)
	}
	if err := s.openBackups(ctx, cfg, log); err != nil {
		s.Close()
		return nil, fmt.Errorf("app.OpenStores: %w", err)
	}
	return s, nil
}

// OpenTripStore connects only the trip store. Backups is left nil and the
// backup store is never dialled, so offline jobs that do not write backups
// do not depend on it being reachable.
func OpenTripStore(ctx context.Context, cfg config.Config, log *slog.Logger) (*Stores, error) {
	s := &Stores{}
	if cfg.Store == config.StorePostgres {
		if err := s.openPool(ctx, cfg, log); err != nil {
			return nil, fmt.Errorf("app.OpenTripStore: %w", err)
		}
	}
	if err := s.openTrips(cfg, log); err != nil {
		s.Close()
		return nil, fmt.Errorf("app.OpenTripStore: %w", err)
	}
	return s, nil
}

func (s *Stores) openPool(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	// pgxpool.New does not open connections immediately; the ping does.
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("create pool: %w", err)
	}
	s.closers = append(s.closers, pool.Close)
	if err := pool.Ping(ctx); err != nil {
		s.Close()
		return fmt.Errorf("ping database: %w", err)
	}
	s.Pool = pool
	log.Info("database connection established")
	return nil
}

func (s *Stores) openTrips(cfg config.Config, log *slog.Logger) error {
	switch cfg.Store {
	case config.StorePostgres:
		s.Trips = repo.NewTripRepo(s.Pool)
	case config.StoreMemory:
		s.mem = repo.NewMemoryStore()
		s.Trips = s.mem
		log.Warn("using in-memory trip store; data is lost on restart")
	default:
		return fmt.Errorf("unknown store %q", cfg.Store)
	}
	return nil
}

func (s *Stores) openBackups(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	switch cfg.BackupStore {
	case config.StorePostgres:
		s.Backups = repo.NewBackupRepo(s.Pool)
	case config.StoreMongo:
		client, err := repo.ConnectMongo(ctx, cfg.MongoURL)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, func() { _ = client.Disconnect(context.Background()) })
		coll := client.Database(cfg.MongoDatabase).Collection(repo.BackupCollection)
		if err := repo.EnsureBackupIndexes(ctx, coll); err != nil {
			return err
		}
		s.Backups = repo.NewMongoBackupRepo(coll)
		log.Info("mongo backup store connected", "database", cfg.MongoDatabase)
	case config.StoreMemory:
		if s.mem == nil {
			s.mem = repo.NewMemoryStore()
		}
		s.Backups = s.mem
	default:
		return fmt.Errorf("unknown backup store %q", cfg.BackupStore)
	}
	return nil
}

// NewLocker returns a Redis-backed lock when cfg.RedisURL is set, otherwise
// an in-process one. The returned func releases the Redis client.
func NewLocker(cfg config.Config, log *slog.Logger) (lock.Locker, func(), error) {
	if cfg.RedisURL == "" {
		log.Warn("REDIS_URL not set; per-trip locks are local to this process")
		return lock.NewLocalLocker(), func() {}, nil
	}
	l, err := lock.NewRedisLocker(cfg.RedisURL, cfg.LockTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("app.NewLocker: %w", err)
	}
	log.Info("redis lock connected", "ttl", cfg.LockTTL.String())
	return l, func() { _ = l.Close() }, nil
}
