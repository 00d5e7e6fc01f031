package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/loam"
	goredis "github.com/redis/go-redis/v9"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/config"
	"github.com/aretw0/arbor/internal/telemetry"
	"github.com/aretw0/arbor/pkg/adapters/file"
	loamAdapter "github.com/aretw0/arbor/pkg/adapters/loam"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/adapters/redis"
	"github.com/aretw0/arbor/pkg/adapters/sqlite"
	"github.com/aretw0/arbor/pkg/persistence/middleware"
	"github.com/aretw0/arbor/pkg/ports"
)

// Stack is an engine together with the resources it was built from.
type Stack struct {
	Engine  *arbor.Engine
	Metrics *telemetry.Metrics
	Config  *config.Config

	closers []func() error
}

// Close releases backend connections in reverse order of creation.
func (s *Stack) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}

// NewEngine builds an engine from the configured storage backends.
func NewEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Stack, error) {
	st := &Stack{Config: cfg, Metrics: telemetry.New()}

	var (
		rdb *goredis.Client
		db  *sqlite.DB
	)
	redisClient := func() *goredis.Client {
		if rdb == nil {
			rdb = redis.Dial(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
			st.closers = append(st.closers, rdb.Close)
		}
		return rdb
	}
	sqliteDB := func() (*sqlite.DB, error) {
		if db == nil {
			var err error
			if db, err = sqlite.Open(ctx, cfg.SQLite.Path); err != nil {
				return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLite.Path, err)
			}
			st.closers = append(st.closers, db.Close)
		}
		return db, nil
	}

	repo, err := contentRepository(cfg, redisClient, sqliteDB)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	store, err := progressStore(cfg, redisClient, sqliteDB)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	store, err = secureStore(store, cfg.Security)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	opts := []arbor.Option{
		arbor.WithRepository(repo),
		arbor.WithProgressStore(store),
		arbor.WithLogger(logger),
		arbor.WithPlaybackHooks(st.Metrics.Hooks()),
		arbor.WithPacing(cfg.Reading.Pacing()),
		arbor.WithHistoryCap(cfg.Reading.HistoryCap),
		arbor.WithQuietPeriod(cfg.Authoring.QuietPeriod),
	}
	if cfg.Redis.Lock {
		opts = append(opts, arbor.WithLocker(redis.NewLocker(redisClient(), cfg.Redis.Prefix)))
	}

	eng, err := arbor.New(cfg.Library, opts...)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	st.Engine = eng
	logger.Debug("Engine ready",
		"content", cfg.Storage.Content,
		"progress", cfg.Storage.Progress,
		"encrypted", cfg.Security.ProgressKey != "",
	)
	return st, nil
}

func contentRepository(cfg *config.Config, rdb func() *goredis.Client, db func() (*sqlite.DB, error)) (ports.ContentRepository, error) {
	switch cfg.Storage.Content {
	case config.BackendMemory:
		return memory.NewRepository(), nil
	case config.BackendFile:
		return file.NewRepository(cfg.Library), nil
	case config.BackendLoam:
		abs, err := filepath.Abs(cfg.Library)
		if err != nil {
			return nil, fmt.Errorf("invalid library path: %w", err)
		}
		return loamAdapter.Open(abs, loam.WithVersioning(false))
	case config.BackendRedis:
		return redis.NewRepository(rdb(), redis.WithPrefix(cfg.Redis.Prefix)), nil
	case config.BackendSQLite:
		d, err := db()
		if err != nil {
			return nil, err
		}
		return d.Repository(), nil
	}
	return nil, fmt.Errorf("unknown content backend %q", cfg.Storage.Content)
}

func progressStore(cfg *config.Config, rdb func() *goredis.Client, db func() (*sqlite.DB, error)) (ports.ProgressStore, error) {
	switch cfg.Storage.Progress {
	case config.BackendMemory:
		return memory.NewStore(), nil
	case config.BackendFile:
		return file.NewStore(cfg.Storage.SessionsDir), nil
	case config.BackendRedis:
		return redis.NewStore(rdb(),
			redis.WithPrefix(cfg.Redis.Prefix),
			redis.WithTTL(cfg.Redis.TTL),
		), nil
	case config.BackendSQLite:
		d, err := db()
		if err != nil {
			return nil, err
		}
		return d.ProgressStore(), nil
	}
	return nil, fmt.Errorf("unknown progress backend %q", cfg.Storage.Progress)
}

// secureStore masks configured variables, then encrypts what remains.
func secureStore(store ports.ProgressStore, sec config.SecurityConfig) (ports.ProgressStore, error) {
	var mws []middleware.Middleware
	if len(sec.MaskVariables) > 0 {
		mws = append(mws, middleware.NewPIIMiddleware(sec.MaskVariables))
	}
	active, fallback, err := sec.Keys()
	if err != nil {
		return nil, err
	}
	if active != nil {
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallback,
		}))
	}
	return middleware.Chain(store, mws...), nil
}
