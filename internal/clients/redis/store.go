package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/vibelist-backend/internal/platform/apierr"
	"github.com/yungbote/vibelist-backend/internal/platform/logger"
)

type Config struct {
	Addr        string        `koanf:"addr"`
	Password    string        `koanf:"password"`
	DB          int           `koanf:"db"`
	DialTimeout time.Duration `koanf:"dial_timeout"`
	OpTimeout   time.Duration `koanf:"op_timeout"`
}

// Store is a cache.Store over Redis. Every operation is bounded by the
// configured op timeout on top of the caller's context.
type Store struct {
	log       *logger.Logger
	rdb       *goredis.Client
	opTimeout time.Duration
}

// NewStore dials Redis and pings it once so a bad address fails at startup.
func NewStore(log *logger.Logger, cfg Config) (*Store, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	dial := cfg.DialTimeout
	if dial <= 0 {
		dial = 5 * time.Second
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dial,
	})

	ctx, cancel := context.WithTimeout(context.Background(), dial)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewStoreWithClient(log, rdb, cfg.OpTimeout), nil
}

func NewStoreWithClient(log *logger.Logger, rdb *goredis.Client, opTimeout time.Duration) *Store {
	if opTimeout <= 0 {
		opTimeout = 2 * time.Second
	}
	return &Store{
		log:       log.With("service", "RedisStore"),
		rdb:       rdb,
		opTimeout: opTimeout,
	}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	val, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: redis get %s: %v", apierr.ErrCacheUnavailable, key, err)
	}
	return val, true, nil
}

func (s *Store) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	if err := s.rdb.Set(ctx, key, val, ttl).Err(); err != nil {
		return fmt.Errorf("%w: redis set %s: %v", apierr.ErrCacheUnavailable, key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: redis del %s: %v", apierr.ErrCacheUnavailable, key, err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}
