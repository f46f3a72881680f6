package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	apperrors "github.com/freekieb7/go-drawer/internal/errors"
	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

// Service wraps a redis client with key prefixing and logging.
type Service struct {
	client redis.UniversalClient
	logger *slog.Logger
	prefix string
}

// Config holds Redis connection configuration
type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Prefix       string // Key prefix for namespacing
}

func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		PoolSize:     10,
		MinIdleConns: 3,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		Prefix:       "drawer:",
	}
}

// NewService connects to Redis and verifies the connection.
func NewService(ctx context.Context, config Config, logger *slog.Logger) (*Service, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		MaxRetries:   config.MaxRetries,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Error("Failed to connect to Redis", "error", err, "addr", config.Addr)
		_ = client.Close()
		return nil, apperrors.CacheUnavailableError("failed to connect to Redis", err)
	}

	logger.Info("Connected to Redis", "addr", config.Addr, "db", config.DB)
	return NewServiceFromClient(client, logger, config.Prefix), nil
}

// NewServiceFromClient wraps an existing client.
func NewServiceFromClient(client redis.UniversalClient, logger *slog.Logger, prefix string) *Service {
	return &Service{
		client: client,
		logger: logger,
		prefix: prefix,
	}
}

func (s *Service) buildKey(key string) string {
	return s.prefix + key
}

func (s *Service) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.buildKey(key), value, ttl).Err(); err != nil {
		s.logger.WarnContext(ctx, "Cache set failed", "key", key, "error", err)
		return err
	}
	return nil
}

func (s *Service) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, s.buildKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		s.logger.WarnContext(ctx, "Cache get failed", "key", key, "error", err)
		return nil, err
	}
	return val, nil
}

func (s *Service) Delete(ctx context.Context, keys ...string) error {
	full := make([]string, len(keys))
	for i, key := range keys {
		full[i] = s.buildKey(key)
	}
	if err := s.client.Del(ctx, full...).Err(); err != nil {
		s.logger.WarnContext(ctx, "Cache delete failed", "keys", keys, "error", err)
		return err
	}
	return nil
}

func (s *Service) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.buildKey(key)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

var setWithDependentScript = redis.NewScript(`
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
redis.call("PEXPIRE", KEYS[2], ARGV[2])
return 1
`)

// SetWithDependent sets key and moves the ttl of dependent, if present, to the
// same value in one step.
func (s *Service) SetWithDependent(ctx context.Context, key, dependent string, value []byte, ttl time.Duration) error {
	keys := []string{s.buildKey(key), s.buildKey(dependent)}
	if err := setWithDependentScript.Run(ctx, s.client, keys, value, ttl.Milliseconds()).Err(); err != nil {
		s.logger.WarnContext(ctx, "Cache dependent set failed", "key", key, "error", err)
		return err
	}
	return nil
}

// SetNX sets a key only if it doesn't exist (atomic operation for locking)
func (s *Service) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.buildKey(key), value, ttl).Result()
	if err != nil {
		s.logger.WarnContext(ctx, "Cache setnx failed", "key", key, "error", err)
		return false, err
	}
	return ok, nil
}

var setWithOwnerScript = redis.NewScript(`
local ttl = redis.call("PTTL", KEYS[1])
if ttl <= 0 then
	return 0
end
redis.call("SET", KEYS[2], ARGV[1], "PX", ttl)
return 1
`)

// SetWithOwner stores value under key with the remaining ttl of owner.
// It reports false without writing when owner does not exist.
func (s *Service) SetWithOwner(ctx context.Context, owner, key string, value []byte) (bool, error) {
	n, err := setWithOwnerScript.Run(ctx, s.client, []string{s.buildKey(owner), s.buildKey(key)}, value).Int()
	if err != nil {
		s.logger.WarnContext(ctx, "Cache owned set failed", "key", key, "error", err)
		return false, err
	}
	return n == 1, nil
}

var deleteIfEqualsScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// DeleteIfEquals removes key only while it still holds value.
func (s *Service) DeleteIfEquals(ctx context.Context, key string, value []byte) (bool, error) {
	n, err := deleteIfEqualsScript.Run(ctx, s.client, []string{s.buildKey(key)}, value).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Service) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Service) Close() error {
	return s.client.Close()
}
