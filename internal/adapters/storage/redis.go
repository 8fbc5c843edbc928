package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alejandrodnm/geobot/internal/domain"
)

const redisPrefix = "geobot:"

// unlockLua borra el lock solo si el valor es el token de quien lo tiene.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// RedisConfig son los parámetros de conexión.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore implementa ports.StateStore y ports.Locker sobre Redis.
type RedisStore struct {
	rdb    *redis.Client
	unlock *redis.Script
}

// NewRedisStore conecta y hace ping.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("storage.NewRedisStore: ping %s: %w", cfg.Addr, err)
	}
	return &RedisStore{rdb: rdb, unlock: redis.NewScript(unlockLua)}, nil
}

func stateKey(key string) string { return redisPrefix + "state:" + key }
func lockKey(name string) string  { return redisPrefix + "lock:" + name }

// Load devuelve el documento de la clave.
func (s *RedisStore) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := s.rdb.Get(ctx, stateKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("storage.RedisStore.Load %s: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage.RedisStore.Load %s: %w", key, err)
	}
	return data, nil
}

// Save copia el valor actual a <key>:bak y escribe el nuevo, en una transacción.
func (s *RedisStore) Save(ctx context.Context, key string, data []byte) error {
	k := stateKey(key)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Copy(ctx, k, k+":bak", 0, true)
		pipe.Set(ctx, k, data, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("storage.RedisStore.Save %s: %w", key, err)
	}
	return nil
}

// Acquire toma un lock distribuido con SETNX + TTL. Devuelve
// domain.ErrLockHeld si otro proceso lo tiene.
func (s *RedisStore) Acquire(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, error) {
	token := uuid.New().String()
	lk := lockKey(name)

	ok, err := s.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("storage.RedisStore.Acquire %s: %w", name, err)
	}
	if !ok {
		return nil, fmt.Errorf("storage.RedisStore.Acquire %s: %w", name, domain.ErrLockHeld)
	}

	released := false
	return func(ctx context.Context) error {
		if released {
			return nil
		}
		released = true
		if err := s.unlock.Run(ctx, s.rdb, []string{lk}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("storage.RedisStore.release %s: %w", name, err)
		}
		return nil
	}, nil
}

// Close cierra la conexión.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
