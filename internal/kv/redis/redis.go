// Package redis implementa kv.Store sobre Redis (go-redis v9).
package redis

import (
	"context"
	"errors"
	"time"

	rdb "github.com/redis/go-redis/v9"

	"github.com/statusmvp/wallet-auth/internal/kv"
)

type Store struct {
	c *rdb.Client
}

// Options configura la conexión.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// New crea un Store conectado a Redis. No hace ping; usar Ping() en el arranque.
func New(opts Options) *Store {
	return &Store{c: rdb.NewClient(&rdb.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})}
}

// NewFromClient envuelve un cliente existente (tests de integración).
func NewFromClient(c *rdb.Client) *Store {
	return &Store{c: c}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, rdb.Nil) {
			return nil, kv.ErrNotFound
		}
		return nil, kv.Unavailable(err)
	}
	return b, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.c.Set(ctx, key, value, ttl).Err(); err != nil {
		return kv.Unavailable(err)
	}
	return nil
}

func (s *Store) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ok, err := s.c.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, kv.Unavailable(err)
	}
	return ok, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.c.Del(ctx, key).Err(); err != nil {
		return kv.Unavailable(err)
	}
	return nil
}

func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	n, err := s.c.Incr(ctx, key).Result()
	if err != nil {
		return 0, kv.Unavailable(err)
	}
	return n, nil
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.c.Expire(ctx, key, ttl).Err(); err != nil {
		return kv.Unavailable(err)
	}
	return nil
}

func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.c.TTL(ctx, key).Result()
	if err != nil {
		return 0, kv.Unavailable(err)
	}
	// go-redis: -2 key inexistente, -1 sin expiración (valores crudos del comando TTL)
	switch {
	case d == -2 || d == -2*time.Second:
		return 0, kv.ErrNotFound
	case d < 0:
		return 0, nil
	default:
		return d, nil
	}
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.c.Ping(ctx).Err(); err != nil {
		return kv.Unavailable(err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.c.Close()
}
