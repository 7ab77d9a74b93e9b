// Package memory implementa kv.Store in-process sobre patrickmn/go-cache.
//
// Pensado para desarrollo y tests: Get/Set/SetIfAbsent/Incr son atómicos
// (go-cache serializa por ítem), pero Expire es read-modify-write y puede
// perder una actualización concurrente. Producción usa el backend redis.
package memory

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/statusmvp/wallet-auth/internal/kv"
)

type Store struct {
	c *gocache.Cache
}

// New crea un Store en memoria.
func New() *Store {
	return &Store{c: gocache.New(gocache.NoExpiration, time.Minute)}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s.c.Get(key)
	if !ok {
		return nil, kv.ErrNotFound
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, kv.ErrNotFound
	}
	return b, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.c.Set(key, value, normalizeTTL(ttl))
	return nil
}

func (s *Store) SetIfAbsent(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	err := s.c.Add(key, value, normalizeTTL(ttl))
	return err == nil, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.c.Delete(key)
	return nil
}

func (s *Store) Incr(_ context.Context, key string) (int64, error) {
	// Add pierde contra un Incr concurrente; IncrementInt64 es atómico después.
	_ = s.c.Add(key, int64(0), gocache.NoExpiration)
	return s.c.IncrementInt64(key, 1)
}

func (s *Store) Expire(_ context.Context, key string, ttl time.Duration) error {
	v, ok := s.c.Get(key)
	if !ok {
		return nil
	}
	s.c.Set(key, v, normalizeTTL(ttl))
	return nil
}

func (s *Store) TTL(_ context.Context, key string) (time.Duration, error) {
	_, exp, ok := s.c.GetWithExpiration(key)
	if !ok {
		return 0, kv.ErrNotFound
	}
	if exp.IsZero() {
		return 0, nil
	}
	d := time.Until(exp)
	if d < 0 {
		return 0, kv.ErrNotFound
	}
	return d, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func normalizeTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return gocache.NoExpiration
	}
	return ttl
}
