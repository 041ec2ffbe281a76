package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"academy-storefront/internal/repository"
)

var ErrNoData = errors.New("no session data")

// Store keeps raw session blobs by key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
}

const (
	authSuffix  = ":academy-auth"
	tokenSuffix = ":sb-auth-token"
)

func authKey(sid string) string  { return sid + authSuffix }
func tokenKey(sid string) string { return sid + tokenSuffix }

type dbStore struct {
	blobs repository.BlobRepository
}

// NewDBStore keeps sessions in the local database.
func NewDBStore(blobs repository.BlobRepository) Store {
	return &dbStore{blobs: blobs}
}

func (s *dbStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.blobs.Get(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoData
	}
	return value, err
}

func (s *dbStore) Put(ctx context.Context, key string, value []byte) error {
	return s.blobs.Put(ctx, key, value)
}

func (s *dbStore) Delete(ctx context.Context, keys ...string) error {
	return s.blobs.Delete(ctx, keys...)
}

type redisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore keeps sessions in redis. Every write renews the ttl.
func NewRedisStore(rdb *redis.Client, prefix string, ttl time.Duration) Store {
	return &redisStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *redisStore) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoData
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return value, nil
}

func (s *redisStore) Put(ctx context.Context, key string, value []byte) error {
	if err := s.rdb.Set(ctx, s.key(key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *redisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	if err := s.rdb.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
