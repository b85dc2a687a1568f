package store

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

// HashClient is the subset of a redis-style hash store the session
// repository relies on. Missing keys and fields return ErrNotFound, except
// HGetAll which returns an empty map.
type HashClient interface {
	HGet(ctx context.Context, key, field string) (string, error)
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) error
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Del(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
	Close() error
}
