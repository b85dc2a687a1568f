package store

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

const (
	hashBucket   = "hashes"
	stringBucket = "strings"
)

// BoltClient is a single-node HashClient. Each hash is a nested bucket under
// "hashes"; plain values live in "strings".
type BoltClient struct {
	db *bbolt.DB
}

// OpenBolt opens (or creates) the database file at path.
func OpenBolt(p string) (*BoltClient, error) {
	if strings.TrimSpace(p) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	db, err := bbolt.Open(filepath.Clean(p), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	c := &BoltClient{db: db}
	if err := c.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func (c *BoltClient) ensureBuckets() error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{hashBucket, stringBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}

func (c *BoltClient) HGet(ctx context.Context, key, field string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var value string
	err := c.db.View(func(tx *bbolt.Tx) error {
		h := tx.Bucket([]byte(hashBucket)).Bucket([]byte(key))
		if h == nil {
			return ErrNotFound
		}
		v := h.Get([]byte(field))
		if v == nil {
			return ErrNotFound
		}
		value = string(v)
		return nil
	})
	return value, err
}

func (c *BoltClient) HSet(ctx context.Context, key string, fields map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		h, err := tx.Bucket([]byte(hashBucket)).CreateBucketIfNotExists([]byte(key))
		if err != nil {
			return fmt.Errorf("create hash %s: %w", key, err)
		}
		for k, v := range fields {
			if err := h.Put([]byte(k), []byte(v)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *BoltClient) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := map[string]string{}
	err := c.db.View(func(tx *bbolt.Tx) error {
		h := tx.Bucket([]byte(hashBucket)).Bucket([]byte(key))
		if h == nil {
			return nil
		}
		return h.ForEach(func(k, v []byte) error {
			out[string(k)] = string(v)
			return nil
		})
	})
	return out, err
}

func (c *BoltClient) HDel(ctx context.Context, key string, fields ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		hashes := tx.Bucket([]byte(hashBucket))
		h := hashes.Bucket([]byte(key))
		if h == nil {
			return nil
		}
		for _, f := range fields {
			if err := h.Delete([]byte(f)); err != nil {
				return err
			}
		}
		// redis drops a hash with no fields left
		if k, _ := h.Cursor().First(); k == nil {
			return hashes.DeleteBucket([]byte(key))
		}
		return nil
	})
}

func (c *BoltClient) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var value string
	err := c.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(stringBucket)).Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		value = string(v)
		return nil
	})
	return value, err
}

func (c *BoltClient) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(stringBucket)).Put([]byte(key), []byte(value))
	})
}

func (c *BoltClient) Del(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		hashes := tx.Bucket([]byte(hashBucket))
		strs := tx.Bucket([]byte(stringBucket))
		for _, key := range keys {
			if hashes.Bucket([]byte(key)) != nil {
				if err := hashes.DeleteBucket([]byte(key)); err != nil {
					return err
				}
			}
			if err := strs.Delete([]byte(key)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Keys matches with path.Match, which agrees with redis glob syntax for the
// '*' and '?' patterns the repository uses.
func (c *BoltClient) Keys(ctx context.Context, pattern string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("bad key pattern %q: %w", pattern, err)
	}

	var keys []string
	collect := func(k []byte) {
		if ok, _ := path.Match(pattern, string(k)); ok {
			keys = append(keys, string(k))
		}
	}
	err := c.db.View(func(tx *bbolt.Tx) error {
		if err := tx.Bucket([]byte(hashBucket)).ForEach(func(k, _ []byte) error {
			collect(k)
			return nil
		}); err != nil {
			return err
		}
		return tx.Bucket([]byte(stringBucket)).ForEach(func(k, _ []byte) error {
			collect(k)
			return nil
		})
	})
	return keys, err
}

func (c *BoltClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}
