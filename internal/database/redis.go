package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const (
	redisDocPrefix    = "vb:doc:"
	redisIndexKey     = "vb:paths"
	redisMaxTxRetries = 10
)

// RedisStore is a Store backed by Redis. Transactions use WATCH/MULTI/EXEC:
// every document read inside a transaction is watched, and the buffered writes
// are applied in one MULTI block that fails if any watched key changed.
// A sorted set of paths keeps List ordered without KEYS/SCAN.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore connects to addr and verifies the connection.
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &RedisStore{rdb: rdb}, nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Close() error { return s.rdb.Close() }

func docKey(path string) string { return redisDocPrefix + path }

// RunTransaction runs fn optimistically, retrying when a watched document
// was modified before commit.
func (s *RedisStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	for attempt := 0; attempt < redisMaxTxRetries; attempt++ {
		err := s.rdb.Watch(ctx, func(rtx *redis.Tx) error {
			tx := &redisTx{rtx: rtx}
			if err := fn(ctx, tx); err != nil {
				return err
			}
			if len(tx.ops) == 0 {
				return nil
			}
			_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for _, op := range tx.ops {
					op(ctx, pipe)
				}
				return nil
			})
			return err
		})
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("redis transaction aborted after %d attempts: %w", redisMaxTxRetries, redis.TxFailedErr)
}

func (s *RedisStore) Get(ctx context.Context, path string) ([]byte, error) {
	data, err := s.rdb.Get(ctx, docKey(path)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return data, nil
}

func (s *RedisStore) List(ctx context.Context, prefix string) ([]Document, error) {
	paths, err := s.rdb.ZRangeByLex(ctx, redisIndexKey, &redis.ZRangeBy{
		Min: "[" + prefix,
		Max: "[" + prefix + "\xff",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list document paths: %w", err)
	}
	if len(paths) == 0 {
		return nil, nil
	}

	keys := make([]string, len(paths))
	for i, p := range paths {
		keys[i] = docKey(p)
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read documents: %w", err)
	}

	docs := make([]Document, 0, len(paths))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			continue // deleted between the index read and MGET
		}
		docs = append(docs, Document{Path: paths[i], Data: []byte(str)})
	}
	return docs, nil
}

type redisTx struct {
	rtx *redis.Tx
	ops []func(ctx context.Context, pipe redis.Pipeliner)
}

func (t *redisTx) Get(ctx context.Context, path string) ([]byte, bool, error) {
	key := docKey(path)
	if err := t.rtx.Watch(ctx, key).Err(); err != nil {
		return nil, false, fmt.Errorf("failed to watch document: %w", err)
	}
	data, err := t.rtx.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read document: %w", err)
	}
	return data, true, nil
}

func (t *redisTx) Set(path string, data []byte) error {
	t.ops = append(t.ops, func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.Set(ctx, docKey(path), data, 0)
		pipe.ZAdd(ctx, redisIndexKey, &redis.Z{Score: 0, Member: path})
	})
	return nil
}

func (t *redisTx) Delete(path string) error {
	t.ops = append(t.ops, func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.Del(ctx, docKey(path))
		pipe.ZRem(ctx, redisIndexKey, path)
	})
	return nil
}
