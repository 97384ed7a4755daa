// Package kv pkg/kv/redis.go provides the Redis backend of the status table.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix = "boardwatch"
	maxUpsertAttempts  = 5
)

// redisRecord is the value stored under each row key.
type redisRecord struct {
	Data      json.RawMessage `json:"data"`
	Version   int64           `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
}

// RedisStore keeps one string key per row plus a set per partition that
// indexes its rows. Conditional writes use WATCH/MULTI on the row key.
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisStore connects using a redis:// or rediss:// URL.
func NewRedisStore(ctx context.Context, url, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConnectionString, err)
	}

	if prefix == "" {
		prefix = defaultRedisPrefix
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("%w: %w", ErrFailedOpenDB, err)
	}

	return &RedisStore{client: client, prefix: prefix, now: time.Now}, nil
}

func (s *RedisStore) rowKey(partition, row string) string {
	return s.prefix + ":" + partition + ":" + row
}

func (s *RedisStore) indexKey(partition string) string {
	return s.prefix + ":" + partition
}

func (s *RedisStore) Get(ctx context.Context, partition, row string) (*Entity, error) {
	raw, err := s.client.Get(ctx, s.rowKey(partition, row)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("%w entity %s/%s: %w", ErrFailedToQuery, partition, row, err)
	}

	return decodeRedisRecord(partition, row, raw)
}

func (s *RedisStore) Upsert(ctx context.Context, e *Entity) error {
	if err := e.validateKeys(); err != nil {
		return err
	}

	var err error

	for attempt := 0; attempt < maxUpsertAttempts; attempt++ {
		err = s.write(ctx, e, func(*redisRecord) error { return nil })
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}

	return fmt.Errorf("%w upsert %s/%s: %w", ErrFailedToWrite, e.PartitionKey, e.RowKey, err)
}

func (s *RedisStore) Insert(ctx context.Context, e *Entity) error {
	if err := e.validateKeys(); err != nil {
		return err
	}

	err := s.write(ctx, e, func(current *redisRecord) error {
		if current != nil {
			return ErrAlreadyExists
		}

		return nil
	})
	if errors.Is(err, redis.TxFailedErr) {
		return ErrAlreadyExists
	}

	return err
}

func (s *RedisStore) Update(ctx context.Context, e *Entity) error {
	if err := e.validateKeys(); err != nil {
		return err
	}

	expected := e.Version

	err := s.write(ctx, e, func(current *redisRecord) error {
		if current == nil {
			return ErrNotFound
		}

		if current.Version != expected {
			return ErrConflict
		}

		return nil
	})
	if errors.Is(err, redis.TxFailedErr) {
		return ErrConflict
	}

	return err
}

// write runs check against the current record inside WATCH and, if it
// passes, stores e with the next version.
func (s *RedisStore) write(ctx context.Context, e *Entity, check func(current *redisRecord) error) error {
	key := s.rowKey(e.PartitionKey, e.RowKey)

	var stored redisRecord

	txf := func(tx *redis.Tx) error {
		var current *redisRecord

		raw, err := tx.Get(ctx, key).Bytes()

		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return fmt.Errorf("%w entity %s/%s: %w", ErrFailedToQuery, e.PartitionKey, e.RowKey, err)
		default:
			current = &redisRecord{}
			if err := json.Unmarshal(raw, current); err != nil {
				return fmt.Errorf("%w %s/%s: %w", ErrFailedToDecode, e.PartitionKey, e.RowKey, err)
			}
		}

		if err := check(current); err != nil {
			return err
		}

		stored = redisRecord{Data: e.Data, Version: 1, Timestamp: s.now().UTC()}
		if current != nil {
			stored.Version = current.Version + 1
		}

		payload, err := json.Marshal(stored)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrFailedToEncode, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			pipe.SAdd(ctx, s.indexKey(e.PartitionKey), e.RowKey)

			return nil
		})

		return err
	}

	if err := s.client.Watch(ctx, txf, key); err != nil {
		return err
	}

	e.Version = stored.Version
	e.Timestamp = stored.Timestamp

	return nil
}

func (s *RedisStore) List(ctx context.Context, partition string) ([]Entity, error) {
	rows, err := s.client.SMembers(ctx, s.indexKey(partition)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w partition %s: %w", ErrFailedToQuery, partition, err)
	}

	if len(rows) == 0 {
		return nil, nil
	}

	keys := make([]string, len(rows))
	for i, row := range rows {
		keys[i] = s.rowKey(partition, row)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w partition %s: %w", ErrFailedToQuery, partition, err)
	}

	entities := make([]Entity, 0, len(values))

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue // indexed row without a value
		}

		e, err := decodeRedisRecord(partition, rows[i], []byte(raw))
		if err != nil {
			return nil, err
		}

		entities = append(entities, *e)
	}

	return entities, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func decodeRedisRecord(partition, row string, raw []byte) (*Entity, error) {
	var rec redisRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%w %s/%s: %w", ErrFailedToDecode, partition, row, err)
	}

	return &Entity{
		PartitionKey: partition,
		RowKey:       row,
		Data:         rec.Data,
		Version:      rec.Version,
		Timestamp:    rec.Timestamp,
	}, nil
}
