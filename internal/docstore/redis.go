package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fitness-bot/pkg/logger"

	"github.com/go-redis/redis/v8"
)

const (
	redisKeyPrefix     = "docstore:"
	redisChannelPrefix = "docstore-changes:"
	maxWatchRetries    = 5
)

var _ Store = (*RedisStore)(nil)

// RedisStore keeps every document as a JSON envelope under its own key. Versioned writes run inside
// WATCH/MULTI and each committed write is published on the document channel.
type RedisStore struct {
	rdb    *redis.Client
	logger *logger.Logger

	// ability to inject a clock (for tests)
	Now func() time.Time
}

type redisEnvelope struct {
	Data      json.RawMessage `json:"data"`
	Version   int64           `json:"version"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func NewRedisStore(rdb *redis.Client, logger *logger.Logger) *RedisStore {
	return &RedisStore{
		rdb:    rdb,
		logger: logger,
		Now:    time.Now,
	}
}

func redisKey(collection, key string) string {
	return redisKeyPrefix + ref(collection, key)
}

func redisChannel(collection, key string) string {
	return redisChannelPrefix + ref(collection, key)
}

func (s *RedisStore) Get(ctx context.Context, collection, key string) (*Document, error) {
	doc, err := s.load(ctx, s.rdb, collection, key)
	if err != nil {
		return nil, remoteErr("get document", err)
	}
	if doc == nil {
		return nil, ErrNotFound
	}
	return doc, nil
}

// load returns nil, nil when the key does not exist.
func (s *RedisStore) load(ctx context.Context, c redis.Cmdable, collection, key string) (*Document, error) {
	b, err := c.Get(ctx, redisKey(collection, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var env redisEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode envelope %s: %w", ref(collection, key), err)
	}
	return &Document{
		Collection: collection,
		Key:        key,
		Data:       env.Data,
		Version:    env.Version,
		UpdatedAt:  env.UpdatedAt,
	}, nil
}

func (s *RedisStore) Set(ctx context.Context, collection, key string, value any) (*Document, error) {
	data, err := encode(value)
	if err != nil {
		return nil, err
	}
	doc, err := s.write(ctx, collection, key, func(*Document) (json.RawMessage, error) {
		return data, nil
	})
	return doc, remoteErr("set document", err)
}

func (s *RedisStore) SetIfVersion(ctx context.Context, collection, key string, value any, version int64) (*Document, error) {
	data, err := encode(value)
	if err != nil {
		return nil, err
	}
	doc, err := s.write(ctx, collection, key, func(current *Document) (json.RawMessage, error) {
		var v int64
		if current != nil {
			v = current.Version
		}
		if v != version {
			return nil, ErrVersionConflict
		}
		return data, nil
	})
	return doc, remoteErr("set document if version", err)
}

func (s *RedisStore) Update(ctx context.Context, collection, key string, fields map[string]any) (*Document, error) {
	doc, err := s.write(ctx, collection, key, func(current *Document) (json.RawMessage, error) {
		if current == nil {
			return nil, ErrNotFound
		}
		return merge(current.Data, fields)
	})
	return doc, remoteErr("update document", err)
}

func (s *RedisStore) Delete(ctx context.Context, collection, key string) error {
	if err := s.rdb.Del(ctx, redisKey(collection, key)).Err(); err != nil {
		return remoteErr("delete document", err)
	}
	if err := s.rdb.Publish(ctx, redisChannel(collection, key), "deleted").Err(); err != nil {
		s.logger.Errorw("failed to publish document change", "document", ref(collection, key), "error", err)
	}
	return nil
}

// write computes the next payload from the current document inside a WATCH transaction. A commit
// that loses the race against another writer is evaluated again against the fresh document.
func (s *RedisStore) write(ctx context.Context, collection, key string, next func(current *Document) (json.RawMessage, error)) (*Document, error) {
	k := redisKey(collection, key)

	var written *Document
	txf := func(tx *redis.Tx) error {
		current, err := s.load(ctx, tx, collection, key)
		if err != nil {
			return err
		}
		data, err := next(current)
		if err != nil {
			return err
		}

		doc := &Document{
			Collection: collection,
			Key:        key,
			Data:       data,
			Version:    1,
			UpdatedAt:  s.Now().UTC(),
		}
		if current != nil {
			doc.Version = current.Version + 1
		}

		b, err := json.Marshal(redisEnvelope{Data: doc.Data, Version: doc.Version, UpdatedAt: doc.UpdatedAt})
		if err != nil {
			return fmt.Errorf("encode envelope: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, b, 0)
			pipe.Publish(ctx, redisChannel(collection, key), doc.Version)
			return nil
		})
		if err != nil {
			return err
		}
		written = doc
		return nil
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := s.rdb.Watch(ctx, txf, k)
		if err == nil {
			return written, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("write %s: retries exhausted: %w", ref(collection, key), redis.TxFailedErr)
}

func (s *RedisStore) Subscribe(ctx context.Context, collection, key string) (<-chan Snapshot, error) {
	ps := s.rdb.Subscribe(ctx, redisChannel(collection, key))
	// wait for the subscription confirmation so no write after this point is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, remoteErr("subscribe", err)
	}

	doc, err := s.Get(ctx, collection, key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		_ = ps.Close()
		return nil, err
	}

	f := newFeed(ctx, nil)
	f.push(Snapshot{Doc: doc})

	go func() {
		defer func() {
			if err := ps.Close(); err != nil {
				s.logger.Errorw("failed to close document subscription", "document", ref(collection, key), "error", err)
			}
		}()

		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					f.push(Snapshot{Err: remoteErr("subscription", errors.New("channel closed"))})
					return
				}
				if err := f.pushCurrent(ctx, s, collection, key); err != nil {
					if ctx.Err() == nil {
						f.push(Snapshot{Err: err})
					}
					return
				}
			}
		}
	}()

	return f.out, nil
}
