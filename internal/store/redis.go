package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "singstage"

// RedisStore implements Store on top of Redis: one JSON value per path key
// plus pub/sub change events so subscribers see writes from every node.
type RedisStore struct {
	rdb       *redis.Client
	keyPrefix string
}

// NewRedisStore wraps an existing client. Prefix namespaces all keys and
// channels; empty means "singstage".
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	p := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if p == "" {
		p = defaultKeyPrefix
	}
	return &RedisStore{rdb: rdb, keyPrefix: p + ":"}
}

func (s *RedisStore) key(path string) string { return s.keyPrefix + path }

func (s *RedisStore) channel(path string) string { return s.keyPrefix + "events:" + path }

func (s *RedisStore) Get(ctx context.Context, path string) (json.RawMessage, error) {
	value, err := s.rdb.Get(ctx, s.key(path)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get %s: %w", path, err)
	}
	return value, nil
}

func (s *RedisStore) Set(ctx context.Context, path string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.key(path), raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", path, err)
	}
	return s.publish(ctx, Event{Path: path, Value: raw})
}

func (s *RedisStore) Update(ctx context.Context, path string, fields map[string]any) error {
	// Read-merge-write, per-field last-writer-wins. A concurrent writer can
	// race here; per-field staleness is acceptable and self-corrects.
	merged := map[string]any{}
	existing, err := s.Get(ctx, path)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if existing != nil {
		if err := json.Unmarshal(existing, &merged); err != nil {
			return err
		}
	}
	for k, v := range fields {
		merged[k] = v
	}
	return s.Set(ctx, path, merged)
}

func (s *RedisStore) Remove(ctx context.Context, path string) error {
	paths, err := s.scanPaths(ctx, path)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return nil
	}

	keys := make([]string, len(paths))
	for i, p := range paths {
		keys[i] = s.key(p)
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", path, err)
	}
	for _, p := range paths {
		if err := s.publish(ctx, Event{Path: p}); err != nil {
			return err
		}
	}
	return nil
}

func (s *RedisStore) Append(ctx context.Context, collectionPath string, value any) (string, error) {
	key := uuid.New().String()
	if err := s.Set(ctx, collectionPath+"/"+key, value); err != nil {
		return "", err
	}
	return key, nil
}

func (s *RedisStore) List(ctx context.Context, collectionPath string) (map[string]json.RawMessage, error) {
	result := make(map[string]json.RawMessage)

	iter := s.rdb.Scan(ctx, 0, s.key(collectionPath)+"/*", 0).Iterator()
	for iter.Next(ctx) {
		path := strings.TrimPrefix(iter.Val(), s.keyPrefix)
		value, err := s.Get(ctx, path)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		result[strings.TrimPrefix(path, collectionPath+"/")] = value
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %s: %w", collectionPath, err)
	}
	return result, nil
}

func (s *RedisStore) Subscribe(ctx context.Context, pathPrefix string, fn func(Event)) (UnsubscribeFunc, error) {
	pubsub := s.rdb.PSubscribe(ctx,
		s.channel(pathPrefix),
		s.channel(pathPrefix)+"/*",
	)
	// Force the subscription onto the wire before replaying current state,
	// so no write published after the replay snapshot is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", pathPrefix, err)
	}

	if err := s.replay(ctx, pathPrefix, fn); err != nil {
		pubsub.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var evt Event
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					continue
				}
				fn(evt)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			pubsub.Close()
		})
	}, nil
}

func (s *RedisStore) publish(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	if err := s.rdb.Publish(ctx, s.channel(evt.Path), payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", evt.Path, err)
	}
	return nil
}

func (s *RedisStore) replay(ctx context.Context, pathPrefix string, fn func(Event)) error {
	paths, err := s.scanPaths(ctx, pathPrefix)
	if err != nil {
		return err
	}
	sort.Strings(paths)
	for _, p := range paths {
		value, err := s.Get(ctx, p)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return err
		}
		fn(Event{Path: p, Value: value})
	}
	return nil
}

// scanPaths lists every stored path at or under prefix.
func (s *RedisStore) scanPaths(ctx context.Context, prefix string) ([]string, error) {
	paths := make([]string, 0)

	if err := s.rdb.Get(ctx, s.key(prefix)).Err(); err == nil {
		paths = append(paths, prefix)
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis get %s: %w", prefix, err)
	}

	iter := s.rdb.Scan(ctx, 0, s.key(prefix)+"/*", 0).Iterator()
	for iter.Next(ctx) {
		paths = append(paths, strings.TrimPrefix(iter.Val(), s.keyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %s: %w", prefix, err)
	}
	return paths, nil
}
