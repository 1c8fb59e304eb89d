package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/nikolayk812/storefront-state/internal/domain"
	"github.com/nikolayk812/storefront-state/internal/port"
	"github.com/redis/go-redis/v9"
)

const (
	// storefront:{namespace}:kv:{key} -> JSON value
	KeyEntry = "storefront:%s:kv:%s"

	// storefront:{namespace}:changes -> StorageEvent JSON
	ChannelChanges = "storefront:%s:changes"
)

// Redis stores entries as plain string keys and publishes every change on a
// per-namespace channel so tabs in other processes can follow.
type Redis struct {
	client    *redis.Client
	namespace string
}

func NewRedis(client *redis.Client, namespace string) (port.Backend, error) {
	if client == nil {
		return nil, fmt.Errorf("client is nil")
	}
	if namespace == "" {
		return nil, fmt.Errorf("namespace is empty")
	}

	return &Redis{
		client:    client,
		namespace: namespace,
	}, nil
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, fmt.Errorf("key is empty")
	}

	v, err := r.client.Get(ctx, r.entryKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get failed: %w", err)
	}

	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value, origin string) error {
	if key == "" {
		return fmt.Errorf("key is empty")
	}

	msg, err := json.Marshal(domain.StorageEvent{Key: key, Value: value, Origin: origin})
	if err != nil {
		return fmt.Errorf("marshal event failed: %w", err)
	}

	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.entryKey(key), value, 0)
		pipe.Publish(ctx, r.channel(), string(msg))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	return nil
}

func (r *Redis) Delete(ctx context.Context, key, origin string) error {
	if key == "" {
		return fmt.Errorf("key is empty")
	}

	n, err := r.client.Del(ctx, r.entryKey(key)).Result()
	if err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	if n == 0 {
		return nil
	}

	msg, err := json.Marshal(domain.StorageEvent{Key: key, Deleted: true, Origin: origin})
	if err != nil {
		return fmt.Errorf("marshal event failed: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel(), string(msg)).Err(); err != nil {
		return fmt.Errorf("redis publish failed: %w", err)
	}

	return nil
}

func (r *Redis) Watch(ctx context.Context, fn func(domain.StorageEvent)) (func(), error) {
	ps := r.client.Subscribe(ctx, r.channel())

	// wait for the subscription confirmation so no change published after Watch returns is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe failed: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)

		for m := range ps.Channel() {
			var e domain.StorageEvent
			if err := json.Unmarshal([]byte(m.Payload), &e); err != nil {
				continue
			}
			fn(e)
		}
	}()

	stop := func() {
		_ = ps.Close()
		<-done
	}

	return sync.OnceFunc(stop), nil
}

func (r *Redis) entryKey(key string) string {
	return fmt.Sprintf(KeyEntry, r.namespace, key)
}

func (r *Redis) channel() string {
	return fmt.Sprintf(ChannelChanges, r.namespace)
}
