package repository_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nikolayk812/storefront-state/internal/domain"
	"github.com/nikolayk812/storefront-state/internal/port"
	"github.com/nikolayk812/storefront-state/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and a backend pointing to it
func setupTestRedis(t *testing.T, namespace string) (port.Backend, *miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		client.Close()
	})

	backend, err := repository.NewRedis(client, namespace)
	require.NoError(t, err)

	return backend, mr, client
}

func TestRedis_SetGetDelete(t *testing.T) {
	backend, mr, _ := setupTestRedis(t, "shop")
	ctx := context.Background()

	require.NoError(t, backend.Set(ctx, "wishlist", `[{"id":"p1"}]`, "tab-1"))

	stored, err := mr.Get(fmt.Sprintf(repository.KeyEntry, "shop", "wishlist"))
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"p1"}]`, stored)

	got, ok, err := backend.Get(ctx, "wishlist")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":"p1"}]`, got)

	require.NoError(t, backend.Delete(ctx, "wishlist", "tab-1"))
	assert.False(t, mr.Exists(fmt.Sprintf(repository.KeyEntry, "shop", "wishlist")))

	_, ok, err = backend.Get(ctx, "wishlist")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_GetConnectionError(t *testing.T) {
	backend, mr, _ := setupTestRedis(t, "shop")
	mr.Close()

	_, _, err := backend.Get(context.Background(), "cart")
	require.ErrorContains(t, err, "redis get failed")
}

func TestRedis_WatchAcrossClients(t *testing.T) {
	writer, mr, _ := setupTestRedis(t, "shop")

	// a second client stands in for another process sharing the same server
	readerClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer readerClient.Close()
	reader, err := repository.NewRedis(readerClient, "shop")
	require.NoError(t, err)

	ctx := context.Background()

	var (
		mu     sync.Mutex
		events []domain.StorageEvent
	)
	stop, err := reader.Watch(ctx, func(e domain.StorageEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	})
	require.NoError(t, err)
	defer stop()

	require.NoError(t, writer.Set(ctx, "cart", "[]", "tab-a"))
	require.NoError(t, writer.Delete(ctx, "cart", "tab-a"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 2
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, domain.StorageEvent{Key: "cart", Value: "[]", Origin: "tab-a"}, events[0])
	assert.Equal(t, domain.StorageEvent{Key: "cart", Deleted: true, Origin: "tab-a"}, events[1])
}

func TestRedis_NewValidation(t *testing.T) {
	_, err := repository.NewRedis(nil, "shop")
	require.EqualError(t, err, "client is nil")

	_, err = repository.NewRedis(redis.NewClient(&redis.Options{}), "")
	require.EqualError(t, err, "namespace is empty")
}
