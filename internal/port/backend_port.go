package port

import (
	"context"

	"github.com/nikolayk812/storefront-state/internal/domain"
)

// Backend is the durable string store shared by all tabs of one origin.
type Backend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value, origin string) error
	Delete(ctx context.Context, key, origin string) error
	// Watch delivers every change, including the watcher's own, until stop is called.
	Watch(ctx context.Context, fn func(domain.StorageEvent)) (stop func(), err error)
}
