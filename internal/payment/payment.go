// Package payment drives the hosted checkout of the payment gateway. The
// gateway's client script is loaded once per process and each checkout is
// handed to an Opener that reports how the customer left it.
package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

var ErrNotLoaded = errors.New("payment widget is not loaded")

type Status string

const (
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusDismissed Status = "dismissed"
)

type Prefill struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

type Theme struct {
	Color string `json:"color"`
}

// Options mirrors the arguments of the gateway widget constructor.
// Amount is in minor units.
type Options struct {
	Key         string            `json:"key"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	OrderID     string            `json:"order_id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Prefill     Prefill           `json:"prefill"`
	Notes       map[string]string `json:"notes,omitempty"`
	Theme       Theme             `json:"theme"`
}

// Outcome is how a hosted checkout ended. PaymentID, OrderID and Signature are
// set on success, Reason on failure.
type Outcome struct {
	Status    Status
	PaymentID string
	OrderID   string
	Signature string
	Reason    string
}

type Loader interface {
	Load(ctx context.Context) error
}

type LoaderFunc func(ctx context.Context) error

func (f LoaderFunc) Load(ctx context.Context) error {
	return f(ctx)
}

type Opener interface {
	Open(ctx context.Context, opts Options) (Outcome, error)
}

type Gateway struct {
	loader Loader
	opener Opener

	group  singleflight.Group
	loaded atomic.Bool
}

func NewGateway(loader Loader, opener Opener) (*Gateway, error) {
	if loader == nil {
		return nil, fmt.Errorf("loader is nil")
	}
	if opener == nil {
		return nil, fmt.Errorf("opener is nil")
	}

	return &Gateway{loader: loader, opener: opener}, nil
}

// EnsureLoaded loads the widget unless it is already loaded. Concurrent
// callers share one load, a failed load is retried by the next call.
func (g *Gateway) EnsureLoaded(ctx context.Context) error {
	if g.loaded.Load() {
		return nil
	}

	_, err, _ := g.group.Do("load", func() (any, error) {
		if g.loaded.Load() {
			return nil, nil
		}
		if err := g.loader.Load(ctx); err != nil {
			return nil, fmt.Errorf("loader.Load: %w", err)
		}
		g.loaded.Store(true)
		return nil, nil
	})

	return err
}

func (g *Gateway) Loaded() bool {
	return g.loaded.Load()
}

func (g *Gateway) Open(ctx context.Context, opts Options) (Outcome, error) {
	if !g.loaded.Load() {
		return Outcome{}, ErrNotLoaded
	}

	out, err := g.opener.Open(ctx, opts)
	if err != nil {
		return Outcome{}, fmt.Errorf("opener.Open: %w", err)
	}

	if out.Status == StatusSuccess && out.OrderID == "" {
		out.OrderID = opts.OrderID
	}

	return out, nil
}

// ScriptLoader checks that the checkout script is reachable, which is what
// loading it amounts to outside a browser.
func ScriptLoader(client *http.Client, url string) Loader {
	if client == nil {
		client = http.DefaultClient
	}

	return LoaderFunc(func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("http.NewRequestWithContext: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("client.Do: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("script[%s] returned status %d", url, resp.StatusCode)
		}

		return nil
	})
}
