// Package app assembles the state containers of one storefront tab. Several
// tabs built over the same backend behave like several browser tabs.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/nikolayk812/storefront-state/internal/api"
	"github.com/nikolayk812/storefront-state/internal/cart"
	"github.com/nikolayk812/storefront-state/internal/checkout"
	"github.com/nikolayk812/storefront-state/internal/config"
	"github.com/nikolayk812/storefront-state/internal/event"
	"github.com/nikolayk812/storefront-state/internal/eventsink"
	"github.com/nikolayk812/storefront-state/internal/payment"
	"github.com/nikolayk812/storefront-state/internal/port"
	"github.com/nikolayk812/storefront-state/internal/session"
	"github.com/nikolayk812/storefront-state/internal/storage"
	"github.com/nikolayk812/storefront-state/internal/wishlist"
	"github.com/sirupsen/logrus"
)

type Deps struct {
	Backend port.Backend
	Config  config.Config

	// Opener completes hosted checkouts. Without one the gateway path is unavailable.
	Opener payment.Opener
	// Loader defaults to fetching Config.GatewayScript.
	Loader payment.Loader
	// Transport is used for backend calls, http.DefaultTransport when nil.
	Transport http.RoundTripper
	// Sink, when set, receives every notification of the tab.
	Sink *eventsink.Sink

	Log logrus.FieldLogger
}

type Tab struct {
	store    *storage.Store
	bus      *event.Bus
	session  *session.Container
	cart     *cart.Container
	wishlist *wishlist.Container
	api      *api.Client
	gateway  *payment.Gateway

	cfg config.Config
	log logrus.FieldLogger

	closers []func()
}

func New(ctx context.Context, deps Deps) (*Tab, error) {
	if deps.Backend == nil {
		return nil, fmt.Errorf("backend is nil")
	}
	log := deps.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	store, err := storage.Open(ctx, deps.Backend, log)
	if err != nil {
		return nil, fmt.Errorf("storage.Open: %w", err)
	}

	t := &Tab{
		store: store,
		bus:   event.NewBus(),
		cfg:   deps.Config,
		log:   log.WithField("tab", store.Origin()),
	}

	t.session = session.New(ctx, store, t.bus, log)
	t.cart = cart.New(ctx, store, t.bus, log)
	t.wishlist = wishlist.New(ctx, store, t.bus, log)

	t.api, err = api.New(api.Options{
		BaseURL:   deps.Config.BackendURL,
		Timeout:   deps.Config.RequestTimeout,
		Token:     t.session.Token,
		Transport: deps.Transport,
		Log:       log,
		OnUnauthorized: func() {
			t.session.Logout(context.Background())
		},
	})
	if err != nil {
		t.Close()
		return nil, fmt.Errorf("api.New: %w", err)
	}

	if deps.Opener != nil {
		loader := deps.Loader
		if loader == nil {
			loader = payment.ScriptLoader(&http.Client{Timeout: deps.Config.RequestTimeout}, deps.Config.GatewayScript)
		}
		t.gateway, err = payment.NewGateway(loader, deps.Opener)
		if err != nil {
			t.Close()
			return nil, fmt.Errorf("payment.NewGateway: %w", err)
		}
	}

	if deps.Sink != nil {
		t.closers = append(t.closers, deps.Sink.Attach(t.bus, t.partitionKey))
	}

	return t, nil
}

func (t *Tab) Origin() string                { return t.store.Origin() }
func (t *Tab) Bus() *event.Bus               { return t.bus }
func (t *Tab) Session() *session.Container   { return t.session }
func (t *Tab) Cart() *cart.Container         { return t.cart }
func (t *Tab) Wishlist() *wishlist.Container { return t.wishlist }
func (t *Tab) API() *api.Client              { return t.api }

func (t *Tab) SignIn(ctx context.Context, email, password string) error {
	return t.session.SignIn(ctx, t.api, email, password)
}

func (t *Tab) SignUp(ctx context.Context, req port.RegisterRequest) error {
	return t.session.SignUp(ctx, t.api, req)
}

// AddProduct fetches the product and adds qty of it to the cart.
func (t *Tab) AddProduct(ctx context.Context, productID string, qty int) error {
	p, err := t.api.GetProduct(ctx, productID)
	if err != nil {
		return fmt.Errorf("api.GetProduct: %w", err)
	}

	return t.cart.AddItem(ctx, p.CartLine(qty))
}

// SaveProduct fetches the product and saves it in the wishlist.
func (t *Tab) SaveProduct(ctx context.Context, productID string) (bool, error) {
	p, err := t.api.GetProduct(ctx, productID)
	if err != nil {
		return false, fmt.Errorf("api.GetProduct: %w", err)
	}

	return t.wishlist.AddItem(ctx, p.WishlistItem())
}

// NewCheckout starts a checkout over this tab's cart. The gateway path is
// only usable when the tab was built with an Opener.
func (t *Tab) NewCheckout() (*checkout.Orchestrator, error) {
	var gw port.PaymentGateway
	if t.gateway != nil {
		gw = t.gateway
	}

	return checkout.New(t.cart, t.api, gw, checkout.Config{
		GatewayKey: t.cfg.GatewayKey,
		Currency:   t.cfg.Currency,
		StoreName:  t.cfg.StoreName,
		ThemeColor: t.cfg.ThemeColor,
	}, t.log)
}

// Close detaches the tab from the backend. Persisted state stays.
func (t *Tab) Close() {
	for _, fn := range t.closers {
		fn()
	}
	if t.wishlist != nil {
		t.wishlist.Close()
	}
	if t.cart != nil {
		t.cart.Close()
	}
	if t.session != nil {
		t.session.Close()
	}
	t.store.Close()
}

func (t *Tab) partitionKey() string {
	if s, ok := t.session.Current(); ok {
		return s.ID
	}
	return t.store.Origin()
}

// IsAuthError reports whether err means the backend rejected the session.
func IsAuthError(err error) bool {
	return errors.Is(err, api.ErrUnauthorized)
}
