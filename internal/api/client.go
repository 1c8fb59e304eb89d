// Package api is the client of the storefront backend REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nikolayk812/storefront-state/internal/domain"
	"github.com/nikolayk812/storefront-state/internal/port"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"
)

const DefaultTimeout = 10 * time.Second

type Options struct {
	BaseURL string
	Timeout time.Duration

	// Token returns the bearer token for authenticated calls, empty for none.
	Token func() string
	// OnUnauthorized runs after an authenticated call got a 401.
	OnUnauthorized func()

	// OrderRetry overrides OrderRetryPolicy.
	OrderRetry *RetryPolicy
	Transport  http.RoundTripper
	Log        logrus.FieldLogger
}

type Client struct {
	baseURL        string
	http           *http.Client
	breaker        *gobreaker.CircuitBreaker[*http.Response]
	token          func() string
	onUnauthorized func()
	orderRetry     RetryPolicy
	log            logrus.FieldLogger

	products singleflight.Group
}

var (
	_ port.AuthAPI    = (*Client)(nil)
	_ port.CatalogAPI = (*Client)(nil)
	_ port.OrderAPI   = (*Client)(nil)
)

func New(opts Options) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("url.Parse: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url[%s] is not absolute", opts.BaseURL)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	token := opts.Token
	if token == nil {
		token = func() string { return "" }
	}
	orderRetry := OrderRetryPolicy
	if opts.OrderRetry != nil {
		orderRetry = *opts.OrderRetry
	}

	c := &Client{
		baseURL: strings.TrimRight(base.String(), "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(transport),
		},
		token:          token,
		onUnauthorized: opts.OnUnauthorized,
		orderRetry:     orderRetry,
		log:            log.WithField("component", "api"),
	}

	c.breaker = gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:    "storefront-backend",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.WithFields(logrus.Fields{"breaker": name, "from": from.String(), "to": to.String()}).Warn("circuit breaker state changed")
		},
	})

	return c, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (domain.Credentials, error) {
	var resp AuthResponse
	err := c.do(ctx, call{
		method:    http.MethodPost,
		path:      "/api/auth/login",
		in:        map[string]string{"email": email, "password": password},
		out:       &resp,
		anonymous: true,
	})
	if err != nil {
		return domain.Credentials{}, err
	}

	return resp.Normalize(), nil
}

func (c *Client) Register(ctx context.Context, req port.RegisterRequest) (domain.Credentials, error) {
	var resp AuthResponse
	err := c.do(ctx, call{
		method:    http.MethodPost,
		path:      "/api/auth/register",
		in:        req,
		out:       &resp,
		anonymous: true,
	})
	if err != nil {
		return domain.Credentials{}, err
	}

	return resp.Normalize(), nil
}

func (c *Client) SearchProducts(ctx context.Context, q port.ProductQuery) (domain.ProductPage, error) {
	query := url.Values{}
	if q.Search != "" {
		query.Set("search", q.Search)
	}
	if q.Category != "" {
		query.Set("category", q.Category)
	}
	if q.Page > 0 {
		query.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}

	var page domain.ProductPage
	if err := c.do(ctx, call{method: http.MethodGet, path: "/api/products", query: query, out: &page}); err != nil {
		return domain.ProductPage{}, err
	}

	return page, nil
}

// GetProduct fetches one product. Concurrent calls for the same id share a request.
func (c *Client) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	if id == "" {
		return domain.Product{}, fmt.Errorf("product id is empty")
	}

	v, err, _ := c.products.Do(id, func() (any, error) {
		var p domain.Product
		err := c.do(ctx, call{method: http.MethodGet, path: "/api/products/" + url.PathEscape(id), out: &p})
		return p, err
	})
	if err != nil {
		return domain.Product{}, err
	}

	return v.(domain.Product), nil
}

func (c *Client) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var categories []domain.Category
	if err := c.do(ctx, call{method: http.MethodGet, path: "/api/categories", out: &categories}); err != nil {
		return nil, err
	}

	return categories, nil
}

func (c *Client) CreatePaymentOrder(ctx context.Context, req port.PaymentOrderRequest) (port.PaymentOrder, error) {
	var po port.PaymentOrder
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/api/payments/orders",
		in:     req,
		out:    &po,
		retry:  c.orderRetry,
	})
	if err != nil {
		return port.PaymentOrder{}, err
	}
	if po.ID == "" {
		return port.PaymentOrder{}, fmt.Errorf("payment order has no id")
	}

	return po, nil
}

func (c *Client) VerifyPayment(ctx context.Context, req port.VerifyPaymentRequest) (domain.OrderConfirmation, error) {
	var conf domain.OrderConfirmation
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/api/payments/verify",
		in:     req,
		out:    &conf,
		retry:  c.orderRetry,
	})
	if err != nil {
		return domain.OrderConfirmation{}, err
	}

	return conf, nil
}

func (c *Client) CreateCODOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderConfirmation, error) {
	req.PaymentMethod = domain.PaymentCOD

	var conf domain.OrderConfirmation
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/api/orders/cod",
		in:     req,
		out:    &conf,
		retry:  c.orderRetry,
	})
	if err != nil {
		return domain.OrderConfirmation{}, err
	}

	return conf, nil
}

type call struct {
	method string
	path   string
	query  url.Values
	in     any
	out    any
	retry  RetryPolicy

	// anonymous calls carry no bearer token and a 401 does not end the session.
	anonymous bool
}

func (c *Client) do(ctx context.Context, cl call) error {
	var body []byte
	if cl.in != nil {
		b, err := json.Marshal(cl.in)
		if err != nil {
			return fmt.Errorf("json.Marshal: %w", err)
		}
		body = b
	}

	attempts := 0
	_, err := backoff.RetryWithData(func() (struct{}, error) {
		attempts++
		err := c.attempt(ctx, cl, body)
		if err != nil && !cl.retry.retryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, cl.retry.backOff(ctx))

	if err != nil {
		log := c.log.WithError(err).WithFields(logrus.Fields{"method": cl.method, "path": cl.path, "attempts": attempts})
		if errors.Is(err, ErrUnauthorized) && !cl.anonymous {
			log.Warn("session rejected by backend")
			if c.onUnauthorized != nil {
				c.onUnauthorized()
			}
		} else {
			log.Debug("backend call failed")
		}
	}

	return err
}

func (c *Client) attempt(ctx context.Context, cl call, body []byte) error {
	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		req, err := c.newRequest(ctx, cl, body)
		if err != nil {
			return nil, err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoResponse, err)
		}

		// 5xx counts against the breaker, everything else is the caller's problem
		if resp.StatusCode >= http.StatusInternalServerError {
			defer resp.Body.Close()
			return nil, decodeError(resp)
		}

		return resp, nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if cl.out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(cl.out); err != nil {
		return fmt.Errorf("json.Decode: %w", err)
	}

	return nil
}

func (c *Client) newRequest(ctx context.Context, cl call, body []byte) (*http.Request, error) {
	u := c.baseURL + cl.path
	if len(cl.query) > 0 {
		u += "?" + cl.query.Encode()
	}

	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, u, r)
	if err != nil {
		return nil, fmt.Errorf("http.NewRequestWithContext: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if !cl.anonymous {
		if token := c.token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	return req, nil
}
