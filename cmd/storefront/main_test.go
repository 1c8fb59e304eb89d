package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()

	r := chi.NewRouter()
	r.Get("/api/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if chi.URLParam(r, "id") != "p1" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Product not found"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "p1", "name": "Mug", "price": "199.50", "stock": 3})
	})
	r.Post("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token":"t1","user":{"id":"u1","name":"Asha","email":"asha@example.com","role":"user"}}`))
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	srv := newBackend(t)
	t.Setenv("STOREFRONT_STORAGE", "memory")
	t.Setenv("STOREFRONT_BACKEND_URL", srv.URL)
	t.Setenv("KAFKA_BROKERS", "")

	log, _ := test.NewNullLogger()
	rt := &runtime{log: log}
	defer rt.shutdown()

	var out bytes.Buffer
	cmd := newRootCmd(rt)
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCartAdd(t *testing.T) {
	out, err := run(t, "", "cart", "add", "p1", "-q", "2")
	require.NoError(t, err)

	assert.Contains(t, out, "Mug")
	assert.Contains(t, out, "399.00")
	assert.Contains(t, out, "1 lines, total INR 399.00")
}

func TestCartAdd_UnknownProduct(t *testing.T) {
	_, err := run(t, "", "cart", "add", "nope")
	require.ErrorContains(t, err, "Product not found")
}

func TestCartSet_BadQuantity(t *testing.T) {
	_, err := run(t, "", "cart", "set", "p1", "many")
	require.EqualError(t, err, "quantity[many] is not a number")
}

func TestLogin_PromptsForPassword(t *testing.T) {
	out, err := run(t, "secret\n", "login", "asha@example.com")
	require.NoError(t, err)

	assert.Contains(t, out, "password: ")
	assert.Contains(t, out, "signed in as Asha <asha@example.com>")
}

func TestWhoami_SignedOut(t *testing.T) {
	out, err := run(t, "", "whoami")
	require.NoError(t, err)
	assert.Equal(t, "not signed in\n", out)
}

func TestCheckout_RequiresSession(t *testing.T) {
	_, err := run(t, "", "checkout", "--method", "cod")
	require.ErrorContains(t, err, "not signed in")
}

func TestInvalidStorage(t *testing.T) {
	t.Setenv("STOREFRONT_STORAGE", "sqlite")

	log, _ := test.NewNullLogger()
	rt := &runtime{log: log}
	cmd := newRootCmd(rt)
	cmd.SetArgs([]string{"cart"})
	cmd.SetOut(&bytes.Buffer{})

	err := cmd.ExecuteContext(context.Background())
	require.ErrorContains(t, err, "config.Load")
}
