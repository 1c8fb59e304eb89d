package eventsink_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/nikolayk812/storefront-state/internal/domain"
	"github.com/nikolayk812/storefront-state/internal/event"
	"github.com/nikolayk812/storefront-state/internal/eventsink"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeWriter struct {
	mu       sync.Mutex
	msgs     []kafka.Message
	writeErr error
	block    chan struct{}
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.block != nil {
		<-w.block
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return w.writeErr
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWriter) written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

func TestSink_ForwardsBusEvents(t *testing.T) {
	w := &fakeWriter{}
	log, _ := test.NewNullLogger()
	sink, err := eventsink.New(w, "storefront-cli", 8, log)
	require.NoError(t, err)

	bus := event.NewBus()
	detach := sink.Attach(bus, func() string { return "u1" })

	bus.Publish(event.Event{Kind: event.KindLogin, Session: &domain.Session{ID: "u1", Email: "a@b.c", Role: domain.RoleUser, Token: "secret-token"}})
	bus.Publish(event.Event{Kind: event.KindCartChanged, Cart: &event.CartPayload{Count: 2, Total: decimal.NewFromInt(300)}})
	detach()
	bus.Publish(event.Event{Kind: event.KindLogout})

	require.NoError(t, sink.Close())

	msgs := w.written()
	require.Len(t, msgs, 2)
	assert.True(t, w.closed)

	var env eventsink.Envelope
	require.NoError(t, json.Unmarshal(msgs[0].Value, &env))
	assert.Equal(t, "login", env.EventType)
	assert.Equal(t, eventsink.EnvelopeVersion, env.EventVersion)
	assert.Equal(t, "storefront-cli", env.Producer)
	assert.Equal(t, "u1", env.CorrelationID)
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, "u1", string(msgs[0].Key))
	assert.NotContains(t, string(env.Payload), "secret-token")
	assert.JSONEq(t, `{"user_id":"u1","email":"a@b.c","role":"user"}`, string(env.Payload))

	require.NoError(t, json.Unmarshal(msgs[1].Value, &env))
	assert.Equal(t, "cart-changed", env.EventType)

	var cart event.CartPayload
	require.NoError(t, json.Unmarshal(env.Payload, &cart))
	assert.Equal(t, 2, cart.Count)
	assert.True(t, decimal.NewFromInt(300).Equal(cart.Total))
}

func TestSink_DropsWhenFull(t *testing.T) {
	w := &fakeWriter{block: make(chan struct{})}
	log, hook := test.NewNullLogger()
	sink, err := eventsink.New(w, "p", 1, log)
	require.NoError(t, err)

	accepted := 0
	for range 5 {
		if sink.Publish(event.Event{Kind: event.KindWishlistChanged, Wishlist: &event.WishlistPayload{}}, "k") {
			accepted++
		}
	}

	// at most one in flight and one buffered
	assert.LessOrEqual(t, accepted, 2)
	assert.EqualValues(t, 5-accepted, sink.Dropped())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "sink buffer full, event dropped", hook.LastEntry().Message)

	close(w.block)
	require.NoError(t, sink.Close())
	assert.Len(t, w.written(), accepted)

	assert.False(t, sink.Publish(event.Event{Kind: event.KindLogout}, "k"), "closed sink accepts nothing")
	require.NoError(t, sink.Close())
}

func TestSink_WriteErrorIsLogged(t *testing.T) {
	w := &fakeWriter{writeErr: errors.New("broker down")}
	log, hook := test.NewNullLogger()
	sink, err := eventsink.New(w, "p", 4, log)
	require.NoError(t, err)

	require.True(t, sink.Publish(event.Event{Kind: event.KindLogout}, "u1"))
	require.NoError(t, sink.Close())

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "writing event failed", hook.LastEntry().Message)
}

func TestNew_Validation(t *testing.T) {
	_, err := eventsink.New(nil, "p", 1, nil)
	require.EqualError(t, err, "writer is nil")

	_, err = eventsink.New(&fakeWriter{}, "", 1, nil)
	require.EqualError(t, err, "producer is empty")
}
