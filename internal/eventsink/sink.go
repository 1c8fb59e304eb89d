// Package eventsink forwards in-process notifications to a Kafka topic so
// that other systems can follow what a storefront tab does.
package eventsink

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nikolayk812/storefront-state/internal/domain"
	"github.com/nikolayk812/storefront-state/internal/event"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const (
	EnvelopeVersion = 1

	defaultBuffer = 256
	writeTimeout  = 5 * time.Second
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// sessionPayload leaves the token out on purpose.
type sessionPayload struct {
	UserID string      `json:"user_id"`
	Email  string      `json:"email"`
	Role   domain.Role `json:"role"`
}

// Writer is the subset of *kafka.Writer the sink uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
}

// Sink buffers envelopes and writes them from a single goroutine. When the
// buffer is full new envelopes are dropped rather than blocking the publisher.
type Sink struct {
	w        Writer
	producer string
	log      logrus.FieldLogger
	now      func() time.Time

	mu     sync.RWMutex
	closed bool
	inbox  chan kafka.Message
	done   chan struct{}

	dropped atomic.Int64
}

func New(w Writer, producer string, buffer int, log logrus.FieldLogger) (*Sink, error) {
	if w == nil {
		return nil, fmt.Errorf("writer is nil")
	}
	if producer == "" {
		return nil, fmt.Errorf("producer is empty")
	}
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	s := &Sink{
		w:        w,
		producer: producer,
		log:      log.WithField("component", "eventsink"),
		now:      time.Now,
		inbox:    make(chan kafka.Message, buffer),
		done:     make(chan struct{}),
	}
	go s.run()

	return s, nil
}

// Attach forwards every bus event. key names the partition key, typically
// the current session id.
func (s *Sink) Attach(bus *event.Bus, key func() string) func() {
	return bus.Subscribe(func(e event.Event) {
		s.Publish(e, key())
	})
}

// Publish enqueues e without blocking. It reports whether e was accepted.
func (s *Sink) Publish(e event.Event, key string) bool {
	payload, err := json.Marshal(payloadOf(e))
	if err != nil {
		s.log.WithError(err).WithField("event_type", e.Kind).Error("encoding payload failed")
		return false
	}

	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     string(e.Kind),
		EventVersion:  EnvelopeVersion,
		OccurredAt:    s.now().UTC(),
		Producer:      s.producer,
		CorrelationID: key,
		Payload:       payload,
	}
	value, err := json.Marshal(env)
	if err != nil {
		s.log.WithError(err).WithField("event_type", e.Kind).Error("encoding envelope failed")
		return false
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(env.EventType)},
		},
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}

	select {
	case s.inbox <- msg:
		return true
	default:
		n := s.dropped.Add(1)
		s.log.WithFields(logrus.Fields{"event_type": env.EventType, "dropped": n}).Warn("sink buffer full, event dropped")
		return false
	}
}

// Dropped is the number of events lost to a full buffer.
func (s *Sink) Dropped() int64 {
	return s.dropped.Load()
}

// Close flushes what is buffered and closes the writer.
func (s *Sink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return nil
	}
	s.closed = true
	close(s.inbox)
	s.mu.Unlock()

	<-s.done

	if err := s.w.Close(); err != nil {
		return fmt.Errorf("w.Close: %w", err)
	}
	return nil
}

func (s *Sink) run() {
	defer close(s.done)

	for msg := range s.inbox {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := s.w.WriteMessages(ctx, msg); err != nil {
			s.log.WithError(err).WithField("key", string(msg.Key)).Error("writing event failed")
		}
		cancel()
	}
}

func payloadOf(e event.Event) any {
	switch {
	case e.Session != nil:
		return sessionPayload{UserID: e.Session.ID, Email: e.Session.Email, Role: e.Session.Role}
	case e.Cart != nil:
		return e.Cart
	case e.Wishlist != nil:
		return e.Wishlist
	default:
		return struct{}{}
	}
}
