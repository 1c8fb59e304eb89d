package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/storefront-state/internal/domain"
	"github.com/nikolayk812/storefront-state/internal/port"
)

const notifyChannel = "kv_changes"

// Postgres keeps entries in the kv_entries table and announces changes with
// NOTIFY. Notifications carry no value because of the 8000 byte payload
// limit, listeners read the key again.
type Postgres struct {
	pool      *pgxpool.Pool
	namespace string
}

type pgNotification struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Deleted   bool   `json:"deleted,omitempty"`
	Origin    string `json:"origin"`
}

func NewPostgres(pool *pgxpool.Pool, namespace string) (port.Backend, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	if namespace == "" {
		return nil, fmt.Errorf("namespace is empty")
	}

	return &Postgres{
		pool:      pool,
		namespace: namespace,
	}, nil
}

func (p *Postgres) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, fmt.Errorf("key is empty")
	}

	var value string
	err := p.pool.QueryRow(ctx,
		`SELECT value FROM kv_entries WHERE namespace = $1 AND key = $2`,
		p.namespace, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("pool.QueryRow: %w", err)
	}

	return value, true, nil
}

func (p *Postgres) Set(ctx context.Context, key, value, origin string) error {
	if key == "" {
		return fmt.Errorf("key is empty")
	}

	payload, err := p.notification(key, false, origin)
	if err != nil {
		return err
	}

	_, err = withTx(ctx, p.pool, func(tx pgx.Tx) (struct{}, error) {
		if _, err := tx.Exec(ctx,
			`INSERT INTO kv_entries (namespace, key, value, updated_at)
			 VALUES ($1, $2, $3, NOW())
			 ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
			p.namespace, key, value); err != nil {
			return struct{}{}, fmt.Errorf("tx.Exec upsert: %w", err)
		}

		if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, payload); err != nil {
			return struct{}{}, fmt.Errorf("tx.Exec pg_notify: %w", err)
		}

		return struct{}{}, nil
	})

	return err
}

func (p *Postgres) Delete(ctx context.Context, key, origin string) error {
	if key == "" {
		return fmt.Errorf("key is empty")
	}

	payload, err := p.notification(key, true, origin)
	if err != nil {
		return err
	}

	_, err = withTx(ctx, p.pool, func(tx pgx.Tx) (bool, error) {
		tag, err := tx.Exec(ctx,
			`DELETE FROM kv_entries WHERE namespace = $1 AND key = $2`,
			p.namespace, key)
		if err != nil {
			return false, fmt.Errorf("tx.Exec delete: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return false, nil
		}

		if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, payload); err != nil {
			return false, fmt.Errorf("tx.Exec pg_notify: %w", err)
		}

		return true, nil
	})

	return err
}

func (p *Postgres) Watch(ctx context.Context, fn func(domain.StorageEvent)) (func(), error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("pool.Acquire: %w", err)
	}

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("conn.Exec listen: %w", err)
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)

		for {
			n, err := conn.Conn().WaitForNotification(listenCtx)
			if err != nil {
				// canceled by stop or the connection is gone, either way nothing more to deliver
				return
			}

			var msg pgNotification
			if err := json.Unmarshal([]byte(n.Payload), &msg); err != nil {
				continue
			}
			if msg.Namespace != p.namespace {
				continue
			}

			fn(domain.StorageEvent{
				Key:     msg.Key,
				Deleted: msg.Deleted,
				Origin:  msg.Origin,
			})
		}
	}()

	stop := func() {
		cancel()
		<-done
		// a connection interrupted mid-wait is not reusable, the pool drops closed ones
		_ = conn.Conn().Close(context.Background())
		conn.Release()
	}

	return sync.OnceFunc(stop), nil
}

func (p *Postgres) notification(key string, deleted bool, origin string) (string, error) {
	b, err := json.Marshal(pgNotification{
		Namespace: p.namespace,
		Key:       key,
		Deleted:   deleted,
		Origin:    origin,
	})
	if err != nil {
		return "", fmt.Errorf("json.Marshal: %w", err)
	}

	return string(b), nil
}
