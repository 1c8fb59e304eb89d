package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/storefront-state/internal/app"
	"github.com/nikolayk812/storefront-state/internal/config"
	"github.com/nikolayk812/storefront-state/internal/eventsink"
	"github.com/nikolayk812/storefront-state/internal/payment"
	"github.com/nikolayk812/storefront-state/internal/port"
	"github.com/nikolayk812/storefront-state/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const producerName = "storefront-cli"

// runtime is everything one command invocation needs. Each invocation is a
// fresh tab over the shared backend.
type runtime struct {
	cfg   config.Config
	log   *logrus.Logger
	tab   *app.Tab
	in    *bufio.Reader
	out   io.Writer
	close []func()
}

func newRootCmd(rt *runtime) *cobra.Command {
	root := &cobra.Command{
		Use:           "storefront",
		Short:         "Storefront client state: session, cart, wishlist and checkout",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			return rt.open(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(
		newLoginCmd(rt),
		newRegisterCmd(rt),
		newLogoutCmd(rt),
		newWhoamiCmd(rt),
		newProductsCmd(rt),
		newCategoriesCmd(rt),
		newCartCmd(rt),
		newWishlistCmd(rt),
		newCheckoutCmd(rt),
		newWatchCmd(rt),
	)

	return root
}

func (rt *runtime) open(ctx context.Context, in io.Reader, out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config.Load: %w", err)
	}
	rt.cfg = cfg
	rt.log.SetLevel(cfg.LogLevel)
	rt.in = bufio.NewReader(in)
	rt.out = out

	backend, err := rt.openBackend(ctx)
	if err != nil {
		rt.shutdown()
		return err
	}

	deps := app.Deps{
		Backend: backend,
		Config:  cfg,
		Opener:  payment.NewPromptOpener(rt.in, out),
		Log:     rt.log,
	}

	if len(cfg.KafkaBrokers) > 0 {
		sink, err := eventsink.New(eventsink.NewKafkaWriter(cfg.KafkaBrokers, cfg.EventsTopic), producerName, 0, rt.log)
		if err != nil {
			rt.shutdown()
			return fmt.Errorf("eventsink.New: %w", err)
		}
		rt.close = append(rt.close, func() {
			if err := sink.Close(); err != nil {
				rt.log.WithError(err).Warn("closing event sink failed")
			}
		})
		deps.Sink = sink
	}

	tab, err := app.New(ctx, deps)
	if err != nil {
		rt.shutdown()
		return fmt.Errorf("app.New: %w", err)
	}
	rt.tab = tab

	return nil
}

func (rt *runtime) openBackend(ctx context.Context) (port.Backend, error) {
	switch rt.cfg.Storage {
	case config.StorageRedis:
		client := redis.NewClient(&redis.Options{Addr: rt.cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping %s: %w", rt.cfg.RedisAddr, err)
		}
		rt.close = append(rt.close, func() { _ = client.Close() })

		backend, err := repository.NewRedis(client, rt.cfg.Namespace)
		if err != nil {
			return nil, fmt.Errorf("repository.NewRedis: %w", err)
		}
		return backend, nil

	case config.StoragePostgres:
		pool, err := pgxpool.New(ctx, rt.cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("pgxpool.New: %w", err)
		}
		rt.close = append(rt.close, pool.Close)

		backend, err := repository.NewPostgres(pool, rt.cfg.Namespace)
		if err != nil {
			return nil, fmt.Errorf("repository.NewPostgres: %w", err)
		}
		return backend, nil

	default:
		rt.log.Warn("memory storage does not outlive this process")
		return repository.NewMemory(0), nil
	}
}

// shutdown releases resources in reverse order of acquisition. It is safe to
// call more than once.
func (rt *runtime) shutdown() {
	if rt.tab != nil {
		rt.tab.Close()
		rt.tab = nil
	}
	for i := len(rt.close) - 1; i >= 0; i-- {
		rt.close[i]()
	}
	rt.close = nil
}

// prompt asks for one line on the command input.
func (rt *runtime) prompt(label string) (string, error) {
	fmt.Fprint(rt.out, label)

	line, err := rt.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("in.ReadString: %w", err)
	}

	return strings.TrimSpace(line), nil
}

func (rt *runtime) printf(format string, args ...any) {
	fmt.Fprintf(rt.out, format, args...)
}

// describe turns backend auth failures into a hint to log in again.
func describe(err error) error {
	if app.IsAuthError(err) {
		return fmt.Errorf("session expired, run `storefront login` again: %w", err)
	}
	return err
}
