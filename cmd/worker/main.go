package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marquezdaniela/reciclaje-municipal/internal/bootstrap"
	"github.com/marquezdaniela/reciclaje-municipal/internal/notifications"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/flash"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/outbox/idempotency"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/pubsub"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Start(ctx, "worker", bootstrap.Needs{Redis: true})
	if err != nil {
		fmt.Fprintln(os.Stderr, "worker:", err)
		os.Exit(1)
	}

	ctx = rt.Context(ctx)
	err = run(ctx, rt)
	if closeErr := rt.Close(); closeErr != nil {
		rt.Logger.Error(ctx, "worker.close", closeErr)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		rt.Logger.Error(ctx, "worker.stopped", err)
		os.Exit(1)
	}
	rt.Logger.Info(ctx, "worker.drained")
}

func run(ctx context.Context, rt *bootstrap.Runtime) error {
	cfg, logg := rt.Config, rt.Logger

	bus, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return fmt.Errorf("open pubsub: %w", err)
	}
	rt.OnClose(bus.Close)
	if err := bus.EnsureSubscription(ctx, cfg.PubSub.RequestsSubscription); err != nil {
		return fmt.Errorf("requests subscription: %w", err)
	}

	// Notices written here are read by the api on the actor's next page.
	notices, err := flash.NewQueue(rt.Redis, 0)
	if err != nil {
		return fmt.Errorf("flash queue: %w", err)
	}
	notifier, err := notifications.NewNotifier(notifications.NewRepository(rt.DB.DB()), notices)
	if err != nil {
		return fmt.Errorf("notifier: %w", err)
	}
	dedupe, err := idempotency.NewManager(rt.Redis, cfg.Eventing.IdempotencyTTL)
	if err != nil {
		return fmt.Errorf("idempotency manager: %w", err)
	}
	consumer, err := notifications.NewConsumer(notifier, bus.RequestsSubscriber(), dedupe, logg)
	if err != nil {
		return fmt.Errorf("notifications consumer: %w", err)
	}

	service, err := NewService(ServiceParams{
		Logger:   logg,
		DB:       rt.DB,
		Redis:    rt.Redis,
		PubSub:   bus,
		Consumer: consumer,
	})
	if err != nil {
		return fmt.Errorf("worker service: %w", err)
	}

	logg.Info(ctx, "worker.started")
	return service.Run(ctx)
}
