package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marquezdaniela/reciclaje-municipal/internal/bootstrap"
	"github.com/marquezdaniela/reciclaje-municipal/internal/relay"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/metrics"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/outbox"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/outbox/registry"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/pubsub"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Start(ctx, "outbox-publisher", bootstrap.Needs{Migrate: true})
	if err != nil {
		fmt.Fprintln(os.Stderr, "outbox-publisher:", err)
		os.Exit(1)
	}
	ctx = rt.Context(ctx)
	err = run(ctx, rt)
	if closeErr := rt.Close(); closeErr != nil {
		rt.Logger.Error(ctx, "outbox-publisher.close", closeErr)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		rt.Logger.Error(ctx, "outbox-publisher.stopped", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, rt *bootstrap.Runtime) error {
	cfg, logg, dbClient := rt.Config, rt.Logger, rt.DB

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return fmt.Errorf("bootstrap pubsub: %w", err)
	}
	rt.OnClose(pubsubClient.Close)

	for name, ping := range map[string]func(context.Context) error{
		"database": dbClient.Ping,
		"pubsub":   pubsubClient.Ping,
	} {
		if err := ping(ctx); err != nil {
			return fmt.Errorf("%s not ready: %w", name, err)
		}
	}

	events, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return fmt.Errorf("event registry: %w", err)
	}
	sender := relay.NewTopicSender(pubsubClient)
	defer sender.Stop()

	r, err := relay.New(relay.Params{
		Options:     relay.OptionsFrom(cfg.Outbox),
		Logger:      logg,
		Tx:          dbClient,
		Rows:        outbox.NewRepository(dbClient.DB()),
		DeadLetters: outbox.NewDLQRepository(dbClient.DB()),
		Events:      events,
		Sender:      sender,
		Metrics:     metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return fmt.Errorf("build relay: %w", err)
	}

	logg.Info(ctx, "starting outbox publisher")
	err = r.Run(ctx)
	logg.Info(ctx, "outbox publisher stopped")
	return err
}
