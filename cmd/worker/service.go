package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/logger"
)

const (
	heartbeatInterval = 30 * time.Second
	// missedBeats consecutive failed probes of one dependency stop the worker.
	missedBeats = 3
)

type pinger interface {
	Ping(ctx context.Context) error
}

type runner interface {
	Run(ctx context.Context) error
}

type dependency struct {
	name string
	ping pinger
}

type ServiceParams struct {
	Logger   *logger.Logger
	DB       pinger
	Redis    pinger
	PubSub   pinger
	Consumer runner
}

// Service runs the notifications consumer alongside a dependency heartbeat.
type Service struct {
	logg      *logger.Logger
	deps      []dependency
	consumer  runner
	heartbeat time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Consumer == nil {
		return nil, errors.New("notifications consumer is required")
	}
	deps := []dependency{
		{name: "database", ping: params.DB},
		{name: "redis", ping: params.Redis},
		{name: "pubsub", ping: params.PubSub},
	}
	for _, d := range deps {
		if d.ping == nil {
			return nil, fmt.Errorf("%s client is required", d.name)
		}
	}
	return &Service{
		logg:      params.Logger,
		deps:      deps,
		consumer:  params.Consumer,
		heartbeat: heartbeatInterval,
	}, nil
}

func (s *Service) probe(ctx context.Context, d dependency) error {
	if err := d.ping.Ping(ctx); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "dependency", d.name), "worker.ping.failed", err)
		return fmt.Errorf("%s ping failed: %w", d.name, err)
	}
	return nil
}

// Run returns when ctx is canceled, the consumer stops, or a dependency
// misses too many heartbeats in a row.
func (s *Service) Run(ctx context.Context) error {
	for _, d := range s.deps {
		if err := s.probe(ctx, d); err != nil {
			return err
		}
	}
	s.logg.Info(ctx, "worker.ready")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := s.consumer.Run(gctx)
		if err == nil && gctx.Err() == nil {
			return errors.New("consumer returned without error")
		}
		return err
	})
	g.Go(func() error { return s.beat(gctx) })

	err := g.Wait()
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		s.logg.Info(ctx, "worker.canceled")
		return ctx.Err()
	}
	return err
}

func (s *Service) beat(ctx context.Context) error {
	missed := make(map[string]int, len(s.deps))
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		for _, d := range s.deps {
			err := s.probe(ctx, d)
			if err == nil {
				missed[d.name] = 0
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			missed[d.name]++
			if missed[d.name] >= missedBeats {
				return fmt.Errorf("%s missed %d heartbeats: %w", d.name, missed[d.name], err)
			}
		}
	}
}
