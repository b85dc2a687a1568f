package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DoyleJ11/mafia-backend/internal/archive"
	"github.com/DoyleJ11/mafia-backend/internal/config"
	"github.com/DoyleJ11/mafia-backend/internal/eventbus"
	"github.com/DoyleJ11/mafia-backend/internal/httpapi"
	"github.com/DoyleJ11/mafia-backend/internal/hub"
	"github.com/DoyleJ11/mafia-backend/internal/logging"
	"github.com/DoyleJ11/mafia-backend/internal/notify"
	"github.com/DoyleJ11/mafia-backend/internal/room"
	"github.com/DoyleJ11/mafia-backend/internal/store"
	"github.com/DoyleJ11/mafia-backend/internal/timer"
	"github.com/DoyleJ11/mafia-backend/internal/ws"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() (err error) {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	sessions := store.NewSessions(client, logger)
	defer func() { err = multierr.Append(err, sessions.Close()) }()

	bus := eventbus.New(context.Background(), logger)
	defer bus.Close()

	manager := ws.NewManager(logger)
	bus.Subscribe(notify.New(manager, logger).Handle)

	if cfg.ArchiveDSN != "" {
		rec, aerr := archive.Open(cfg.ArchiveDSN, logger)
		if aerr != nil {
			return aerr
		}
		defer func() { err = multierr.Append(err, rec.Close()) }()
		bus.Subscribe(rec.Handle)
	} else {
		logger.Info("archive disabled")
	}

	h := hub.NewHub(context.Background(), room.Deps{
		Store:  sessions,
		Timers: timer.New(logger),
		Events: bus,
		Durations: room.Durations{
			Morning: cfg.MorningDuration,
			Day:     cfg.DayDuration,
			Execute: cfg.ExecuteDuration,
			Night:   cfg.NightDuration,
		},
		Logger: logger,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.SetupRoutes(h, manager, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		serr := srv.Shutdown(sctx)
		h.Shutdown(sctx)
		return serr
	})

	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Config) (store.HashClient, error) {
	switch cfg.Store {
	case config.StoreBolt:
		return store.OpenBolt(cfg.BoltPath)
	default:
		return store.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	}
}
