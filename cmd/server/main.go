package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tarabish/tarneeb-server/internal/config"
	"github.com/tarabish/tarneeb-server/internal/httpapi"
	"github.com/tarabish/tarneeb-server/internal/hub"
	"github.com/tarabish/tarneeb-server/internal/metrics"
	"github.com/tarabish/tarneeb-server/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := newLogger(cfg.Debug)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal("failed to open store", zap.Error(err))
	}
	if st == nil {
		log.Info("no DATABASE_URL set, match history disabled")
	}

	rep := metrics.NewLogging(log)
	h := hub.NewHub(ctx, log, st, rep)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: httpapi.SetupRoutes(h, cfg, log, rep),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		h.Inbox() <- hub.ShutdownHub{}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func newLogger(debug bool) *zap.Logger {
	if debug {
		log, _ := zap.NewDevelopment()
		return log
	}
	log, _ := zap.NewProduction()
	return log
}
