package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/calebmartin/netchess-backend/internal/config"
	"github.com/calebmartin/netchess-backend/internal/httpapi"
	"github.com/calebmartin/netchess-backend/internal/rules"
	"github.com/calebmartin/netchess-backend/internal/server"
)

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("building logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg, rules.NewChessEngine(), logger)
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.SetupRoutes(srv, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx)
	})
	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
	logger.Info("server stopped")
}
