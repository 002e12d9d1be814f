package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/moussakabalan/multi-user-expense-tracker/internal/config"
	"github.com/moussakabalan/multi-user-expense-tracker/internal/logger"
	"github.com/moussakabalan/multi-user-expense-tracker/internal/model/storage"
	"github.com/moussakabalan/multi-user-expense-tracker/internal/server"
)

func main() {
	_ = godotenv.Load()

	conf, err := config.New()
	if err != nil {
		logger.Fatal("failed to init config", zap.Error(err))
	}

	store, err := storage.NewFileStorage(conf.Storage())
	if err != nil {
		logger.Fatal("failed to init storage", zap.Error(err))
	}
	if err = store.LoadAll(); err != nil {
		logger.Fatal("failed to load user data", zap.Error(err))
	}
	logger.Info("storage ready",
		zap.Int("users", store.UserCount()), zap.Int("expenses", store.ExpenseCount()))

	srv, err := server.New(conf.Server(), store)
	if err != nil {
		logger.Fatal("failed to init server", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return srv.Serve(ctx)
	})
	group.Go(func() error {
		return serveMetrics(ctx, conf.Server().MetricsPort())
	})

	if err = group.Wait(); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func serveMetrics(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	go func() {
		<-ctx.Done()
		_ = httpServer.Shutdown(context.Background())
	}()

	logger.Info("metrics listening", zap.String("addr", httpServer.Addr))
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
