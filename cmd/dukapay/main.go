// Package main запускает HTTP-сервер сервиса dukapay.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/dukapay/internal/backend"
	"github.com/mmeshcher/dukapay/internal/config"
	"github.com/mmeshcher/dukapay/internal/handler"
	"github.com/mmeshcher/dukapay/internal/middleware"
	"github.com/mmeshcher/dukapay/internal/model"
	"github.com/mmeshcher/dukapay/internal/realtime"
	"github.com/mmeshcher/dukapay/internal/reconcile"
	"github.com/mmeshcher/dukapay/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	backendClient := backend.NewClient(cfg.BackendAddress)

	var notifier service.Notifier
	if cfg.RealtimeAddress != "" {
		listener := realtime.NewListener(cfg.RealtimeAddress, logger)
		notifier = service.NotifierFunc(func(ctx context.Context, sess model.Session) (service.Subscription, error) {
			return listener.Subscribe(ctx, sess)
		})
	} else {
		sugar.Warnw("realtime channel not configured, payment outcomes rely on status polls only")
	}

	svc := service.NewCheckoutService(backendClient, notifier, logger, reconcile.Config{
		PollDelay:    cfg.PollDelay,
		PollAttempts: cfg.PollAttempts,
	})
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.SessionSecret)
	h := handler.NewHandler(svc, logger, authMiddleware)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting dukapay server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
