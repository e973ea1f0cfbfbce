package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"honestlens/api"
)

const shutdownTimeout = 10 * time.Second

// Handler returns the HTTP API over this app's manager and image store.
func (a *App) Handler() http.Handler {
	return api.NewRouter(a.Manager, a.Images, api.Options{
		AllowOrigins: a.Config.CORSOrigins,
		Logger:       a.Logger,
	})
}

// Serve runs the HTTP API and the Kafka consumer until ctx is cancelled, then shuts the
// server down gracefully.
func (a *App) Serve(ctx context.Context) error {
	if err := a.StartConsumer(ctx); err != nil {
		a.Logger.Warn("kafka consumer not started", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              ":" + a.Config.Port,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("starting API server",
			zap.String("addr", srv.Addr),
			zap.Strings("endpoints", []string{
				"GET  /api/health",
				"POST /api/verification/verify-url",
				"POST /api/verification/verify-text",
				"POST /api/verification/verify-image",
				"GET  /api/verification/result/:requestId",
			}))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.Logger.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
