// Package server mounts the HTTP surface and owns the listener lifecycle.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/serendipitylabs/serendipity/internal/handler"
	"github.com/serendipitylabs/serendipity/internal/svc"
)

// Options tunes how the server runs.
type Options struct {
	Port  int
	Quiet bool // suppress request logging for clean CLI output
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func Run(ctx context.Context, svcCtx *svc.ServiceContext, opts Options) error {
	if err := checkPortAvailable(opts.Port); err != nil {
		return fmt.Errorf("port %d is already in use: %w", opts.Port, err)
	}

	r := chi.NewRouter()
	if !opts.Quiet {
		r.Use(chimw.Logger)
	}
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(corsMiddleware())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handler.HealthCheckHandler(svcCtx))

		r.Post("/sessions", handler.CreateSessionHandler(svcCtx))
		r.Get("/sessions/{id}/stats", handler.GetSessionStatsHandler(svcCtx))
		r.Get("/sessions/{id}/batches", handler.ListSessionBatchesHandler(svcCtx))
		r.Delete("/sessions/{id}", handler.DeleteSessionHandler(svcCtx))

		r.Post("/rounds", handler.RunRoundHandler(svcCtx))
		r.Post("/feedback", handler.RecordFeedbackHandler(svcCtx))

		r.Get("/context", handler.GetContextHandler(svcCtx))

		r.Get("/settings", handler.GetSettingsHandler(svcCtx))
		r.Put("/settings", handler.UpdateSettingsHandler(svcCtx))
		r.Delete("/settings", handler.ResetSettingsHandler(svcCtx))

		r.Get("/history", handler.ListHistoryHandler(svcCtx))
		r.Delete("/history", handler.ClearHistoryHandler(svcCtx))
	})

	httpServer := &http.Server{
		Addr:        fmt.Sprintf("localhost:%d", opts.Port),
		Handler:     r,
		IdleTimeout: 120 * time.Second,
	}

	svcCtx.Logger.Info("server ready", zap.String("addr", "http://"+httpServer.Addr))

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	svcCtx.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// corsMiddleware handles CORS. Serendipity is a local app, so only localhost
// origins are allowed; anything else gets no CORS headers and the browser
// blocks it.
func corsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" || isLocalhostOrigin(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isLocalhostOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1" || host == "::1" ||
		strings.HasSuffix(host, ".localhost")
}

// checkPortAvailable checks if a port is available for binding
func checkPortAvailable(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}
