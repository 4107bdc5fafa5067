package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ttsblind/pregen/internal/handler"
	"github.com/ttsblind/pregen/internal/handler/audio"
	"github.com/ttsblind/pregen/internal/handler/pregen"
	"github.com/ttsblind/pregen/internal/logging"
	"github.com/ttsblind/pregen/internal/middleware"
	"github.com/ttsblind/pregen/internal/svc"
)

// ServerOptions holds optional settings for the server
type ServerOptions struct {
	Quiet bool // Skip the per-request access log
}

// NewRouter builds the HTTP routes for svcCtx.
func NewRouter(svcCtx *svc.ServiceContext, opts ServerOptions) chi.Router {
	r := chi.NewRouter()

	// Global middleware
	if !opts.Quiet {
		r.Use(chimw.Logger)
	}
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.Get("/health", handler.HealthCheckHandler(svcCtx))

	r.Route("/api/v1", func(r chi.Router) {
		registerTriggerRoutes(r, svcCtx)
		registerAudioRoutes(r, svcCtx)
	})
	return r
}

// registerTriggerRoutes registers the batch trigger behind the cron secret
func registerTriggerRoutes(r chi.Router, svcCtx *svc.ServiceContext) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.SharedSecret(svcCtx.Config.Security.CronSecret))
		r.Get("/pregen", pregen.RunPregenHandler(svcCtx))
		r.Post("/pregen", pregen.RunPregenHandler(svcCtx))
	})
}

// registerAudioRoutes registers audio downloads, JWT-protected when an access
// secret is configured
func registerAudioRoutes(r chi.Router, svcCtx *svc.ServiceContext) {
	r.Group(func(r chi.Router) {
		if secret := svcCtx.Config.Auth.AccessSecret; secret != "" {
			r.Use(middleware.JWTMiddleware(secret))
		}
		r.Get("/audio/{id}", audio.GetAudioHandler(svcCtx))
	})
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, svcCtx *svc.ServiceContext, opts ServerOptions) error {
	c := svcCtx.Config
	ln, err := net.Listen("tcp", c.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", c.Addr(), err)
	}
	return serve(ctx, ln, svcCtx, opts)
}

func serve(ctx context.Context, ln net.Listener, svcCtx *svc.ServiceContext, opts ServerOptions) error {
	budget := svcCtx.Config.Pregen.TimeBudget
	httpServer := &http.Server{
		Handler:           NewRouter(svcCtx, opts),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      writeTimeout(budget),
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Infof("Server ready at http://%s", ln.Addr())
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logging.Infof("Shutting down server gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), budget+5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// responseSlack covers selection and encoding the summary on top of a run
// that used its whole budget.
const responseSlack = 10 * time.Second

// writeTimeout lets a trigger request hold its connection for a full run.
// A run without a budget gets no write deadline.
func writeTimeout(budget time.Duration) time.Duration {
	if budget <= 0 {
		return 0
	}
	return budget + responseSlack
}
