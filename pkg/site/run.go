package site

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wharfside/wharf/pkg/repo"
)

// Run serves the site HTTP surface until ctx is cancelled, then shuts
// down gracefully. When an events endpoint is configured, the repo event
// subscription runs alongside the server and feeds cache invalidation.
func (a *App) Run(ctx context.Context) error {
	router := mux.NewRouter()
	router.HandleFunc("/health", a.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/site/{did}", a.handleGetSite).Methods(http.MethodGet)

	server := &http.Server{
		Addr:    a.cfg.Addr,
		Handler: router,
	}

	subCtx, cancelSub := context.WithCancel(ctx)
	defer cancelSub()
	if a.cfg.EventsURL != "" {
		sub := &repo.Subscriber{
			URL:     a.cfg.EventsURL,
			Handler: a.handleEvent,
			Log:     a.log,
		}
		go func() {
			if err := sub.Run(subCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.log.Warn().Err(err).Msg("event subscription stopped")
			}
		}()
	}

	a.log.Info().
		Str("addr", a.cfg.Addr).
		Bool("rollout", a.cfg.Rollout).
		Msg("starting site server")

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info().Msg("shutting down site server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}
