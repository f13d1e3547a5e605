package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/gustwatch/gustwatch/internal/domain/alert"
	"github.com/gustwatch/gustwatch/internal/infra/config"
)

// App encapsulates the HTTP server and background poller lifecycle.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	server   *http.Server
	alertSvc alert.Service
	clock    clockwork.Clock
}

// NewApp is used by Wire to build the runnable app.
func NewApp(cfg *config.Config, logger *slog.Logger, server *http.Server, alertSvc alert.Service, clock clockwork.Clock) *App {
	return &App{
		cfg:      cfg,
		logger:   logger.With("component", "bootstrap"),
		server:   server,
		alertSvc: alertSvc,
		clock:    clock,
	}
}

// Run starts the HTTP server and the optional poll loop, blocking until
// shutdown.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("http server starting", "address", a.cfg.HTTP.Address)
		if err := a.server.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	pollCtx, stopPoll := context.WithCancel(ctx)
	defer stopPoll()
	if a.cfg.Poll.Enabled {
		go a.pollLoop(pollCtx)
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.logger.Info("shutdown signal received")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// pollLoop runs the evaluate-gate-dispatch cycle on a fixed interval so
// alerts go out without any inbound trigger.
func (a *App) pollLoop(ctx context.Context) {
	interval := a.cfg.Poll.Interval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	a.logger.Info("poll loop starting", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("poll loop stopped")
			return
		case <-a.clock.After(interval):
		}

		report, err := a.alertSvc.RunCycle(ctx)
		if err != nil {
			a.logger.Error("poll cycle failed", "error", err)
			continue
		}
		a.logger.Info("poll cycle complete",
			"provider", report.Provider,
			"evaluated", report.Evaluated,
			"sent", len(report.Results))
	}
}
