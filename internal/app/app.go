// Package app wires configuration, logging, metrics, persistence and the
// session manager into an HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/clover-storm/unit-simulator/internal/config"
	servernet "github.com/clover-storm/unit-simulator/internal/net"
	"github.com/clover-storm/unit-simulator/internal/session"
	"github.com/clover-storm/unit-simulator/internal/storage"
	"github.com/clover-storm/unit-simulator/internal/telemetry"
	"github.com/clover-storm/unit-simulator/logging"
	loggingSinks "github.com/clover-storm/unit-simulator/logging/sinks"
)

type Config struct {
	Logger   telemetry.Logger
	Settings config.Config
	// Stdout receives the console sink; nil means os.Stdout.
	Stdout io.Writer
}

// App holds the long-lived server components.
type App struct {
	settings config.Config
	logger   telemetry.Logger
	router   *logging.Router
	counters *telemetry.Counters
	store    *storage.Store
	sessions *session.Manager
	handler  http.Handler
}

func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}
	stdout := cfg.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	settings := cfg.Settings

	logConfig := settings.LoggingConfig()
	sinks, err := buildSinks(logConfig, stdout)
	if err != nil {
		return nil, err
	}
	router := logging.NewRouter(logging.ClockFunc(time.Now), logConfig, sinks)

	counters := telemetry.NewCounters()
	var metrics telemetry.Metrics = counters
	if settings.Metrics.OTel {
		metrics = telemetry.Tee(counters, telemetry.NewOTelMetrics(nil, logger))
	}

	sessionCfg, err := settings.SessionConfig()
	if err != nil {
		router.Close(context.Background())
		return nil, fmt.Errorf("failed to build session config: %w", err)
	}

	var store *storage.Store
	if settings.Storage.Enabled {
		store, err = storage.Open(settings.StorageConfig())
		if err != nil {
			router.Close(context.Background())
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
	}

	sessions := session.NewManager(sessionCfg, session.Deps{
		Logger:    logger,
		Metrics:   metrics,
		Publisher: router,
		Store:     store,
	})

	handler := servernet.NewHTTPHandler(sessions, servernet.HTTPHandlerConfig{
		Logger:      logger,
		Metrics:     counters,
		EnablePprof: settings.Pprof,
	})

	return &App{
		settings: settings,
		logger:   logger,
		router:   router,
		counters: counters,
		store:    store,
		sessions: sessions,
		handler:  handler,
	}, nil
}

func buildSinks(cfg logging.Config, stdout io.Writer) ([]logging.NamedSink, error) {
	var sinks []logging.NamedSink
	if cfg.HasSink("console") {
		sinks = append(sinks, logging.NamedSink{Name: "console", Sink: loggingSinks.NewConsoleSink(stdout, cfg.Console)})
	}
	if cfg.HasSink("zerolog") {
		sinks = append(sinks, logging.NamedSink{Name: "zerolog", Sink: loggingSinks.NewZerolog(stdout, cfg.Console.Pretty)})
	}
	if cfg.HasSink("json") {
		var w io.Writer = stdout
		if cfg.JSON.FilePath != "" {
			f, err := os.OpenFile(cfg.JSON.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return nil, fmt.Errorf("failed to open json log %s: %w", cfg.JSON.FilePath, err)
			}
			w = f
		}
		sinks = append(sinks, logging.NamedSink{Name: "json", Sink: loggingSinks.NewJSON(w, cfg.JSON.FlushInterval)})
	}
	return sinks, nil
}

func (a *App) Handler() http.Handler { return a.handler }

func (a *App) Sessions() *session.Manager { return a.sessions }

// Close shuts sessions down first so their final frames reach storage and
// the event sinks.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.sessions.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close sessions: %w", err))
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	if err := a.router.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close logging router: %w", err))
	}
	return errors.Join(errs...)
}

// Serve listens on the configured address until ctx is done, then shuts
// the server down gracefully.
func (a *App) Serve(ctx context.Context) error {
	cleanupCtx, stopCleanup := context.WithCancel(ctx)
	defer stopCleanup()
	go a.sessions.Run(cleanupCtx)

	srv := &http.Server{Addr: a.settings.ListenAddr, Handler: a.handler}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Printf("server listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// Run builds the app, serves until ctx is done and releases everything.
func Run(ctx context.Context, cfg Config) error {
	a, err := New(cfg)
	if err != nil {
		return err
	}
	serveErr := a.Serve(ctx)

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Close(closeCtx); err != nil {
		a.logger.Printf("shutdown: %v", err)
	}
	return serveErr
}
