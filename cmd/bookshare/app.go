package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aluiziolira/go-bookshare/assets"
	"github.com/aluiziolira/go-bookshare/client"
	"github.com/aluiziolira/go-bookshare/components"
	"github.com/aluiziolira/go-bookshare/config"
	"github.com/aluiziolira/go-bookshare/query"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

// app holds the dependencies shared by every command.
type app struct {
	cfg      *config.Config
	client   *client.Client
	cache    *query.Cache
	prober   *assets.Prober
	renderer components.Renderer

	registry      *prometheus.Registry
	metricsServer *http.Server
}

// appFactory builds the app for each command. A non-nil transport replaces
// the HTTP transport of the client and the image prober.
type appFactory struct {
	transport http.RoundTripper
}

func (f appFactory) newApp(c *cli.Context) (*app, error) {
	cfg, err := configFromFlags(c)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	cl, err := client.New(cfg, client.NewMetrics(registry))
	if err != nil {
		return nil, fmt.Errorf("initialising client: %w", err)
	}
	prober, err := assets.NewProber(cfg, assets.NewMetrics(registry))
	if err != nil {
		return nil, fmt.Errorf("initialising image prober: %w", err)
	}
	if f.transport != nil {
		cl.WithTransport(f.transport)
		prober.WithTransport(f.transport)
	}

	cache, err := query.New(query.Options{
		Size:      cfg.CacheSize,
		StaleTime: cfg.StaleTime,
		Metrics:   query.NewMetrics(registry),
	})
	if err != nil {
		return nil, fmt.Errorf("initialising query cache: %w", err)
	}

	a := &app{
		cfg:    cfg,
		client: cl,
		cache:  cache,
		prober: prober,
		renderer: components.Renderer{
			ImageOrigin: cfg.ImageOrigin(),
			Color:       c.Bool("color"),
			Profile:     colorProfile(c.App.Writer),
		},
		registry: registry,
	}
	a.startMetricsServer()

	slog.Debug("app ready",
		slog.String("base_url", cfg.BaseURL),
		slog.Duration("stale_time", cfg.StaleTime),
		slog.Int("cache_size", cfg.CacheSize),
	)
	return a, nil
}

func (a *app) startMetricsServer() {
	if a.cfg.MetricsAddr == "" {
		return
	}
	a.metricsServer = &http.Server{
		Addr:    a.cfg.MetricsAddr,
		Handler: promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", a.cfg.MetricsAddr))
}

func (a *app) close() {
	a.cache.Close()
	if a.metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}
}

// withApp builds the app for one command invocation and tears it down after.
func (f appFactory) withApp(action func(c *cli.Context, a *app) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		a, err := f.newApp(c)
		if err != nil {
			return err
		}
		defer a.close()
		return action(c, a)
	}
}
