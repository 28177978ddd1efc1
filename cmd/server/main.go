package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flarewatch/flarewatch/internal/alerts"
	"github.com/flarewatch/flarewatch/internal/api"
	"github.com/flarewatch/flarewatch/internal/auth"
	"github.com/flarewatch/flarewatch/internal/bus"
	"github.com/flarewatch/flarewatch/internal/config"
	"github.com/flarewatch/flarewatch/internal/engine"
	"github.com/flarewatch/flarewatch/internal/event"
	"github.com/flarewatch/flarewatch/internal/metrics"
	"github.com/flarewatch/flarewatch/internal/rules"
	"github.com/flarewatch/flarewatch/internal/scrape"
	"github.com/flarewatch/flarewatch/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("flarewatch-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"evaluation_interval", cfg.Server.Evaluation.Interval,
		"rules", len(cfg.Server.Rules),
		"channels", len(cfg.Server.Channels),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		slog.Error("failed to register metrics", "err", err)
		os.Exit(1)
	}

	// In-process event bus — alert lifecycle announcements fan out from here.
	b := bus.New(logger)
	defer b.Close()

	buffer := event.NewBuffer(cfg.Server.Buffer.MaxPerBucket)
	store := alerts.NewStore(b)
	notifier := alerts.NewNotifier(logger)

	eng := engine.New(logger, engine.Config{
		EvaluationInterval:  cfg.Server.Evaluation.Interval,
		EvaluateImmediately: cfg.Server.Evaluation.Immediate,
	}, buffer, rules.NewEvaluator(logger), store, notifier)

	seedRules(eng, cfg)
	seedChannels(notifier, cfg)

	go eng.Run(ctx)

	// Hot reload: config rules and channels are replaced on file change;
	// rules added through the API survive reloads.
	go func() {
		err := config.Watch(ctx, *configPath, func(next *config.Config) {
			seedRules(eng, next)
			seedChannels(notifier, next)
		})
		if err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	// WebSocket hub — pushes alert lifecycle events to connected clients.
	hub := ws.New(b)
	go hub.Run(ctx)

	// Prometheus endpoint poller — scraped samples enter the event stream.
	poller := scrape.New(logger, eng, cfg.Server.Scrape.Interval, cfg.Server.Scrape.Sources)
	go poller.Run(ctx)

	authMW := auth.Middleware(
		cfg.Server.Auth.Mode,
		cfg.Server.Auth.EffectiveHeader(),
		cfg.Server.Auth.Key(),
	)

	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", authMW(api.New(eng)))
	httpMux.Handle("/ws/alerts", hub)
	httpMux.Handle("/metrics", promhttp.Handler())

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: httpMux,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("flarewatch-server shutting down")
	httpSrv.Shutdown(context.Background()) //nolint:errcheck
}

// seedRules replaces the engine's config-sourced rules with cfg's rule list.
func seedRules(eng *engine.Engine, cfg *config.Config) {
	eng.SetConfigRules(cfg.Server.Rules)
}

// seedChannels replaces all notification channels with cfg's channel list.
func seedChannels(notifier *alerts.Notifier, cfg *config.Config) {
	for _, ch := range notifier.Channels() {
		notifier.RemoveChannel(ch.ID)
	}
	for _, ch := range cfg.Server.Channels {
		if _, err := notifier.AddChannel(ch); err != nil {
			slog.Warn("skipping invalid channel", "name", ch.Name, "err", err)
		}
	}
}
