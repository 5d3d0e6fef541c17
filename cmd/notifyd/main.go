package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/ledger-notify/internal/auth"
	"github.com/rickgao/ledger-notify/internal/config"
	"github.com/rickgao/ledger-notify/internal/gateway"
	"github.com/rickgao/ledger-notify/internal/ledger"
	"github.com/rickgao/ledger-notify/internal/logging"
	"github.com/rickgao/ledger-notify/internal/metrics"
	"github.com/rickgao/ledger-notify/internal/model"
	"github.com/rickgao/ledger-notify/internal/notify"
	"github.com/rickgao/ledger-notify/internal/relay"
	"github.com/rickgao/ledger-notify/internal/store"
	"github.com/rickgao/ledger-notify/internal/version"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "configs/notifyd.local.yaml", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "config", *configPath, "error", err)
		os.Exit(1)
	}

	// Set up structured logging
	logger, logCloser := logging.New(cfg.Logging)
	defer logCloser.Close()
	slog.SetDefault(logger)

	logger.Info("starting notifyd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"instance_id", cfg.Instance.ID,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("notifyd failed", "error", err)
		logCloser.Close()
		os.Exit(1)
	}
	logger.Info("notifyd stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Open object store
	objects, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer objects.Close()
	logger.Info("object store opened", "backend", cfg.Store.Backend)

	l := ledger.New(objects, logger)
	collector := metrics.New()
	classifier := notify.ClassifierFunc(ledger.MarketPairs)
	engineCfg := notify.Config{
		MaxConcurrentDeliveries: cfg.Notify.MaxConcurrentDeliveries,
		DeliveryTimeout:         cfg.Notify.DeliveryTimeout,
		IntakeCapacity:          cfg.Notify.IntakeCapacity,
	}

	// Gateway
	authn, err := auth.NewAuthenticator(cfg.Gateway.Users)
	if err != nil {
		return fmt.Errorf("gateway users: %w", err)
	}
	gw := gateway.NewServer(gateway.Config{
		PingInterval:   cfg.Gateway.PingInterval,
		ReadTimeout:    cfg.Gateway.ReadTimeout,
		WriteTimeout:   cfg.Gateway.WriteTimeout,
		SendBuffer:     cfg.Gateway.SendBuffer,
		MaxMessageSize: cfg.Gateway.MaxMessageSize,
	}, engineCfg, l.Feed(), objects, logger,
		gateway.WithClassifier(classifier),
		gateway.WithObserver(collector),
		gateway.WithAuthenticator(authn),
	)

	// Relay
	var relayEngine *notify.Engine
	var publisher *relay.Publisher
	if cfg.Relay.Enabled {
		ids, pairs, err := relayKeys(cfg.Relay)
		if err != nil {
			return fmt.Errorf("relay: %w", err)
		}
		publisher, err = relay.NewPublisher(cfg.Relay.Brokers, cfg.Relay.Topic, logger.With("component", "relay"))
		if err != nil {
			return fmt.Errorf("relay: %w", err)
		}
		defer publisher.Close()

		r := relay.New(ids, pairs, publisher, logger.With("component", "relay"))
		relayEngine = notify.NewEngine(engineCfg, objects, classifier, logger.With("component", "relay"),
			notify.WithObserver(notify.Observers{r, collector}),
		)
		r.Install(relayEngine)
		if err := relayEngine.Start(ctx); err != nil {
			return fmt.Errorf("start relay engine: %w", err)
		}
		unregister := l.Feed().Register(relayEngine)
		defer func() {
			unregister()
			stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stopCancel()
			relayEngine.Stop(stopCtx)
		}()

		collector.Counter("relay_published_total", "Notifications produced to Kafka.", func() float64 {
			return float64(publisher.Stats().Published)
		})
		collector.Counter("relay_failed_total", "Notifications Kafka rejected.", func() float64 {
			return float64(publisher.Stats().Failed)
		})
	}

	collector.Gauge("gateway_sessions", "Open gateway sessions.", func() float64 {
		return float64(gw.SessionCount())
	})
	collector.Gauge("ledger_last_block", "Last applied block number.", func() float64 {
		return float64(l.Stats().LastBlock)
	})
	collector.Counter("ledger_blocks_applied_total", "Blocks applied to the store.", func() float64 {
		return float64(l.Stats().BlocksApplied)
	})

	// Gateway HTTP server
	gwMux := http.NewServeMux()
	gwMux.Handle(cfg.Gateway.Path, gw)
	gatewayServer := &http.Server{
		Addr:              cfg.Gateway.Listen,
		Handler:           gwMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Health and metrics server
	healthServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           createHealthHandler(objects, l, gw, relayEngine, collector, cfg.Metrics.Path),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("starting health server", "port", cfg.Metrics.Port)
		if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("health server: %w", err)
		}
	}()
	go func() {
		logger.Info("starting gateway", "listen", cfg.Gateway.Listen, "path", cfg.Gateway.Path)
		if err := gatewayServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("gateway server: %w", err)
		}
	}()

	// Kafka ingest
	if cfg.Ingest.Enabled {
		ingester := ledger.NewIngester(ledger.IngesterConfig{
			Brokers:  cfg.Ingest.Brokers,
			Topic:    cfg.Ingest.Topic,
			GroupID:  cfg.Ingest.GroupID,
			MinBytes: cfg.Ingest.MinBytes,
			MaxBytes: cfg.Ingest.MaxBytes,
			MaxWait:  cfg.Ingest.MaxWait,
		}, l, logger.With("component", "ingest"))
		if err := ingester.Start(ctx); err != nil {
			return fmt.Errorf("start ingester: %w", err)
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stopCancel()
			ingester.Stop(stopCtx)
			stats := ingester.Stats()
			logger.Info("ingester stopped", "applied", stats.Applied, "stale", stats.Stale)
		}()
	}

	logger.Info("notifyd running",
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
		"relay", cfg.Relay.Enabled,
		"ingest", cfg.Ingest.Enabled,
	)

	// Wait for shutdown
	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Hijacked WebSocket connections are not tracked by Shutdown.
	gatewayServer.Shutdown(shutdownCtx)
	if err := gw.Close(shutdownCtx); err != nil {
		logger.Warn("gateway close incomplete", "error", err)
	}
	healthServer.Shutdown(shutdownCtx)

	return runErr
}

// relayKeys parses the configured relay objects and markets.
func relayKeys(cfg config.RelayConfig) ([]model.ObjectID, []model.AssetPair, error) {
	ids := make([]model.ObjectID, 0, len(cfg.Objects))
	for i, s := range cfg.Objects {
		id, err := model.ParseObjectID(s)
		if err != nil {
			return nil, nil, fmt.Errorf("objects[%d]: %w", i, err)
		}
		ids = append(ids, id)
	}

	pairs := make([]model.AssetPair, 0, len(cfg.Markets))
	for i, m := range cfg.Markets {
		p, err := m.Pair()
		if err != nil {
			return nil, nil, fmt.Errorf("markets[%d]: %w", i, err)
		}
		pairs = append(pairs, p)
	}
	return ids, pairs, nil
}

// createHealthHandler creates the HTTP handler for health checks and metrics.
// relayEngine may be nil.
func createHealthHandler(objects store.ObjectStore, l *ledger.Ledger, gw *gateway.Server, relayEngine *notify.Engine, collector *metrics.Collector, metricsPath string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(metricsPath, collector.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string                 `json:"status"`
			Version    version.Info           `json:"version"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Version:    version.Get(),
			Components: make(map[string]interface{}),
		}

		// Check store
		if err := objects.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["store"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["store"] = "connected"
		}

		ls := l.Stats()
		health.Components["ledger"] = map[string]interface{}{
			"last_block":     ls.LastBlock,
			"blocks_applied": ls.BlocksApplied,
			"listeners":      ls.Listeners,
		}

		gs := gw.Stats()
		health.Components["gateway"] = map[string]interface{}{
			"sessions": gs.Sessions,
			"accepted": gs.Accepted,
		}

		if relayEngine != nil {
			rs := relayEngine.Stats()
			health.Components["relay"] = map[string]interface{}{
				"state":        rs.State.String(),
				"objects":      rs.Objects,
				"markets":      rs.Markets,
				"rounds":       rs.Rounds,
				"failures":     rs.Failures,
				"queue_length": rs.Queue.Count,
			}
			if rs.Objects+rs.Markets == 0 {
				health.Status = "degraded"
			}
		}

		// Set response
		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
