package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/alerts"
	"github.com/ukydev/fleet-maintenance/internal/auth"
	"github.com/ukydev/fleet-maintenance/internal/broker/mqtt"
	"github.com/ukydev/fleet-maintenance/internal/cache/rediscache"
	"github.com/ukydev/fleet-maintenance/internal/compliance"
	"github.com/ukydev/fleet-maintenance/internal/config"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/handlers"
	"github.com/ukydev/fleet-maintenance/internal/maintenance"
	"github.com/ukydev/fleet-maintenance/internal/middleware"
	"github.com/ukydev/fleet-maintenance/internal/snapshot"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()
	logger := newLogger(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("service stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	client, err := db.ConnectMongo(ctx, cfg.Mongo.URI)
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(dctx)
	}()
	database := client.Database(cfg.Mongo.Database)
	if err := db.EnsureIndexes(ctx, database); err != nil {
		return err
	}
	stores := db.NewStores(database)
	logger.WithField("database", cfg.Mongo.Database).Info("connected to MongoDB")

	sessions, limiter, closeState := sessionBackends(ctx, cfg.Redis, logger)
	defer closeState()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	feed := alerts.NewFeed(sessions, cfg.LiveNotificationCap, logger)
	if cfg.MQTT.Broker != "" {
		sub, err := subscribe(cfg.MQTT, feed, logger)
		if err != nil {
			logger.WithError(err).Warn("live notifications disabled")
		} else {
			defer sub.Stop()
		}
	}

	authService, err := auth.NewService(cfg.JWT)
	if err != nil {
		return err
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Auth: handlers.NewAuthHandler(authService, stores.Users, logger),
		Fleet: handlers.NewFleetHandler(handlers.FleetDeps{
			Registry:   maintenance.NewRegistry(stores.Schedules, stores.Vehicles, logger),
			Recalc:     maintenance.NewEngine(stores.Schedules, stores.Vehicles, logger),
			Vehicles:   stores.Vehicles,
			Loader:     snapshot.NewLoader(snapshot.FromStores(stores)),
			Aggregator: alerts.NewAggregator(cfg.Thresholds, logger, alerts.NewMetrics(registry)),
			Evaluator:  compliance.NewEvaluator(cfg.Thresholds),
			Feed:       feed,
			Logger:     logger,
		}),
		AuthMW:     middleware.NewAuthMiddleware(authService),
		Limiter:    limiter,
		RateLimit:  cfg.RateLimit.Requests,
		Window:     time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
		TrustProxy: cfg.RateLimit.TrustProxy,
		Gatherer:   registry,
		Logger:     logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.HTTPPort).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}

// newLogger builds the process logger from the logging settings.
func newLogger(c config.LoggingConfig) *log.Logger {
	logger := log.New()
	level, err := log.ParseLevel(c.Level)
	if err != nil {
		level = log.InfoLevel
	}
	logger.SetLevel(level)
	if strings.EqualFold(c.Format, "text") {
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&log.JSONFormatter{})
	}
	return logger
}

// sessionBackends returns the notification session store and the rate
// limiter. Without a reachable Redis both fall back to process memory.
func sessionBackends(ctx context.Context, c config.RedisConfig, logger log.FieldLogger) (alerts.SessionStore, middleware.Limiter, func()) {
	if c.Addr == "" {
		return alerts.NewMemoryStore(), middleware.NewMemoryLimiter(), func() {}
	}
	client, err := rediscache.NewClient(ctx, rediscache.Options{Addr: c.Addr, Password: c.Password, DB: c.DB})
	if err != nil {
		logger.WithError(err).Warn("redis unavailable, keeping session state in memory")
		return alerts.NewMemoryStore(), middleware.NewMemoryLimiter(), func() {}
	}
	logger.WithField("addr", c.Addr).Info("connected to Redis")
	return rediscache.NewSessionStore(client, c.SessionTTL), rediscache.NewRateLimiter(client), func() { _ = client.Close() }
}

func subscribe(c config.MQTTConfig, feed mqtt.Broadcaster, logger log.FieldLogger) (*mqtt.Subscriber, error) {
	client, err := mqtt.Connect(mqtt.Options{Broker: c.Broker, ClientID: c.ClientID, Topic: c.Topic})
	if err != nil {
		return nil, err
	}
	sub := mqtt.NewSubscriber(client, c.Topic, feed, logger)
	if err := sub.Start(); err != nil {
		client.Disconnect(250)
		return nil, err
	}
	return sub, nil
}
