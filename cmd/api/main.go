// Package main provides the entrypoint for the route quality API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/breatheroute/routequality/internal/api"
	"github.com/breatheroute/routequality/internal/api/handler"
	"github.com/breatheroute/routequality/internal/api/middleware"
	"github.com/breatheroute/routequality/internal/config"
	"github.com/breatheroute/routequality/internal/events"
	"github.com/breatheroute/routequality/internal/pipeline"
	"github.com/breatheroute/routequality/internal/resilience"
	"github.com/breatheroute/routequality/internal/routescore"
	"github.com/breatheroute/routequality/internal/scoring"
	"github.com/breatheroute/routequality/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "routequality-api"

func main() {
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	if err := config.LoadDotEnv(); err != nil {
		log.Fatal().Err(err).Msg("failed to load .env")
	}

	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", configPath).Msg("failed to load config")
	}

	log = newLogger(cfg.Logging)
	log.Info().
		Str("build_time", BuildTime).
		Str("environment", cfg.Server.Environment).
		Msg("starting route quality API")

	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Server.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.Telemetry.Enabled {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	httpMetrics, err := middleware.NewMetrics(tp.Meter)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize HTTP metrics")
	}
	scoreMetrics, err := routescore.NewMetrics(tp.Meter)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize score metrics")
	}

	registry := resilience.NewRegistry()

	publisher, err := newPublisher(ctx, cfg.Events, registry, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Events.Driver).Msg("failed to initialize event publisher")
	}
	defer func() {
		if closeErr := publisher.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close event publisher")
		}
	}()

	engine := scoring.NewEngine(scoring.EngineConfig{})
	svc := routescore.NewService(routescore.ServiceConfig{
		Engine: engine,
		Pipeline: pipeline.NewRunner(pipeline.RunnerConfig{
			Config: pipeline.Config{Concurrency: cfg.Scoring.PipelineConcurrency},
			Engine: engine,
			Logger: log,
		}),
		Publisher: publisher,
		Metrics:   scoreMetrics,
		Logger:    log,
		Settings:  scoreSettings(cfg),
	})
	log.Info().Str("engine", svc.DefaultEngine()).Msg("score service ready")

	ops := handler.NewOpsHandler(handler.OpsConfig{
		Version:   Version,
		BuildTime: BuildTime,
		Registry:  registry,
		Status:    svc,
	})

	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Service:     svc,
		Ops:         ops,
		Registry:    registry,
		Metrics:     httpMetrics,
		Gatherer:    newPromRegistry(),
		RateLimit:   middleware.PerMinute(cfg.RateLimit.RequestsPerMinute),
		RequireTLS:  cfg.Server.RequireTLS,
	})

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	if configPath != "" {
		go func() {
			err := config.Watch(watchCtx, configPath, log, func(next *config.Config) {
				svc.UpdateSettings(scoreSettings(next))
				log.Info().
					Str("engine", svc.DefaultEngine()).
					Int("max_batch_routes", next.Scoring.MaxBatchRoutes).
					Msg("scoring settings updated")
			})
			if err != nil {
				log.Error().Err(err).Msg("config watcher stopped")
			}
		}()
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	ops.SetReady(false)
	stopWatch()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	// Let in-flight score events reach the broker before the publisher closes.
	svc.Wait()

	log.Info().Msg("server stopped")
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var log zerolog.Logger
	if cfg.Pretty {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		log = zerolog.New(os.Stdout)
	}

	return log.Level(level).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()
}

func scoreSettings(cfg *config.Config) routescore.Settings {
	return routescore.Settings{
		PipelineDefault: cfg.Scoring.PipelineDefault,
		MaxBatchRoutes:  cfg.Scoring.MaxBatchRoutes,
	}
}

// newPublisher builds the configured event publisher. Broker publishers are
// wrapped in a resilience executor registered under the driver name.
func newPublisher(ctx context.Context, cfg config.EventsConfig, registry *resilience.Registry, log zerolog.Logger) (events.Publisher, error) {
	var next events.Publisher
	switch cfg.Driver {
	case config.DriverPubSub:
		p, err := events.NewPubSubPublisher(ctx, events.PubSubConfig{
			ProjectID: cfg.PubSub.ProjectID,
			TopicID:   cfg.PubSub.Topic,
			Logger:    log,
		})
		if err != nil {
			return nil, err
		}
		next = p
		log.Info().Str("topic", cfg.PubSub.Topic).Msg("publishing score events to Pub/Sub")
	case config.DriverNATS:
		p, err := events.NewNATSPublisher(events.NATSConfig{
			URL:     cfg.NATS.URL,
			Subject: cfg.NATS.Subject,
			Logger:  log,
		})
		if err != nil {
			return nil, err
		}
		next = p
		log.Info().Str("subject", cfg.NATS.Subject).Msg("publishing score events to NATS")
	default:
		return events.NoopPublisher{}, nil
	}

	execCfg := resilience.DefaultExecutorConfig(cfg.Driver)
	execCfg.MaxRetries = cfg.MaxRetries
	execCfg.Registry = registry
	return events.NewResilientPublisher(next, resilience.NewExecutor(execCfg)), nil
}

func newPromRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)

	info := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "routequality_info",
		Help: "Version of the running route quality API.",
	}, []string{"version", "build_time"})
	info.WithLabelValues(Version, BuildTime).Set(1)
	reg.MustRegister(info)

	return reg
}
