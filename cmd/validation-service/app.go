package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	_ "github.com/lib/pq" // PostgreSQL driver

	"hookrelay/internal/config"
	"hookrelay/internal/constants"
	"hookrelay/internal/dedup"
	"hookrelay/internal/logger"
	"hookrelay/internal/sources"
	"hookrelay/internal/validation"
	"hookrelay/pkg/bootstrap"
	"hookrelay/pkg/health"
	"hookrelay/pkg/logging"
	"hookrelay/pkg/metrics"
	"hookrelay/pkg/migrations"
	"hookrelay/pkg/models"
)

type App struct {
	*bootstrap.Base
	dbConnector *bootstrap.DatabaseConnector
	redis       *redis.Client
	db          *sql.DB
	sources     *sources.Service
	validator   *validation.Service
	dedup       *dedup.Service
	server      *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("validation-service")
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	a.initSources(ctx)
	a.initServices()

	if err := a.InitBroker("validation-service"); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	metrics.RegisterValidationMetrics()
	metrics.RegisterBrokerMetrics()

	a.initHTTPServer()
	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	if a.Config.Deduplication.Enabled {
		rdb, err := a.dbConnector.InitRedis(ctx)
		if err != nil {
			return err
		}
		a.redis = rdb
	}

	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.db = db

	if a.db != nil && a.Config.Database.RunMigrations {
		if err := migrations.RunPostgres(a.db, ""); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) initSources(ctx context.Context) {
	var repo sources.Repository
	if a.db != nil {
		repo = sources.NewRepository(a.db)
	}
	a.sources = sources.NewService(repo, a.Config.Sources, a.Config.Webhooks.Secrets, a.Logger)

	if repo != nil {
		if err := a.sources.Reload(ctx); err != nil {
			a.Logger.WarnwCtx(ctx, "initial source registry load failed, using static secrets until reload",
				"error", err,
			)
		}
	}
}

func (a *App) initServices() {
	a.validator = validation.NewService(a.sources, a.Logger)

	if a.Config.Deduplication.Enabled {
		repo := dedup.NewRepository(a.redis)
		a.dedup = dedup.NewService(repo, a.Config.Deduplication, a.Logger)
	}
}

func (a *App) initHTTPServer() {
	mux := http.NewServeMux()

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewKafkaChecker(a.Config.Broker.Kafka.Brokers))
	if a.redis != nil {
		healthRegistry.Register(health.NewRedisChecker(a.redis))
	}
	if a.db != nil {
		healthRegistry.Register(health.NewPostgreSQLChecker(a.db))
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		h := healthRegistry.Check(r.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		fmt.Fprintf(w, `{"status":"%s","timestamp":"%s"}`, h.Status, h.Timestamp.Format(time.RFC3339))
	})

	mux.Handle("/metrics", promhttp.Handler())

	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler: mux,
	}
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	if a.db != nil {
		g.Go(func() error {
			err := a.sources.StartReloader(gCtx)
			if err == context.Canceled {
				return nil
			}
			return err
		})
	}

	inboundTopic := a.Config.Broker.Kafka.InboundTopic
	if inboundTopic == "" {
		inboundTopic = constants.DefaultInboundTopic
	}
	receivedTopic := a.Config.Broker.Kafka.ReceivedTopic
	if receivedTopic == "" {
		receivedTopic = constants.DefaultReceivedTopic
	}

	g.Go(func() error {
		return a.Consumer.Consume(gCtx, inboundTopic, a.handleMessage(receivedTopic))
	})

	g.Go(func() error {
		<-gCtx.Done()
		return a.Shutdown(context.Background())
	})

	return g.Wait()
}

func (a *App) handleMessage(receivedTopic string) func(context.Context, models.WebhookEnvelope) error {
	return func(ctx context.Context, envelope models.WebhookEnvelope) error {
		ctx = logging.WithWebhookID(ctx, envelope.ID)
		ctx = logging.WithSource(ctx, envelope.Source)

		if err := a.validator.Validate(ctx, &envelope); err != nil {
			return err
		}

		if a.dedup != nil {
			isUnique, err := a.dedup.IsUnique(ctx, envelope)
			if err != nil {
				return err
			}
			if !isUnique {
				a.Logger.InfowCtx(ctx, "webhook duplicate, dropping")
				return nil
			}
			if envelope.Metadata.Validation != nil {
				envelope.Metadata.Validation.IsUnique = true
			}
		}

		// The signature has been checked; downstream stages only need the
		// decoded payload.
		envelope.RawBody = nil

		if err := a.Producer.Publish(ctx, receivedTopic, envelope); err != nil {
			return fmt.Errorf("failed to publish validated webhook: %w", err)
		}
		a.Logger.InfowCtx(ctx, "webhook validated",
			"output_topic", receivedTopic,
		)
		return nil
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			if err := a.server.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("HTTP server shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redis, a.db, nil)...)
		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
