package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	_ "github.com/lib/pq" // PostgreSQL driver

	"hookrelay/internal/analytics"
	"hookrelay/internal/archive"
	"hookrelay/internal/config"
	"hookrelay/internal/constants"
	"hookrelay/internal/delivery"
	"hookrelay/internal/logger"
	"hookrelay/internal/sources"
	"hookrelay/pkg/bootstrap"
	"hookrelay/pkg/cel"
	"hookrelay/pkg/circuitbreaker"
	"hookrelay/pkg/health"
	"hookrelay/pkg/logging"
	"hookrelay/pkg/metrics"
	"hookrelay/pkg/migrations"
	"hookrelay/pkg/models"
)

type App struct {
	*bootstrap.Base
	dbConnector *bootstrap.DatabaseConnector
	db          *sql.DB
	mongoClient *mongo.Client
	sources     *sources.Service
	client      analytics.Client
	service     *delivery.Service
	archiveRepo archive.Repository
	server      *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("delivery-service")
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

	if err := a.initSources(ctx); err != nil {
		return fmt.Errorf("failed to initialize source registry: %w", err)
	}

	if err := a.initService(ctx); err != nil {
		return fmt.Errorf("failed to initialize service: %w", err)
	}

	if err := a.InitBroker("delivery-service"); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	metrics.RegisterDeliveryMetrics()
	metrics.RegisterBrokerMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	a.initHTTPServer()
	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
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

	mongoClient, err := a.dbConnector.InitMongoDB(ctx)
	if err != nil {
		return err
	}
	a.mongoClient = mongoClient
	return nil
}

func (a *App) initSources(ctx context.Context) error {
	var repo sources.Repository
	if a.db != nil {
		repo = sources.NewRepository(a.db)
	}

	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return err
	}
	a.sources = sources.NewService(repo, a.Config.Sources, a.Config.Webhooks.Secrets, a.Logger,
		sources.WithFilterValidator(evaluator),
	)

	if repo != nil {
		if err := a.sources.Reload(ctx); err != nil {
			a.Logger.WarnwCtx(ctx, "initial source registry load failed, suppression filters unavailable until reload",
				"error", err,
			)
		}
	}
	return nil
}

func (a *App) initService(ctx context.Context) error {
	timeout := time.Duration(a.Config.Analytics.TimeoutSeconds) * time.Second
	a.client = analytics.NewPostHogClient(a.Config.Analytics.APIKey, a.Config.Analytics.Host, timeout)

	opts := []delivery.Option{
		delivery.WithFilterProvider(a.sources),
	}

	if a.Config.CircuitBreaker.Enabled {
		breaker := circuitbreaker.NewWrapper(circuitbreaker.RatioConfig(
			"analytics-sink",
			a.Config.CircuitBreaker.MaxRequests,
			a.Config.CircuitBreaker.MinRequests,
			a.Config.CircuitBreaker.Interval,
			a.Config.CircuitBreaker.Timeout,
			a.Config.CircuitBreaker.FailureRatio,
		))
		opts = append(opts, delivery.WithCircuitBreaker(breaker))
		initCtx := logging.WithServiceName(ctx, "delivery-service")
		a.Logger.InfowCtx(initCtx, "Circuit breaker enabled for analytics sink")
	}

	if a.mongoClient != nil {
		dbName := a.Config.Database.MongoDB.Database
		if dbName == "" {
			dbName = constants.DefaultMongoDBName
		}
		mongoDB := a.mongoClient.Database(dbName)
		if err := migrations.EnsureArchiveCollection(ctx, mongoDB); err != nil {
			return err
		}
		a.archiveRepo = archive.NewRepository(mongoDB)
		opts = append(opts, delivery.WithArchive(a.archiveRepo))
	}

	service, err := delivery.NewService(a.client, a.Logger, opts...)
	if err != nil {
		return err
	}
	a.service = service
	return nil
}

func (a *App) initHTTPServer() {
	mux := http.NewServeMux()

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewKafkaChecker(a.Config.Broker.Kafka.Brokers))
	healthRegistry.Register(health.NewAnalyticsSinkChecker(a.Config.Analytics.Host))
	if a.db != nil {
		healthRegistry.Register(health.NewPostgreSQLChecker(a.db))
	}
	if a.mongoClient != nil {
		healthRegistry.Register(health.NewMongoDBChecker(a.mongoClient))
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

	if a.archiveRepo != nil {
		archive.NewHandler(a.archiveRepo).Register(mux)
	}

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

	receivedTopic := a.Config.Broker.Kafka.ReceivedTopic
	if receivedTopic == "" {
		receivedTopic = constants.DefaultReceivedTopic
	}

	g.Go(func() error {
		return a.Consumer.Consume(gCtx, receivedTopic, a.handleMessage)
	})

	g.Go(func() error {
		<-gCtx.Done()
		return a.Shutdown(context.Background())
	})

	return g.Wait()
}

func (a *App) handleMessage(ctx context.Context, envelope models.WebhookEnvelope) error {
	ctx = logging.WithWebhookID(ctx, envelope.ID)
	ctx = logging.WithSource(ctx, envelope.Source)
	return a.service.Process(ctx, envelope)
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

		if a.client != nil {
			if err := a.client.Close(); err != nil {
				errs = append(errs, fmt.Errorf("analytics client close error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, nil, a.db, a.mongoClient)...)
		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
