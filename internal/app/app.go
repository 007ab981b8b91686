package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"

	"github.com/andreyxaxa/Product-Composite/config"
	"github.com/andreyxaxa/Product-Composite/internal/controller/events"
	"github.com/andreyxaxa/Product-Composite/internal/controller/restapi"
	"github.com/andreyxaxa/Product-Composite/internal/controller/worker/archive"
	"github.com/andreyxaxa/Product-Composite/internal/infrastructure"
	infrakafka "github.com/andreyxaxa/Product-Composite/internal/infrastructure/kafka"
	"github.com/andreyxaxa/Product-Composite/internal/infrastructure/membroker"
	"github.com/andreyxaxa/Product-Composite/internal/infrastructure/services"
	"github.com/andreyxaxa/Product-Composite/internal/obs"
	"github.com/andreyxaxa/Product-Composite/internal/repo"
	"github.com/andreyxaxa/Product-Composite/internal/repo/persistent"
	"github.com/andreyxaxa/Product-Composite/internal/usecase/catalog"
	"github.com/andreyxaxa/Product-Composite/internal/usecase/composite"
	"github.com/andreyxaxa/Product-Composite/pkg/httpserver"
	"github.com/andreyxaxa/Product-Composite/pkg/kafka/producer"
	"github.com/andreyxaxa/Product-Composite/pkg/logger"
	"github.com/andreyxaxa/Product-Composite/pkg/postgres"
	"github.com/andreyxaxa/Product-Composite/pkg/s3client"
	"github.com/andreyxaxa/Product-Composite/pkg/stream"
	"github.com/andreyxaxa/Product-Composite/pkg/workerpool"
)

func Run(cfg *config.Config) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Logger
	l := logger.New(cfg.Log.Level)

	// Metrics
	var (
		streamMetrics   stream.Metrics     = stream.NopMetrics{}
		observer        composite.Observer = composite.NopObserver{}
		metricsListener *obs.Listener
	)

	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		m := obs.NewMetrics(registry, cfg.App.Name)
		streamMetrics = m
		observer = m
		metricsListener = obs.NewListener(cfg.Metrics.Port, registry)
	}

	// Worker Pool
	pool := workerpool.New(
		workerpool.Workers(cfg.Pool.Workers),
		workerpool.QueueDepth(cfg.Pool.QueueDepth),
	)
	if err := pool.Start(); err != nil {
		l.Fatal(fmt.Errorf("app - Run - pool.Start: %w", err))
	}

	// Retry / Consumer
	policy := stream.RetryPolicy{
		MaxAttempts:     cfg.Consumer.MaxAttempts,
		InitialInterval: cfg.Consumer.BackOffInitialInterval,
		MaxInterval:     cfg.Consumer.BackOffMaxInterval,
		Multiplier:      cfg.Consumer.BackOffMultiplier,
	}

	consumerCfg := stream.ConsumerConfig{
		Group:  cfg.Consumer.Group,
		Policy: policy,
	}
	if cfg.Consumer.Partitioned {
		consumerCfg.InstanceIndex = cfg.Consumer.InstanceIndex
		consumerCfg.InstanceCount = cfg.Consumer.InstanceCount
	}

	topics := []string{
		cfg.Stream.ProductsTopic,
		cfg.Stream.ReviewsTopic,
		cfg.Stream.RecommendationsTopic,
	}

	// Stream Binder
	var (
		eventPublisher  infrastructure.EventPublisher
		eventSubscriber infrastructure.EventSubscriber
		memBroker       *stream.Broker
		sink            = stream.NewMemorySink()
	)

	switch cfg.Stream.Binder {
	case "memory":
		memBroker = stream.NewBroker()
		for _, topic := range topics {
			if err := memBroker.CreateTopic(topic, cfg.Stream.PartitionCount); err != nil {
				l.Fatal(fmt.Errorf("app - Run - memBroker.CreateTopic: %w", err))
			}
		}

		selector, err := stream.SelectorFor(cfg.Stream.PartitionKeyExpression)
		if err != nil {
			l.Fatal(fmt.Errorf("app - Run - stream.SelectorFor: %w", err))
		}

		eventPublisher = membroker.NewEventPublisher(stream.NewPublisher(
			memBroker,
			stream.WithPublishAttempts(cfg.Stream.PublishAttempts),
			stream.WithPublishInterval(cfg.Stream.PublishInterval),
			stream.WithKeySelector(selector),
			stream.WithPublishMetrics(streamMetrics),
		))
		eventSubscriber = membroker.NewEventSubscriber(stream.NewDispatcher(
			memBroker,
			pool,
			sink,
			stream.WithDispatchPolicy(policy),
			stream.WithDispatchMetrics(streamMetrics),
		))
	case "kafka":
		// хэш по ключу сообщения: одинаковый productId - одна партиция
		kafkaProducer, err := producer.New(ctx, cfg.Kafka.Brokers, producer.Balancer(&kafka.Hash{}))
		if err != nil {
			l.Fatal(fmt.Errorf("app - Run - producer.New: %w", err))
		}

		dlqProducer, err := producer.New(ctx, cfg.Kafka.Brokers)
		if err != nil {
			l.Fatal(fmt.Errorf("app - Run - producer.New (dlq): %w", err))
		}

		eventPublisher = infrakafka.NewEventPublisher(kafkaProducer)
		eventSubscriber = infrakafka.NewEventSubscriber(cfg.Kafka.Brokers, cfg.Stream.DLQSuffix, policy, dlqProducer, l)
	default:
		l.Fatal(fmt.Errorf("app - Run - unknown stream binder: %q", cfg.Stream.Binder))
	}

	// Leaf Service Clients
	productClient := services.NewProductClient(services.New(cfg.Services.ProductURL, cfg.Services.CallTimeout))
	reviewClient := services.NewReviewClient(services.New(cfg.Services.ReviewURL, cfg.Services.CallTimeout))
	recommendationClient := services.NewRecommendationClient(services.New(cfg.Services.RecommendationURL, cfg.Services.CallTimeout))

	// Use-Case

	// composite use-case
	compositeUseCase := composite.New(
		productClient,
		reviewClient,
		recommendationClient,
		eventPublisher,
		pool,
		composite.Topics{
			Products:        cfg.Stream.ProductsTopic,
			Reviews:         cfg.Stream.ReviewsTopic,
			Recommendations: cfg.Stream.RecommendationsTopic,
		},
		cfg.App.ServiceAddr,
		cfg.Services.StrictJoin,
		observer,
		l,
	)

	// catalog use-case (проекция, которую наполняют консьюмеры)
	catalogUseCase := catalog.New()

	// Events Controller
	eventsController := events.New(
		eventSubscriber,
		catalogUseCase,
		consumerCfg,
		cfg.Stream.ProductsTopic,
		cfg.Stream.ReviewsTopic,
		cfg.Stream.RecommendationsTopic,
		l,
	)

	// Archive Worker (только для memory-биндера: у kafka есть свои dlq-топики)
	var (
		archiveWorker *archive.Archiver
		pg            *postgres.Postgres
	)

	if cfg.Archive.Enabled && cfg.Stream.Binder == "memory" {
		var (
			dlRepo repo.DeadLetterRepo
			store  repo.ArchiveStore
		)

		if cfg.Archive.PG.Enabled {
			var err error
			pg, err = postgres.New(cfg.Archive.PG.URL, postgres.MaxPoolSize(cfg.Archive.PG.PoolMax))
			if err != nil {
				l.Fatal(fmt.Errorf("app - Run - postgres.New: %w", err))
			}

			dlRepo = persistent.NewDeadLetterRepo(pg)
		}

		if cfg.Archive.S3.Enabled {
			s3Ctx, s3Cancel := context.WithTimeout(ctx, cfg.Archive.S3.CfgLoadTimeout)
			s3c, err := s3client.New(
				s3Ctx,
				cfg.Archive.S3.Endpoint,
				cfg.Archive.S3.AccessKey,
				cfg.Archive.S3.SecretKey,
				s3client.EnsureBucket(cfg.Archive.S3.Bucket),
			)
			s3Cancel()
			if err != nil {
				l.Fatal(fmt.Errorf("app - Run - s3client.New: %w", err))
			}

			store = persistent.NewArchiveStore(s3c, cfg.Archive.S3.Bucket)
		}

		if dlRepo == nil && store == nil {
			l.Fatal(fmt.Errorf("app - Run - archive is enabled but no storage is configured"))
		}

		archiveWorker = archive.New(sink, dlRepo, store, l, cfg.Archive.PollInterval, cfg.Archive.BatchSize)
	}

	if pg != nil {
		defer pg.Close()
	}

	// HTTP Server
	httpServer := httpserver.New(l, httpserver.Port(cfg.HTTP.Port), httpserver.Prefork(cfg.HTTP.UsePreforkMode))
	restapi.NewRouter(httpServer.App, cfg, compositeUseCase, l)

	// Start Components
	if err := eventsController.Start(); err != nil {
		l.Fatal(fmt.Errorf("app - Run - eventsController.Start: %w", err))
	}

	if archiveWorker != nil {
		if err := archiveWorker.Start(ctx); err != nil {
			l.Fatal(fmt.Errorf("app - Run - archiveWorker.Start: %w", err))
		}
	}

	var metricsNotify <-chan error
	if metricsListener != nil {
		metricsListener.Start()
		metricsNotify = metricsListener.Notify()
	}

	httpServer.Start()

	// Waiting Signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	select {
	case s := <-interrupt:
		l.Info("app - Run - signal: %s", s.String())
	case err := <-httpServer.Notify():
		l.Error(fmt.Errorf("app - Run - httpServer.Notify: %w", err))
	case err := <-metricsNotify:
		l.Error(fmt.Errorf("app - Run - metricsListener.Notify: %w", err))
	}

	// Shutdown: сначала входной трафик, затем доставка, затем хвосты
	if err := httpServer.Shutdown(); err != nil {
		l.Error(fmt.Errorf("app - Run - httpServer.Shutdown: %w", err))
	}

	ecShutdownCtx, ecShutdownCancel := context.WithTimeout(ctx, cfg.Consumer.ShutdownTimeout)
	defer ecShutdownCancel()
	if err := eventsController.Shutdown(ecShutdownCtx); err != nil {
		l.Error(fmt.Errorf("app - Run - eventsController.Shutdown: %w", err))
	}

	if archiveWorker != nil {
		awShutdownCtx, awShutdownCancel := context.WithTimeout(ctx, cfg.Archive.ShutdownTimeout)
		defer awShutdownCancel()
		if err := archiveWorker.Shutdown(awShutdownCtx); err != nil {
			l.Error(fmt.Errorf("app - Run - archiveWorker.Shutdown: %w", err))
		}
	}

	poolShutdownCtx, poolShutdownCancel := context.WithTimeout(ctx, cfg.Pool.ShutdownTimeout)
	defer poolShutdownCancel()
	if err := pool.Shutdown(poolShutdownCtx); err != nil {
		l.Error(fmt.Errorf("app - Run - pool.Shutdown: %w", err))
	}

	if err := eventPublisher.Close(); err != nil {
		l.Error(fmt.Errorf("app - Run - eventPublisher.Close: %w", err))
	}

	if metricsListener != nil {
		mlShutdownCtx, mlShutdownCancel := context.WithTimeout(ctx, cfg.Metrics.ShutdownTimeout)
		defer mlShutdownCancel()
		if err := metricsListener.Shutdown(mlShutdownCtx); err != nil {
			l.Error(fmt.Errorf("app - Run - metricsListener.Shutdown: %w", err))
		}
	}

	if memBroker != nil {
		if err := memBroker.Close(); err != nil {
			l.Error(fmt.Errorf("app - Run - memBroker.Close: %w", err))
		}
	}
}
