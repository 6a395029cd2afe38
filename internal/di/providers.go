package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"FuelCast/internal/domain/models"
	"FuelCast/internal/domain/repository"
	"FuelCast/internal/forecast"
	"FuelCast/internal/handler/api"
	internalrepo "FuelCast/internal/repository"
	icache "FuelCast/internal/service/cache"
	"FuelCast/internal/usecase"
	"FuelCast/internal/validation"
	pkgcache "FuelCast/pkg/cache"
	pkgch "FuelCast/pkg/clickhouse"
	"FuelCast/pkg/config"
	pkgkafka "FuelCast/pkg/kafka"
	applogger "FuelCast/pkg/logger"
	"FuelCast/pkg/metrics"
	"FuelCast/pkg/queue"
	"FuelCast/pkg/server"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "json"
	if cfg.Environment == "development" {
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: "info", Format: format, Output: "stdout"})
}

// ProvideMetrics creates the Prometheus metrics recorder.
func ProvideMetrics() *metrics.Recorder {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and applies the
// schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, internalrepo.SchemaStatements()); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer for forecast records.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates the feature-row consumer.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideRedisClient creates the shared redis client, nil when redis is
// disabled.
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ProvideForecastCache picks redis when enabled, the in-process TTL
// cache otherwise.
func ProvideForecastCache(cfg *config.Config) icache.BytesCache {
	if cfg.Redis.Enabled {
		return icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	return icache.NewTTLCache()
}

// ProvideSweepLock builds the sweep lock: redis when enabled so sweeps
// serialize across instances, an in-process memory cache otherwise so a
// single instance still cannot run overlapping sweeps.
func ProvideSweepLock(cfg *config.Config) (usecase.SweepLocker, error) {
	if !cfg.Redis.Enabled {
		return pkgcache.NewMemoryCache(), nil
	}
	host, portStr, err := net.SplitHostPort(cfg.Redis.Addr)
	if err != nil {
		return nil, fmt.Errorf("redis addr: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("redis port: %w", err)
	}
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPrefix("fuelcast"),
	)
	if err != nil {
		return nil, fmt.Errorf("redis lock: %w", err)
	}
	return rc, nil
}

// ProvideEngine builds the ensemble engine from config.
func ProvideEngine(cfg *config.Config) (*forecast.Engine, error) {
	weights := make(map[models.Regime]models.EnsembleWeights, len(cfg.Forecast.Weights))
	for name, w := range cfg.Forecast.Weights {
		weights[models.Regime(name)] = models.EnsembleWeights{
			Baseline: w.Baseline,
			Residual: w.Residual,
			Basis:    w.Basis,
		}
	}
	return forecast.NewEngine(forecast.EngineParams{
		AlphaGrid:   cfg.Forecast.AlphaGrid,
		CVSplits:    cfg.Forecast.CVSplits,
		MinBasisLag: cfg.Forecast.MinBasisLag,
		Quantiles:   cfg.Forecast.Quantiles,
		QuantAlpha:  cfg.Forecast.QuantAlpha,
		Weights:     weights,
		Thresholds: forecast.RegimeThresholds{
			High: cfg.Forecast.Regime.HighThreshold,
			Low:  cfg.Forecast.Regime.LowThreshold,
		},
	})
}

// ProvideHarness builds the walk-forward validation harness.
func ProvideHarness(cfg *config.Config, engine *forecast.Engine, l *applogger.Logger, rec *metrics.Recorder) (*validation.Harness, error) {
	return validation.NewHarness(validation.Config{
		Years:        cfg.Validation.Years,
		HorizonsDays: cfg.Validation.HorizonsDays,
		StrideDays:   cfg.Validation.StrideDays,
		MinTrainRows: cfg.Validation.MinTrainRows,
		Workers:      cfg.Validation.Workers,
		CoverageTol:  cfg.Validation.CoverageTol,
	}, engine, l, rec)
}

// ProvideFeatureStore creates the ClickHouse feature store.
func ProvideFeatureStore(ch *pkgch.Client, l *applogger.Logger) repository.FeatureStore {
	store := internalrepo.NewCHFeatureStore(ch)
	store.SetLogger(l)
	return store
}

// ProvideResultStore creates the ClickHouse result store.
func ProvideResultStore(ch *pkgch.Client, l *applogger.Logger) repository.ResultStore {
	store := internalrepo.NewCHResultStore(ch)
	store.SetLogger(l)
	return store
}

// ProvidePublisher creates the Kafka forecast publisher.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	return internalrepo.NewKafkaForecastPublisher(producer, cfg.Kafka.ForecastTopic)
}

// ProvideForecastHub creates the websocket fan-out hub.
func ProvideForecastHub(l *applogger.Logger) *api.ForecastHub {
	return api.NewForecastHub(l)
}

// ProvideForecastService wires the core forecasting service.
func ProvideForecastService(
	cfg *config.Config,
	engine *forecast.Engine,
	harness *validation.Harness,
	features repository.FeatureStore,
	results repository.ResultStore,
	publisher repository.Publisher,
	rec *metrics.Recorder,
	l *applogger.Logger,
	hub *api.ForecastHub,
	fcache icache.BytesCache,
	locker usecase.SweepLocker,
) *usecase.ForecastService {
	opts := []usecase.ForecastServiceOption{
		usecase.WithForecastCache(fcache, cfg.Redis.CacheTTL),
		usecase.WithBroadcaster(hub),
		usecase.WithWindowRows(cfg.Forecast.WindowRows),
	}
	if locker != nil {
		opts = append(opts, usecase.WithSweepLock(locker, cfg.Validation.Timeout))
	}
	return usecase.NewForecastService(engine, harness, features, results, publisher, rec, l, opts...)
}

// ProvideFeaturesHandler creates the Kafka feature-row message handler.
func ProvideFeaturesHandler(cfg *config.Config, features repository.FeatureStore, rec *metrics.Recorder) *usecase.KafkaFeaturesHandler {
	return usecase.NewKafkaFeaturesHandler(cfg.Kafka.FeaturesTopic, features, rec)
}

// ProvideJobQueue builds the redis-backed sweep job queue, nil when
// redis is disabled.
func ProvideJobQueue(cfg *config.Config, l *applogger.Logger, client *redis.Client, svc *usecase.ForecastService) *queue.RedisQueue {
	if client == nil {
		return nil
	}
	q := queue.NewRedisQueue(l,
		&queue.QueueConfig{Workers: 1, RetryLimit: 1, RetryDelay: time.Minute},
		client,
		queue.ModeProducerConsumer,
		queue.WithKeyPrefix("fuelcast:queue"),
	)
	q.RegisterJob(usecase.NewValidationSweepJob(svc, cfg.Validation.Timeout, l))
	return q
}

// ProvideHTTPHandler assembles the echo handler.
func ProvideHTTPHandler(l *applogger.Logger, svc *usecase.ForecastService, hub *api.ForecastHub, rq *queue.RedisQueue) *api.ForecastEchoHandler {
	h := api.NewForecastEchoHandler(l, svc)
	h.SetHub(hub)
	if rq != nil {
		h.SetQueue(rq)
	}
	return h
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaFeaturesHandler,
	chClient *pkgch.Client,
	rq *queue.RedisQueue,
	handler *api.ForecastEchoHandler,
	publisher repository.Publisher,
	rec *metrics.Recorder,
) *server.App {
	consumer.WithConsumerHook(consumerHook(l, rec))
	app := server.New(cfg, l, consumer, kh, chClient, rq, handler)
	app.OnShutdown(handler.Shutdown)
	app.OnShutdown(func() {
		if err := publisher.Close(); err != nil {
			l.Warn("publisher close error", applogger.Error(err))
		}
	})
	return app
}

// consumerHook stamps handling start time and trace id on the context
// and counts handler failures.
func consumerHook(l *applogger.Logger, rec *metrics.Recorder) pkgkafka.ConsumerHook {
	return pkgkafka.NewHookChain(pkgkafka.HookFuncs{
		Before: func(ctx context.Context, _ string, km kafkago.Message, data []byte) (context.Context, kafkago.Message, []byte, error) {
			ctx = pkgkafka.WithStartTime(ctx, time.Now())
			ctx = pkgkafka.WithTraceID(ctx, pkgkafka.ExtractTraceID(km))
			return ctx, km, data, nil
		},
		Err: func(_ context.Context, topic string, _ kafkago.Message, _ []byte, err error) {
			rec.RecordError("consumer_handle")
			l.Warn("kafka handler error",
				applogger.String("topic", topic),
				applogger.Error(err))
		},
	})
}
