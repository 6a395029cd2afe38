//go:build wireinject
// +build wireinject

package di

import (
	"FuelCast/pkg/config"
	"FuelCast/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideRedisClient,
		ProvideForecastCache,
		ProvideSweepLock,

		// Repositories
		ProvideFeatureStore,
		ProvideResultStore,
		ProvidePublisher,

		// Forecasting core
		ProvideEngine,
		ProvideHarness,

		// Use cases and transport
		ProvideForecastHub,
		ProvideForecastService,
		ProvideFeaturesHandler,
		ProvideJobQueue,
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
