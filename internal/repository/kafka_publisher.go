package repository

import (
	"context"

	"FuelCast/internal/domain/models"
	"FuelCast/internal/domain/repository"
	pkgkafka "FuelCast/pkg/kafka"
	"FuelCast/pkg/util"
)

// KafkaForecastPublisher publishes forecast records to a Kafka topic,
// keyed by target date so downstream consumers see re-forecasts for the
// same date in order.
type KafkaForecastPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaForecastPublisher(producer *pkgkafka.Producer, topic string) repository.Publisher {
	return &KafkaForecastPublisher{producer: producer, topic: topic}
}

func (p *KafkaForecastPublisher) PublishForecast(ctx context.Context, rec models.ForecastRecord) error {
	key := []byte(util.FormatDay(rec.TargetDate))
	return p.producer.Publish(ctx, p.topic, key, rec)
}

func (p *KafkaForecastPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
