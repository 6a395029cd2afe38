package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"FuelCast/internal/domain/models"
	domrepo "FuelCast/internal/domain/repository"
	"FuelCast/internal/forecast"
	pkgkafka "FuelCast/pkg/kafka"
	"FuelCast/pkg/util"
)

// KafkaFeaturesHandler consumes feature rows from Kafka and appends
// them to the feature store. Rows failing the schema contract are
// rejected so a malformed producer cannot poison the table.
type KafkaFeaturesHandler struct {
	topic    string
	features domrepo.FeatureStore
	metrics  domrepo.Metrics
}

func NewKafkaFeaturesHandler(topic string, features domrepo.FeatureStore, metrics domrepo.Metrics) *KafkaFeaturesHandler {
	return &KafkaFeaturesHandler{topic: topic, features: features, metrics: metrics}
}

func (h *KafkaFeaturesHandler) Topic() string { return h.topic }

// incoming message schema: {date, target, features}
func (h *KafkaFeaturesHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Date     string             `json:"date"`
		Target   float64            `json:"target"`
		Features map[string]float64 `json:"features"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	date, ok := util.ParseDay(m.Date)
	if !ok {
		h.metrics.RecordError("consumer_bad_date")
		return fmt.Errorf("%w: bad date %q", forecast.ErrDataContract, m.Date)
	}

	obs := models.Observation{Date: util.TruncateDay(date), Target: m.Target, Features: m.Features}
	if err := forecast.ValidateObservation(obs); err != nil {
		h.metrics.RecordError("consumer_contract")
		return err
	}

	if err := h.features.Append(ctx, obs); err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaFeaturesHandler)(nil)
