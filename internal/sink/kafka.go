package sink

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/kafka"
)

// PredictionEvent is the JSON payload published per prediction.
type PredictionEvent struct {
	RunID       string    `json:"run_id"`
	FileID      string    `json:"file_id"`
	Prediction  string    `json:"prediction"`
	PublishedAt time.Time `json:"published_at"`
}

// Publisher is the part of kafka.Producer the sink needs.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// KafkaPublisher publishes predictions keyed by file id.
type KafkaPublisher struct {
	producer Publisher
	now      func() time.Time
	logger   *slog.Logger
}

func NewKafkaPublisher(producer Publisher) *KafkaPublisher {
	return &KafkaPublisher{
		producer: producer,
		now:      time.Now,
		logger:   slog.Default().With("component", "prediction-publisher"),
	}
}

func (p *KafkaPublisher) Name() string { return "kafka" }

func (p *KafkaPublisher) WritePredictions(ctx context.Context, runID string, preds []classifier.Prediction) error {
	at := p.now().UTC()
	events := make([]kafka.Event, len(preds))
	for i, pr := range preds {
		events[i] = kafka.Event{
			Key: pr.FileID,
			Value: PredictionEvent{
				RunID:       runID,
				FileID:      pr.FileID,
				Prediction:  pr.Label,
				PublishedAt: at,
			},
		}
	}
	if err := p.producer.PublishBatch(ctx, events); err != nil {
		return fmt.Errorf("publishing predictions for run %s: %w", runID, err)
	}
	p.logger.Info("predictions published", "run_id", runID, "count", len(events))
	return nil
}
