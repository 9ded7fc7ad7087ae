package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/features"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/resilience"
)

// ObservationWriter is the part of Store the handler writes through.
type ObservationWriter interface {
	AddObservations(ctx context.Context, corpusName string, obs []features.Observation) error
}

// HandlerConfig tunes how the handler writes to the store.
type HandlerConfig struct {
	StoreTimeout time.Duration
	Breaker      resilience.BreakerConfig
	// Retry applies to every write; a negative MaxAttempts retries until
	// the write succeeds or ctx ends.
	Retry resilience.RetryConfig
}

// DefaultHandlerConfig retries each write until it is stored.
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		StoreTimeout: 10 * time.Second,
		Breaker: resilience.BreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     10 * time.Second,
		},
		Retry: resilience.RetryConfig{
			MaxAttempts:  -1,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     15 * time.Second,
		},
	}
}

// HandleMessage returns a Kafka MessageHandler with DefaultHandlerConfig.
func HandleMessage(store ObservationWriter, m *metrics.Metrics) kafka.MessageHandler {
	return NewHandler(store, m, DefaultHandlerConfig())
}

// NewHandler returns a Kafka MessageHandler that stores each valid
// observation event. Undecodable or invalid events are logged and
// acknowledged. Writes go through a circuit breaker and are retried, so an
// event is only given up on when ctx ends; that error is returned and the
// offset stays uncommitted.
func NewHandler(store ObservationWriter, m *metrics.Metrics, cfg HandlerConfig) kafka.MessageHandler {
	logger := slog.Default().With("component", "observation-consumer")
	breaker := resilience.NewBreaker("observation-store", cfg.Breaker)
	count := func(result string) {
		if m != nil {
			m.StreamEventsTotal.WithLabelValues(result).Inc()
		}
	}
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ObservationEvent](value)
		if err != nil {
			logger.Error("failed to decode observation event", "error", err, "key", string(key))
			count("invalid")
			return nil
		}
		if err := Validate(event); err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				logger.Warn("skipping invalid observation event", "fields", verr.Fields, "key", string(key))
			}
			count("invalid")
			return nil
		}
		err = resilience.Retry(ctx, "store-observation", cfg.Retry, func() error {
			err := breaker.Execute(func() error {
				return resilience.WithTimeout(ctx, cfg.StoreTimeout, "store-observation", func(ctx context.Context) error {
					return store.AddObservations(ctx, event.Corpus, []features.Observation{event.Observation()})
				})
			})
			if err != nil {
				count("retry")
			}
			return err
		})
		if err != nil {
			count("error")
			return fmt.Errorf("storing observation %s/%s: %w", event.FileID, event.Key, err)
		}
		count("stored")
		logger.Debug("observation stored",
			"corpus", event.Corpus,
			"file_id", event.FileID,
			"key", event.Key,
			"count", event.Count,
		)
		return nil
	}
}
