// Package pipeline runs the batch classification flow: load both corpora,
// build the training feature index, assemble dense vectors, select and fit
// a classifier, predict the test files and deliver the predictions.
//
// All state of a run lives in a Session created by Open and released by
// Close; nothing is kept in package-level variables.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/extract"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/indexstore"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/sink"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/stream"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/redis"
)

// Options carries collaborators that are not described by the config.
type Options struct {
	// Registerer receives the pipeline metrics. Nil uses a private registry.
	Registerer prometheus.Registerer
	// Sinks are extra prediction sinks run after the configured ones.
	Sinks []sink.PredictionSink
	// IndexKV replaces the Redis client behind the shared index cache.
	IndexKV indexstore.KV
}

// Session owns every resource of a run.
type Session struct {
	cfg       *config.Config
	metrics   *metrics.Metrics
	extractor *extract.Extractor

	db           *postgres.Client
	observations *stream.Store
	predictions  *sink.PostgresStore
	redis        *pkgredis.Client
	indexCache   *indexstore.Cache
	producer     *kafka.Producer
	extraSinks   []sink.PredictionSink

	closeOnce sync.Once
	closeErr  error
}

// Open validates cfg and connects to the external services it enables.
// On error every resource opened so far is released.
func Open(ctx context.Context, cfg *config.Config, opts Options) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.New(apperrors.ErrInvalidInput, apperrors.ExitUsage, err.Error())
	}
	ext, err := extract.FromConfig(cfg.Features)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInvalidInput, apperrors.ExitUsage, err.Error())
	}
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	s := &Session{
		cfg:        cfg,
		metrics:    metrics.New(reg),
		extractor:  ext,
		extraSinks: opts.Sinks,
	}
	if err := s.connect(ctx, opts); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Session) connect(ctx context.Context, opts Options) error {
	pc := s.cfg.Pipeline
	if pc.Source == config.SourcePostgres || pc.StorePredictions {
		db, err := postgres.New(ctx, s.cfg.Postgres)
		if err != nil {
			return unavailable("postgres", err)
		}
		s.db = db
		if pc.Source == config.SourcePostgres {
			s.observations = stream.NewStore(db)
			if err := s.observations.EnsureSchema(ctx); err != nil {
				return unavailable("postgres", err)
			}
		}
		if pc.StorePredictions {
			s.predictions = sink.NewPostgresStore(db)
			if err := s.predictions.EnsureSchema(ctx); err != nil {
				return unavailable("postgres", err)
			}
		}
	}
	if pc.ShareIndex {
		kv := opts.IndexKV
		if kv == nil {
			client, err := pkgredis.NewClient(ctx, s.cfg.Redis)
			if err != nil {
				return unavailable("redis", err)
			}
			s.redis = client
			kv = client
		}
		s.indexCache = indexstore.NewCache(kv, s.cfg.Redis.IndexTTL)
	}
	if pc.PublishPredictions {
		s.producer = kafka.NewProducer(s.cfg.Kafka, s.cfg.Kafka.Topics.Predictions)
	}
	return nil
}

func unavailable(service string, err error) error {
	return fmt.Errorf("%w: %s: %v", apperrors.ErrUnavailable, service, err)
}

func (s *Session) Metrics() *metrics.Metrics {
	return s.metrics
}

// Close releases every resource exactly once. Later calls return the
// result of the first.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.producer != nil {
			if err := s.producer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing kafka producer: %w", err))
			}
		}
		if s.redis != nil {
			if err := s.redis.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing redis: %w", err))
			}
		}
		if s.db != nil {
			if err := s.db.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing postgres: %w", err))
			}
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
