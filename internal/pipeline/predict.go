package pipeline

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/features"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/tracing"
)

// Predict assembles the test corpus against the training index and returns
// one prediction per listed test file, in list order. Test keys missing
// from the index are dropped and counted.
func (s *Session) Predict(ctx context.Context, train *TrainResult, test *corpus.Corpus) ([]classifier.Prediction, error) {
	preds, _, err := s.predict(ctx, train.Index, train.Model, test)
	return preds, err
}

func (s *Session) predict(
	ctx context.Context,
	ix *features.Index,
	model classifier.Model,
	test *corpus.Corpus,
) ([]classifier.Prediction, features.AssembleStats, error) {
	var (
		preds []classifier.Prediction
		stats features.AssembleStats
	)
	err := s.stage(ctx, "predict", func(ctx context.Context, span *tracing.Span) error {
		var vectors map[string]features.DenseVector
		vectors, stats = features.Assemble(test.Observations, ix, test.FileIDs)
		ordered := make([]features.DenseVector, len(test.FileIDs))
		for i, id := range test.FileIDs {
			ordered[i] = vectors[id]
		}
		preds = classifier.PredictAll(model, ordered)

		s.metrics.UnseenFeaturesDropped.Add(float64(stats.Dropped))
		for _, p := range preds {
			s.metrics.PredictionsTotal.WithLabelValues(p.Label).Inc()
		}
		span.SetAttr("dropped", stats.Dropped)
		span.SetAttr("predictions", len(preds))
		logger.FromContext(ctx).Info("test vectors predicted",
			"component", "pipeline",
			"files", len(test.FileIDs),
			"dropped_unseen", stats.Dropped,
			"empty_files", stats.EmptyFiles,
		)
		return nil
	})
	return preds, stats, err
}
