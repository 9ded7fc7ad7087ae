package pipeline

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/extract"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/features"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/labels"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/tracing"
)

// TrainResult is everything test-time assembly and prediction need.
type TrainResult struct {
	Index    *features.Index
	Model    classifier.Model
	Search   *classifier.Result
	Stats    features.AssembleStats
	Examples int
}

// Train builds the feature index from the training corpus, joins the
// assembled vectors with their labels (the Nth label belongs to the Nth
// listed file) and fits the best classifier candidate.
func (s *Session) Train(ctx context.Context, train *corpus.Corpus, trainLabels []string) (*TrainResult, error) {
	return s.train(ctx, train, trainLabels, nil)
}

// TrainWithIndex is Train against an existing index, such as one read back
// with indexstore.Read. Training keys missing from ix are dropped and the
// top-K limit is not applied.
func (s *Session) TrainWithIndex(ctx context.Context, train *corpus.Corpus, trainLabels []string, ix *features.Index) (*TrainResult, error) {
	return s.train(ctx, train, trainLabels, ix)
}

func (s *Session) train(ctx context.Context, train *corpus.Corpus, trainLabels []string, ix *features.Index) (*TrainResult, error) {
	log := logger.FromContext(ctx).With("component", "pipeline")
	res := &TrainResult{}

	err := s.stage(ctx, "index", func(ctx context.Context, span *tracing.Span) error {
		obs := train.Observations
		if ix == nil {
			obs = extract.LimitFrequent(obs, s.cfg.Features.TopK)
			res.Index = features.BuildIndex(obs)
		} else {
			res.Index = ix
		}
		vectors, stats := features.Assemble(obs, res.Index, train.FileIDs)
		res.Stats = stats
		span.SetAttr("index_size", res.Index.Size())
		span.SetAttr("index_loaded", ix != nil)
		span.SetAttr("dropped", stats.Dropped)
		span.SetAttr("observations", len(obs))
		s.metrics.FeatureIndexSize.Set(float64(res.Index.Size()))

		pairs, err := labels.Pair(train.FileIDs, trainLabels)
		if err != nil {
			return fmt.Errorf("pairing training labels: %w", err)
		}
		examples := labels.Join(vectors, pairs)
		res.Examples = len(examples)
		log.Info("training vectors assembled",
			"index_size", res.Index.Size(),
			"examples", len(examples),
			"empty_files", stats.EmptyFiles,
			"dropped", stats.Dropped,
		)

		return s.stage(ctx, "fit", func(ctx context.Context, span *tracing.Span) error {
			folds := s.cfg.Classifier.Folds
			if n := len(examples); n >= 2 && folds > n {
				log.Warn("fewer examples than folds, reducing folds", "folds", folds, "examples", n)
				folds = n
			}
			cc := s.cfg.Classifier
			candidates := append(classifier.NaiveBayesGrid(cc.Alphas), classifier.SVMGrid(cc.SVM.Costs, cc.SVM.Gammas)...)
			search, err := classifier.GridSearch(ctx, candidates, examples, folds)
			if err != nil {
				return fmt.Errorf("selecting classifier: %w", err)
			}
			for _, sc := range search.Scores {
				s.metrics.CrossValidationAccuracy.WithLabelValues(sc.Candidate).Set(sc.Accuracy)
			}
			span.SetAttr("best_candidate", search.Best.Name)
			span.SetAttr("cv_accuracy", search.Accuracy)
			res.Search = search
			res.Model = search.Model
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
