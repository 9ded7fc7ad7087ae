package pipeline

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/features"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/indexstore"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/labels"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/sink"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/tracing"
)

// Corpus names used for the two splits, also the corpus keys of the
// observation store.
const (
	TrainCorpus = "train"
	TestCorpus  = "test"
)

// Inputs names the files of a batch run.
type Inputs struct {
	AsmDir      string
	BytesDir    string
	TrainList   string
	TrainLabels string
	TestList    string
	// TestLabels is optional; when set the run reports test accuracy.
	TestLabels string
	// Output is the predictions CSV. Empty skips the CSV sink.
	Output string
	// IndexPath optionally persists the training index as a .fidx file.
	IndexPath string
	// LoadIndexPath reads the index from a .fidx file instead of building
	// it from the training corpus.
	LoadIndexPath string
}

// InputsFromConfig copies the input paths of a pipeline config.
func InputsFromConfig(pc config.PipelineConfig) Inputs {
	return Inputs{
		AsmDir:        pc.AsmDir,
		BytesDir:      pc.BytesDir,
		TrainList:     pc.TrainList,
		TrainLabels:   pc.TrainLabels,
		TestList:      pc.TestList,
		TestLabels:    pc.TestLabels,
		Output:        pc.Output,
		IndexPath:     pc.IndexPath,
		LoadIndexPath: pc.LoadIndexPath,
	}
}

// RunSummary reports the outcome of Run.
type RunSummary struct {
	RunID         string
	IndexSize     int
	TrainFiles    int
	TestFiles     int
	Examples      int
	BestCandidate string
	CVAccuracy    float64
	Scores        []classifier.Score
	// TestAccuracy is nil unless test labels were supplied.
	TestAccuracy *float64
	Dropped      int64
	Predictions  []classifier.Prediction
	StartedAt    time.Time
	FinishedAt   time.Time
}

func (r *RunSummary) record() sink.RunRecord {
	return sink.RunRecord{
		RunID:           r.RunID,
		BestCandidate:   r.BestCandidate,
		CVAccuracy:      r.CVAccuracy,
		TestAccuracy:    r.TestAccuracy,
		IndexSize:       r.IndexSize,
		TrainFiles:      r.TrainFiles,
		TestFiles:       r.TestFiles,
		DroppedFeatures: r.Dropped,
		StartedAt:       r.StartedAt,
		FinishedAt:      r.FinishedAt,
	}
}

// Run executes a full batch: load, train, persist the index, predict,
// optionally score against test labels and deliver the predictions. A
// failure to score is logged and does not stop delivery.
func (s *Session) Run(ctx context.Context, in Inputs) (*RunSummary, error) {
	runID := s.cfg.Pipeline.RunID
	if runID == "" {
		runID = "run-" + time.Now().UTC().Format("20060102T150405.000")
	}
	ctx = logger.WithRunID(ctx, runID)
	ctx, root := tracing.StartSpan(ctx, "run", runID)
	log := logger.FromContext(ctx).With("component", "pipeline")
	summary := &RunSummary{RunID: runID, StartedAt: time.Now()}

	err := s.run(ctx, in, summary)
	root.End()
	if err != nil {
		root.Fail(err)
	}
	if s.cfg.Tracing.Enabled {
		root.Log(log)
	}
	if err != nil {
		return nil, err
	}
	log.Info("run complete",
		"index_size", summary.IndexSize,
		"best_candidate", summary.BestCandidate,
		"cv_accuracy", summary.CVAccuracy,
		"predictions", len(summary.Predictions),
		"duration_ms", root.Duration.Milliseconds(),
	)
	if s.indexCache != nil {
		hits, misses := s.indexCache.Stats()
		log.Debug("index cache stats", "hits", hits, "misses", misses)
	}
	return summary, nil
}

func (s *Session) run(ctx context.Context, in Inputs, summary *RunSummary) error {
	var (
		trainIDs, trainLabels, testIDs []string
		train, test                    *corpus.Corpus
		loaded                         *features.Index
	)
	err := s.stage(ctx, "load", func(ctx context.Context, span *tracing.Span) error {
		var err error
		if trainIDs, err = labels.ReadFile(in.TrainList); err != nil {
			return fmt.Errorf("reading training list: %w", err)
		}
		if trainLabels, err = labels.ReadFile(in.TrainLabels); err != nil {
			return fmt.Errorf("reading training labels: %w", err)
		}
		if testIDs, err = labels.ReadFile(in.TestList); err != nil {
			return fmt.Errorf("reading test list: %w", err)
		}
		if in.LoadIndexPath != "" {
			if loaded, err = indexstore.Read(in.LoadIndexPath); err != nil {
				return fmt.Errorf("reading feature index: %w", err)
			}
			span.SetAttr("loaded_index_size", loaded.Size())
		}
		if train, err = s.loadCorpus(ctx, in, TrainCorpus, trainIDs); err != nil {
			return err
		}
		if test, err = s.loadCorpus(ctx, in, TestCorpus, testIDs); err != nil {
			return err
		}
		span.SetAttr("train_files", len(trainIDs))
		span.SetAttr("test_files", len(testIDs))
		return nil
	})
	if err != nil {
		return err
	}
	summary.TrainFiles = len(trainIDs)
	summary.TestFiles = len(testIDs)

	trained, err := s.train(ctx, train, trainLabels, loaded)
	if err != nil {
		return err
	}
	summary.IndexSize = trained.Index.Size()
	summary.Examples = trained.Examples
	summary.BestCandidate = trained.Search.Best.Name
	summary.CVAccuracy = trained.Search.Accuracy
	summary.Scores = trained.Search.Scores

	var ix *features.Index
	err = s.stage(ctx, "persist-index", func(ctx context.Context, span *tracing.Span) error {
		var err error
		ix, err = s.persistIndex(ctx, summary.RunID, in.IndexPath, trained.Index)
		return err
	})
	if err != nil {
		return err
	}

	preds, stats, err := s.predict(ctx, ix, trained.Model, test)
	if err != nil {
		return err
	}
	summary.Predictions = preds
	summary.Dropped = int64(stats.Dropped)

	if in.TestLabels != "" {
		err := s.stage(ctx, "score", func(ctx context.Context, span *tracing.Span) error {
			actual, err := labels.ReadFile(in.TestLabels)
			if err != nil {
				return fmt.Errorf("reading test labels: %w", err)
			}
			predicted := make([]string, len(preds))
			for i, p := range preds {
				predicted[i] = p.Label
			}
			acc, err := classifier.Accuracy(predicted, actual)
			if err != nil {
				return fmt.Errorf("scoring predictions: %w", err)
			}
			summary.TestAccuracy = &acc
			span.SetAttr("test_accuracy", acc)
			return nil
		})
		if err != nil {
			logger.FromContext(ctx).Warn("scoring against test labels failed, delivering predictions unscored",
				"component", "pipeline",
				"test_labels", in.TestLabels,
				"error", err,
			)
		}
	}

	summary.FinishedAt = time.Now()
	return s.stage(ctx, "deliver", func(ctx context.Context, span *tracing.Span) error {
		for _, sk := range s.sinks(in) {
			if err := sk.WritePredictions(ctx, summary.RunID, preds); err != nil {
				return fmt.Errorf("%s sink: %w", sk.Name(), err)
			}
		}
		if s.predictions != nil {
			if err := s.predictions.SaveRun(ctx, summary.record()); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Session) loadCorpus(ctx context.Context, in Inputs, name string, fileIDs []string) (*corpus.Corpus, error) {
	var (
		c   *corpus.Corpus
		err error
	)
	if s.observations != nil {
		c, err = s.observations.Load(ctx, name, fileIDs)
	} else {
		var loader *corpus.Loader
		loader, err = corpus.NewLoader(s.extractor, in.AsmDir, in.BytesDir, s.cfg.Pipeline.Workers)
		if err != nil {
			return nil, fmt.Errorf("loading %s corpus: %w", name, err)
		}
		c, err = loader.Load(ctx, name, fileIDs)
	}
	if err != nil {
		return nil, err
	}
	s.metrics.FilesLoadedTotal.WithLabelValues(name).Add(float64(len(c.FileIDs)))
	s.metrics.ObservationsTotal.WithLabelValues(name).Add(float64(len(c.Observations)))
	return c, nil
}

// persistIndex stores the training index and returns the index test-time
// assembly must use. With a shared cache the index is published under the
// run id; an index already published there must have the same keys.
// FlushSharedIndex drops every shared index first.
func (s *Session) persistIndex(ctx context.Context, runID, path string, trained *features.Index) (*features.Index, error) {
	if path != "" {
		if err := indexstore.Write(path, trained); err != nil {
			return nil, fmt.Errorf("writing feature index: %w", err)
		}
	}
	if s.indexCache == nil {
		return trained, nil
	}
	if s.cfg.Pipeline.FlushSharedIndex {
		if err := s.indexCache.Invalidate(ctx); err != nil {
			return nil, err
		}
	}
	ix, err := s.indexCache.GetOrLoad(ctx, runID, func() (*features.Index, error) {
		return trained, nil
	})
	if err != nil {
		return nil, fmt.Errorf("sharing feature index: %w", err)
	}
	if !slices.Equal(ix.Keys(), trained.Keys()) {
		return nil, apperrors.Newf(apperrors.ErrDimensionMismatch, apperrors.ExitData,
			"run %s already shares a different feature index (%d keys, trained %d)", runID, ix.Size(), trained.Size())
	}
	return ix, nil
}

func (s *Session) sinks(in Inputs) []sink.PredictionSink {
	var sinks []sink.PredictionSink
	if in.Output != "" {
		sinks = append(sinks, sink.NewCSVWriter(in.Output))
	}
	if s.predictions != nil {
		sinks = append(sinks, s.predictions)
	}
	if s.producer != nil {
		sinks = append(sinks, sink.NewKafkaPublisher(s.producer))
	}
	return append(sinks, s.extraSinks...)
}
