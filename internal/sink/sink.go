// Package sink delivers predictions of a run: a CSV file for the batch
// CLI, plus optional PostgreSQL persistence and Kafka publication.
package sink

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/classifier"
)

// PredictionSink receives the predictions of a run in test list order.
type PredictionSink interface {
	Name() string
	WritePredictions(ctx context.Context, runID string, preds []classifier.Prediction) error
}

// RunRecord summarises one batch run.
type RunRecord struct {
	RunID           string    `json:"run_id"`
	BestCandidate   string    `json:"best_candidate"`
	CVAccuracy      float64   `json:"cv_accuracy"`
	TestAccuracy    *float64  `json:"test_accuracy,omitempty"`
	IndexSize       int       `json:"index_size"`
	TrainFiles      int       `json:"train_files"`
	TestFiles       int       `json:"test_files"`
	DroppedFeatures int64     `json:"dropped_features"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
}
