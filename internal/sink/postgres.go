package sink

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/classifier"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/postgres"
)

// Schema creates the tables PostgresStore writes to.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS pipeline_runs (
		run_id           TEXT PRIMARY KEY,
		best_candidate   TEXT NOT NULL,
		cv_accuracy      DOUBLE PRECISION NOT NULL,
		test_accuracy    DOUBLE PRECISION,
		index_size       INTEGER NOT NULL,
		train_files      INTEGER NOT NULL,
		test_files       INTEGER NOT NULL,
		dropped_features BIGINT NOT NULL,
		started_at       TIMESTAMPTZ NOT NULL,
		finished_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS predictions (
		run_id     TEXT NOT NULL,
		position   INTEGER NOT NULL,
		file_id    TEXT NOT NULL,
		prediction TEXT NOT NULL,
		PRIMARY KEY (run_id, position)
	)`,
}

// PostgresStore persists runs and their predictions.
type PostgresStore struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewPostgresStore(db *postgres.Client) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: slog.Default().With("component", "prediction-store"),
	}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	return s.db.Migrate(ctx, Schema...)
}

func (s *PostgresStore) Name() string { return "postgres" }

func (s *PostgresStore) WritePredictions(ctx context.Context, runID string, preds []classifier.Prediction) error {
	return s.SavePredictions(ctx, runID, preds)
}

// SavePredictions replaces the predictions of runID in one transaction.
func (s *PostgresStore) SavePredictions(ctx context.Context, runID string, preds []classifier.Prediction) error {
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM predictions WHERE run_id = $1`, runID); err != nil {
			return fmt.Errorf("clearing predictions: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO predictions (run_id, position, file_id, prediction) VALUES ($1, $2, $3, $4)`)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()
		for i, p := range preds {
			if _, err := stmt.ExecContext(ctx, runID, i, p.FileID, p.Label); err != nil {
				return fmt.Errorf("inserting prediction for %s: %w", p.FileID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving predictions for run %s: %w", runID, err)
	}
	s.logger.Info("predictions saved", "run_id", runID, "count", len(preds))
	return nil
}

// Predictions loads the predictions of runID in their original order.
func (s *PostgresStore) Predictions(ctx context.Context, runID string) ([]classifier.Prediction, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT file_id, prediction FROM predictions WHERE run_id = $1 ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying predictions: %w", err)
	}
	defer rows.Close()
	var preds []classifier.Prediction
	for rows.Next() {
		var p classifier.Prediction
		if err := rows.Scan(&p.FileID, &p.Label); err != nil {
			return nil, fmt.Errorf("scanning prediction row: %w", err)
		}
		preds = append(preds, p)
	}
	return preds, rows.Err()
}

// SaveRun upserts the summary of a run.
func (s *PostgresStore) SaveRun(ctx context.Context, run RunRecord) error {
	var testAcc sql.NullFloat64
	if run.TestAccuracy != nil {
		testAcc = sql.NullFloat64{Float64: *run.TestAccuracy, Valid: true}
	}
	_, err := s.db.DB.ExecContext(ctx, `
		INSERT INTO pipeline_runs (run_id, best_candidate, cv_accuracy, test_accuracy, index_size,
			train_files, test_files, dropped_features, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (run_id) DO UPDATE SET
			best_candidate = EXCLUDED.best_candidate,
			cv_accuracy = EXCLUDED.cv_accuracy,
			test_accuracy = EXCLUDED.test_accuracy,
			index_size = EXCLUDED.index_size,
			train_files = EXCLUDED.train_files,
			test_files = EXCLUDED.test_files,
			dropped_features = EXCLUDED.dropped_features,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at`,
		run.RunID, run.BestCandidate, run.CVAccuracy, testAcc, run.IndexSize,
		run.TrainFiles, run.TestFiles, run.DroppedFeatures, run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving run %s: %w", run.RunID, err)
	}
	s.logger.Info("run saved", "run_id", run.RunID, "cv_accuracy", run.CVAccuracy)
	return nil
}
