package stream

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/features"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/postgres"
)

// Schema creates the observations table. Repeated (corpus, file, key)
// observations accumulate into one row.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS observations (
		corpus  TEXT NOT NULL,
		file_id TEXT NOT NULL,
		key     TEXT NOT NULL,
		count   BIGINT NOT NULL,
		PRIMARY KEY (corpus, file_id, key)
	)`,
}

// Store accumulates observations per corpus in PostgreSQL.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "observation-store"),
	}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.db.Migrate(ctx, Schema...)
}

// AddObservations adds each count to the stored count of its
// (corpus, file, key), in one transaction.
func (s *Store) AddObservations(ctx context.Context, corpusName string, obs []features.Observation) error {
	if len(obs) == 0 {
		return nil
	}
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO observations (corpus, file_id, key, count) VALUES ($1, $2, $3, $4)
			ON CONFLICT (corpus, file_id, key) DO UPDATE SET count = observations.count + EXCLUDED.count`)
		if err != nil {
			return fmt.Errorf("preparing upsert: %w", err)
		}
		defer stmt.Close()
		for _, o := range obs {
			if _, err := stmt.ExecContext(ctx, corpusName, o.FileID, o.Key, o.Count); err != nil {
				return fmt.Errorf("upserting %s/%s: %w", o.FileID, o.Key, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("adding observations to %s: %w", corpusName, err)
	}
	s.logger.Debug("observations stored", "corpus", corpusName, "count", len(obs))
	return nil
}

// LoadCorpus returns the stored observations of a corpus ordered by file
// id, then key.
func (s *Store) LoadCorpus(ctx context.Context, corpusName string) ([]features.Observation, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT file_id, key, count FROM observations WHERE corpus = $1 ORDER BY file_id, key`,
		corpusName,
	)
	if err != nil {
		return nil, fmt.Errorf("querying corpus %s: %w", corpusName, err)
	}
	defer rows.Close()
	var obs []features.Observation
	for rows.Next() {
		var o features.Observation
		if err := rows.Scan(&o.FileID, &o.Key, &o.Count); err != nil {
			return nil, fmt.Errorf("scanning observation row: %w", err)
		}
		obs = append(obs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading corpus %s: %w", corpusName, err)
	}
	s.logger.Info("corpus loaded from store", "corpus", corpusName, "observations", len(obs))
	return obs, nil
}

// Load builds a corpus whose file list is fileIDs and whose observations
// are the stored ones of those files.
func (s *Store) Load(ctx context.Context, corpusName string, fileIDs []string) (*corpus.Corpus, error) {
	stored, err := s.LoadCorpus(ctx, corpusName)
	if err != nil {
		return nil, err
	}
	listed := make(map[string]struct{}, len(fileIDs))
	for _, id := range fileIDs {
		listed[id] = struct{}{}
	}
	obs := make([]features.Observation, 0, len(stored))
	for _, o := range stored {
		if _, ok := listed[o.FileID]; ok {
			obs = append(obs, o)
		}
	}
	return &corpus.Corpus{Name: corpusName, FileIDs: fileIDs, Observations: obs}, nil
}
