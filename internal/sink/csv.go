package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/classifier"
)

var csvHeader = []string{"file_id", "prediction"}

// CSVWriter writes predictions to a file, replacing it atomically.
type CSVWriter struct {
	path string
}

func NewCSVWriter(path string) *CSVWriter {
	return &CSVWriter{path: path}
}

func (w *CSVWriter) Name() string { return "csv" }

func (w *CSVWriter) Path() string { return w.path }

func (w *CSVWriter) WritePredictions(_ context.Context, _ string, preds []classifier.Prediction) error {
	if dir := filepath.Dir(w.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	tmpPath := w.path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", tmpPath, err)
	}
	defer f.Close()
	if err := WriteCSV(f, preds); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", tmpPath, err)
	}
	f.Close()
	if err := os.Rename(tmpPath, w.path); err != nil {
		return fmt.Errorf("renaming predictions file: %w", err)
	}
	return nil
}

// WriteCSV writes the header and one row per prediction in the given order.
func WriteCSV(out io.Writer, preds []classifier.Prediction) error {
	cw := csv.NewWriter(out)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, p := range preds {
		if err := cw.Write([]string{p.FileID, p.Label}); err != nil {
			return fmt.Errorf("writing prediction for %s: %w", p.FileID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}
