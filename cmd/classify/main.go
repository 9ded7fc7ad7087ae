// Command classify trains a malware family classifier on disassembly and
// byte-dump features and writes predictions for a test set.
//
// Usage:
//
//	classify [-config file] [-t test_labels] [-index out.fidx] [-load-index in.fidx] [-run-id id]
//	         [-source files|postgres] [-store] [-publish] [-share-index] [-flush-shared-index]
//	         asm_dir bytes_dir train_list train_labels test_list output_csv
//
// The train and test lists name one sample per line; sample <id> is read from
// <asm_dir>/<id>.asm and <bytes_dir>/<id>.bytes. The Nth line of train_labels
// is the label of the Nth training sample. With -t, test accuracy is logged.
// With -load-index, training and test vectors are assembled against a
// feature index written by an earlier run with -index.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/metrics"
)

const positionalUsage = "asm_dir bytes_dir train_list train_labels test_list output_csv"

type options struct {
	configPath string
	cfg        *config.Config
}

// parseArgs applies flags and positional arguments on top of the loaded
// config.
func parseArgs(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("classify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: classify [flags] %s\n", positionalUsage)
		fs.PrintDefaults()
	}
	configPath := fs.String("config", "", "path to config file")
	testLabels := fs.String("t", "", "test labels file; enables accuracy reporting")
	indexPath := fs.String("index", "", "write the training feature index to this .fidx file")
	loadIndex := fs.String("load-index", "", "assemble vectors against this .fidx file instead of building an index")
	runID := fs.String("run-id", "", "run identifier (default: generated)")
	source := fs.String("source", "", "observation source: files or postgres")
	store := fs.Bool("store", false, "persist predictions to postgres")
	publish := fs.Bool("publish", false, "publish predictions to kafka")
	share := fs.Bool("share-index", false, "share the feature index through redis")
	flush := fs.Bool("flush-shared-index", false, "drop every shared feature index before the run")
	if err := fs.Parse(args); err != nil {
		return nil, apperrors.New(apperrors.ErrInvalidInput, apperrors.ExitUsage, err.Error())
	}
	if fs.NArg() != 6 {
		fs.Usage()
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage,
			"expected 6 arguments (%s), got %d", positionalUsage, fs.NArg())
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInvalidInput, apperrors.ExitUsage, err.Error())
	}
	pc := &cfg.Pipeline
	pc.AsmDir, pc.BytesDir = fs.Arg(0), fs.Arg(1)
	pc.TrainList, pc.TrainLabels = fs.Arg(2), fs.Arg(3)
	pc.TestList, pc.Output = fs.Arg(4), fs.Arg(5)
	if *testLabels != "" {
		pc.TestLabels = *testLabels
	}
	if *indexPath != "" {
		pc.IndexPath = *indexPath
	}
	if *loadIndex != "" {
		pc.LoadIndexPath = *loadIndex
	}
	if *runID != "" {
		pc.RunID = *runID
	}
	if *source != "" {
		pc.Source = *source
	}
	pc.StorePredictions = pc.StorePredictions || *store
	pc.PublishPredictions = pc.PublishPredictions || *publish
	pc.ShareIndex = pc.ShareIndex || *share || *flush
	pc.FlushSharedIndex = pc.FlushSharedIndex || *flush
	return &options{configPath: *configPath, cfg: cfg}, nil
}

func main() {
	opts, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "classify: %v\n", err)
		os.Exit(apperrors.ExitCode(err))
	}
	cfg := opts.cfg
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting classification run",
		"config", opts.configPath,
		"source", cfg.Pipeline.Source,
		"train_list", cfg.Pipeline.TrainList,
		"test_list", cfg.Pipeline.TestList,
		"load_index", cfg.Pipeline.LoadIndexPath,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
		defer shutdown(context.Background())
	}

	session, err := pipeline.Open(ctx, cfg, pipeline.Options{Registerer: prometheus.DefaultRegisterer})
	if err != nil {
		slog.Error("failed to open pipeline", "error", err)
		os.Exit(apperrors.ExitCode(err))
	}

	summary, err := session.Run(ctx, pipeline.InputsFromConfig(cfg.Pipeline))
	if closeErr := session.Close(); closeErr != nil {
		slog.Error("failed to release pipeline resources", "error", closeErr)
	}
	if err != nil {
		slog.Error("classification run failed", "error", err)
		os.Exit(apperrors.ExitCode(err))
	}

	attrs := []any{
		"run_id", summary.RunID,
		"output", cfg.Pipeline.Output,
		"predictions", len(summary.Predictions),
		"best_candidate", summary.BestCandidate,
		"cv_accuracy", summary.CVAccuracy,
	}
	if summary.TestAccuracy != nil {
		attrs = append(attrs, "test_accuracy", *summary.TestAccuracy)
	}
	slog.Info("classification run finished", attrs...)
}
