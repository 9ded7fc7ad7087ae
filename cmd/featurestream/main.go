// Command featurestream consumes feature observations from Kafka and
// accumulates them in PostgreSQL, where `classify -source=postgres` reads
// them back as corpora.
//
// It serves /health/live, /health/ready and /metrics on the server port.
//
// Usage:
//
//	go run ./cmd/featurestream [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/stream"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting feature stream service",
		"port", cfg.Server.Port,
		"topic", cfg.Kafka.Topics.Observations,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store := stream.NewStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		slog.Error("failed to prepare observation schema", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.Observations, stream.HandleMessage(store, m))
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	consumerErr := make(chan error, 1)
	go func() {
		err := consumer.Start(ctx)
		if err != nil {
			slog.Error("consumer stopped, shutting down", "error", err)
			cancel()
		}
		consumerErr <- err
	}()

	checker := health.NewChecker()
	checker.Register("postgres", health.PingCheck(db.Ping))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", metrics.Handler(reg))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("feature stream service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	cerr := <-consumerErr
	if err := consumer.Close(); err != nil {
		slog.Debug("consumer close", "error", err)
	}
	if cerr != nil {
		os.Exit(1)
	}
	slog.Info("feature stream service stopped")
}
