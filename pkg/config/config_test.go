package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, SourceFiles, cfg.Pipeline.Source)
	assert.Equal(t, 4, cfg.Classifier.Folds)
	assert.Equal(t, 1000, cfg.Features.TopK)
	assert.Equal(t, []float64{1, 10}, cfg.Classifier.SVM.Costs)
	require.NoError(t, cfg.Validate())
}

func TestLoadYAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	data := []byte(`
pipeline:
  source: postgres
  workers: 3
features:
  topK: 50
  rules:
    - kind: bytes
      minN: 1
      maxN: 2
classifier:
  alphas: [0.25]
  folds: 3
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	t.Setenv("MC_PIPELINE_WORKERS", "5")
	t.Setenv("MC_KAFKA_BROKERS", "a:9092,b:9092")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, SourcePostgres, cfg.Pipeline.Source)
	assert.Equal(t, 5, cfg.Pipeline.Workers)
	assert.Equal(t, 50, cfg.Features.TopK)
	assert.Equal(t, []FeatureRule{{Kind: "bytes", MinN: 1, MaxN: 2}}, cfg.Features.Rules)
	assert.Equal(t, []float64{0.25}, cfg.Classifier.Alphas)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad source", func(c *Config) { c.Pipeline.Source = "s3" }},
		{"zero workers", func(c *Config) { c.Pipeline.Workers = 0 }},
		{"no rules", func(c *Config) { c.Features.Rules = nil }},
		{"inverted orders", func(c *Config) { c.Features.Rules = []FeatureRule{{Kind: "opcode", MinN: 3, MaxN: 2}} }},
		{"negative topK", func(c *Config) { c.Features.TopK = -1 }},
		{"no alphas", func(c *Config) { c.Classifier.Alphas = nil }},
		{"zero alpha", func(c *Config) { c.Classifier.Alphas = []float64{0} }},
		{"one fold", func(c *Config) { c.Classifier.Folds = 1 }},
		{"zero svm cost", func(c *Config) { c.Classifier.SVM.Costs = []float64{0} }},
		{"negative svm gamma", func(c *Config) { c.Classifier.SVM.Gammas = []float64{-0.5} }},
		{"flush without sharing", func(c *Config) { c.Pipeline.FlushSharedIndex = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDevelopmentConfigMatchesDefaults(t *testing.T) {
	cfg, err := Load("../../configs/development.yaml")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	def := Default()
	assert.Equal(t, def.Features, cfg.Features)
	assert.Equal(t, def.Classifier, cfg.Classifier)
	assert.Equal(t, def.Postgres, cfg.Postgres)
	assert.Equal(t, def.Redis, cfg.Redis)
	assert.Equal(t, "out/train.fidx", cfg.Pipeline.IndexPath)
}
