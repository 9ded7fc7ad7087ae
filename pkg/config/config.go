// Package config loads and validates pipeline configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Pipeline, Features, Classifier, Postgres, Kafka, Redis, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Features   FeaturesConfig   `yaml:"features"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Redis      RedisConfig      `yaml:"redis"`
	Logging    LoggingConfig    `yaml:"logging"`
	Tracing    TracingConfig    `yaml:"tracing"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings for the streaming service.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// Observation sources understood by the batch pipeline.
const (
	SourceFiles    = "files"
	SourcePostgres = "postgres"
)

// PipelineConfig holds the inputs and outputs of a batch run.
type PipelineConfig struct {
	RunID       string `yaml:"runId"`
	Source      string `yaml:"source"`
	AsmDir      string `yaml:"asmDir"`
	BytesDir    string `yaml:"bytesDir"`
	TrainList   string `yaml:"trainList"`
	TrainLabels string `yaml:"trainLabels"`
	TestList    string `yaml:"testList"`
	TestLabels  string `yaml:"testLabels"`
	Output      string `yaml:"output"`
	IndexPath   string `yaml:"indexPath"`
	// LoadIndexPath reads the feature index from a .fidx file instead of
	// building it from the training corpus.
	LoadIndexPath string `yaml:"loadIndexPath"`
	Workers       int    `yaml:"workers"`
	// StorePredictions persists predictions to PostgreSQL.
	StorePredictions bool `yaml:"storePredictions"`
	// PublishPredictions publishes predictions to Kafka.
	PublishPredictions bool `yaml:"publishPredictions"`
	// ShareIndex caches the feature index in Redis under the run id.
	ShareIndex bool `yaml:"shareIndex"`
	// FlushSharedIndex drops every shared index before the run.
	FlushSharedIndex bool `yaml:"flushSharedIndex"`
}

// FeatureRule selects one feature kind and the inclusive range of n-gram
// orders generated for it.
type FeatureRule struct {
	Kind string `yaml:"kind"`
	MinN int    `yaml:"minN"`
	MaxN int    `yaml:"maxN"`
}

// FeaturesConfig controls feature extraction.
type FeaturesConfig struct {
	Rules []FeatureRule `yaml:"rules"`
	// TopK bounds the number of distinct keys kept per (kind, order) group
	// for orders above one. Zero disables the limit.
	TopK int `yaml:"topK"`
}

// ClassifierConfig controls the grid search over classifier candidates.
type ClassifierConfig struct {
	// Alphas are the naive Bayes smoothing values.
	Alphas []float64 `yaml:"alphas"`
	Folds  int       `yaml:"folds"`
	SVM    SVMConfig `yaml:"svm"`
}

// SVMConfig is the libsvm candidate grid. Empty Costs leaves SVMs out of
// the search; a zero gamma means 1/dimensions.
type SVMConfig struct {
	Costs  []float64 `yaml:"costs"`
	Gammas []float64 `yaml:"gammas"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	Observations string `yaml:"observations"`
	Predictions  string `yaml:"predictions"`
}

// RedisConfig holds Redis connection and index-sharing parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	IndexTTL time.Duration `yaml:"indexTTL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls stage tracing.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Default returns a Config with defaults suitable for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Pipeline: PipelineConfig{
			Source:  SourceFiles,
			Workers: 8,
		},
		Features: FeaturesConfig{
			Rules: []FeatureRule{
				{Kind: "segment", MinN: 1, MaxN: 1},
				{Kind: "opcode", MinN: 1, MaxN: 2},
			},
			TopK: 1000,
		},
		Classifier: ClassifierConfig{
			Alphas: []float64{0.1, 0.5, 1.0},
			Folds:  4,
			SVM: SVMConfig{
				Costs:  []float64{1, 10},
				Gammas: []float64{0},
			},
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "malwarepipeline",
			User:            "malwarepipeline",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "malwarepipeline-group",
			Topics: KafkaTopics{
				Observations: "feature-observations",
				Predictions:  "predictions",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			IndexTTL: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

// Validate reports configuration values the pipeline cannot run with.
func (c *Config) Validate() error {
	var problems []string
	switch c.Pipeline.Source {
	case SourceFiles, SourcePostgres:
	default:
		problems = append(problems, fmt.Sprintf("pipeline.source %q must be %q or %q", c.Pipeline.Source, SourceFiles, SourcePostgres))
	}
	if c.Pipeline.Workers <= 0 {
		problems = append(problems, "pipeline.workers must be positive")
	}
	if len(c.Features.Rules) == 0 {
		problems = append(problems, "features.rules must not be empty")
	}
	for i, r := range c.Features.Rules {
		if r.MinN < 1 || r.MaxN < r.MinN {
			problems = append(problems, fmt.Sprintf("features.rules[%d]: need 1 <= minN <= maxN, got %d..%d", i, r.MinN, r.MaxN))
		}
	}
	if c.Features.TopK < 0 {
		problems = append(problems, "features.topK must not be negative")
	}
	if len(c.Classifier.Alphas) == 0 {
		problems = append(problems, "classifier.alphas must not be empty")
	}
	for _, a := range c.Classifier.Alphas {
		if a <= 0 {
			problems = append(problems, fmt.Sprintf("classifier.alphas: %v is not positive", a))
		}
	}
	if c.Classifier.Folds < 2 {
		problems = append(problems, "classifier.folds must be at least 2")
	}
	for _, cost := range c.Classifier.SVM.Costs {
		if cost <= 0 {
			problems = append(problems, fmt.Sprintf("classifier.svm.costs: %v is not positive", cost))
		}
	}
	for _, g := range c.Classifier.SVM.Gammas {
		if g < 0 {
			problems = append(problems, fmt.Sprintf("classifier.svm.gammas: %v is negative", g))
		}
	}
	if c.Pipeline.FlushSharedIndex && !c.Pipeline.ShareIndex {
		problems = append(problems, "pipeline.flushSharedIndex requires pipeline.shareIndex")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// applyEnvOverrides reads MC_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MC_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("MC_PIPELINE_RUN_ID"); v != "" {
		cfg.Pipeline.RunID = v
	}
	if v := os.Getenv("MC_PIPELINE_SOURCE"); v != "" {
		cfg.Pipeline.Source = v
	}
	if v := os.Getenv("MC_PIPELINE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.Workers = n
		}
	}
	if v := os.Getenv("MC_FEATURES_TOPK"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Features.TopK = n
		}
	}
	if v := os.Getenv("MC_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("MC_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("MC_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("MC_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("MC_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("MC_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("MC_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("MC_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("MC_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("MC_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MC_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("MC_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
			cfg.Metrics.Enabled = true
		}
	}
}
