package config

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"FuelCast/pkg/util"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Kafka struct {
		Brokers       []string `yaml:"brokers"`
		FeaturesTopic string   `yaml:"features_topic"`
		ForecastTopic string   `yaml:"forecast_topic"`
		RequiredAcks  int      `yaml:"required_acks"`
		Compression   string   `yaml:"compression"`
		Producer      struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		Addr     string        `yaml:"addr"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"redis"`
	Forecast struct {
		AlphaGrid   []float64 `yaml:"alpha_grid"`
		CVSplits    int       `yaml:"cv_splits"`
		MinBasisLag int       `yaml:"min_basis_lag"`
		Quantiles   []float64 `yaml:"quantiles"`
		QuantAlpha  float64   `yaml:"quantile_alpha"`
		WindowRows  int       `yaml:"window_rows"`
		Regime      struct {
			HighThreshold float64 `yaml:"high_threshold"`
			LowThreshold  float64 `yaml:"low_threshold"`
		} `yaml:"regime"`
		Weights map[string]struct {
			Baseline float64 `yaml:"baseline"`
			Residual float64 `yaml:"residual"`
			Basis    float64 `yaml:"basis"`
		} `yaml:"weights"`
	} `yaml:"forecast"`
	Validation struct {
		Years        []int         `yaml:"years"`
		HorizonsDays []int         `yaml:"horizons_days"`
		StrideDays   int           `yaml:"stride_days"`
		MinTrainRows int           `yaml:"min_train_rows"`
		Workers      int           `yaml:"workers"`
		CoverageTol  float64       `yaml:"coverage_tolerance"`
		Timeout      time.Duration `yaml:"timeout"`
	} `yaml:"validation"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_FEATURES_TOPIC"); v != "" {
		c.Kafka.FeaturesTopic = v
	}
	if v := os.Getenv("KAFKA_FORECAST_TOPIC"); v != "" {
		c.Kafka.ForecastTopic = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PORT"); v != "" {
		c.ClickHouse.Port = util.ParseIntDefault(v, c.ClickHouse.Port)
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}

	return c, nil
}

// Validate checks if the configuration is valid. The weight tables are
// the sharp edge: a triple that does not sum to one is rejected here,
// before any model is fitted.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Forecast.Regime.HighThreshold != 0 || c.Forecast.Regime.LowThreshold != 0 {
		if c.Forecast.Regime.HighThreshold <= c.Forecast.Regime.LowThreshold {
			return fmt.Errorf("forecast.regime.high_threshold must exceed low_threshold")
		}
	}
	for _, a := range c.Forecast.AlphaGrid {
		if a < 0 || math.IsNaN(a) || math.IsInf(a, 0) {
			return fmt.Errorf("forecast.alpha_grid values must be finite and non-negative, got %v", a)
		}
	}
	for _, q := range c.Forecast.Quantiles {
		if q <= 0 || q >= 1 {
			return fmt.Errorf("forecast.quantiles values must lie in (0, 1), got %v", q)
		}
	}
	for regime, w := range c.Forecast.Weights {
		if regime != "Normal" && regime != "Tight" && regime != "Crisis" {
			return fmt.Errorf("forecast.weights: unknown regime %q", regime)
		}
		sum := w.Baseline + w.Residual + w.Basis
		if math.Abs(sum-1.0) > 1e-9 {
			return fmt.Errorf("forecast.weights.%s sums to %v, want 1.0", regime, sum)
		}
		if w.Baseline < 0 || w.Residual < 0 || w.Basis < 0 {
			return fmt.Errorf("forecast.weights.%s has a negative component", regime)
		}
	}
	for _, h := range c.Validation.HorizonsDays {
		if h < 1 {
			return fmt.Errorf("validation.horizons_days must be positive, got %d", h)
		}
	}
	if c.Validation.CoverageTol < 0 || c.Validation.CoverageTol >= 1 {
		return fmt.Errorf("validation.coverage_tolerance must lie in [0, 1), got %v", c.Validation.CoverageTol)
	}
	return nil
}
