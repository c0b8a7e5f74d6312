// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	// SERVER_PORT overrides server.port
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// expandEnvVars resolves ${VAR} placeholders left in string and string list
// values. Unset variables expand to "" and are dropped from lists.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		switch val := v.Get(key).(type) {
		case string:
			if strings.Contains(val, "$") {
				v.Set(key, os.ExpandEnv(val))
			}
		case []interface{}:
			out := make([]string, 0, len(val))
			changed := false
			for _, item := range val {
				str, ok := item.(string)
				if !ok {
					out = nil
					break
				}
				if strings.Contains(str, "$") {
					changed = true
					str = os.ExpandEnv(str)
				}
				if str != "" {
					out = append(out, str)
				}
			}
			if changed && out != nil {
				v.Set(key, out)
			}
		}
	}
}

// Direct override if config values are still empty after expansion
func overrideEmptyConfig(cfg *Config) {
	if cfg.Database.Postgres.User == "" {
		cfg.Database.Postgres.User = os.Getenv("DB_USER")
	}
	if cfg.Database.Postgres.Password == "" {
		cfg.Database.Postgres.Password = os.Getenv("DB_PASSWORD")
	}
	if cfg.Database.Redis.Password == "" {
		cfg.Database.Redis.Password = os.Getenv("REDIS_PASSWORD")
	}
	if cfg.Database.Elasticsearch.Password == "" {
		cfg.Database.Elasticsearch.Password = os.Getenv("ELASTICSEARCH_PASSWORD")
	}
	if cfg.Tracing.JaegerEndpoint == "" {
		cfg.Tracing.JaegerEndpoint = os.Getenv("JAEGER_ENDPOINT")
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "shoe-size-analytics"
	}

	// Server defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60000
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 55000
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 32 << 20
	}
	if cfg.Server.MaxFiles == 0 {
		cfg.Server.MaxFiles = 20
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}

	// Analytics defaults
	if cfg.Analytics.MaxParallelFiles == 0 {
		cfg.Analytics.MaxParallelFiles = 4
	}
	if cfg.Analytics.TopSizes == 0 {
		cfg.Analytics.TopSizes = 5
	}
	if cfg.Analytics.TopCustomers == 0 {
		cfg.Analytics.TopCustomers = 20
	}
	if cfg.Analytics.PerFileTopSizes == 0 {
		cfg.Analytics.PerFileTopSizes = 5
	}
	if cfg.Analytics.PredictedSizes == 0 {
		cfg.Analytics.PredictedSizes = 5
	}
	if cfg.Analytics.MinCustomerOrders == 0 {
		cfg.Analytics.MinCustomerOrders = 1
	}
	if cfg.Analytics.CustomerFilePolicy == "" {
		cfg.Analytics.CustomerFilePolicy = "exclusive"
	}
	if cfg.Analytics.DecayWeight == 0 {
		cfg.Analytics.DecayWeight = 0.8
	}
	if cfg.Analytics.TrendWeight == 0 {
		cfg.Analytics.TrendWeight = 1.0
	}

	if cfg.Extractor.Timeout == 0 {
		cfg.Extractor.Timeout = 15000
	}

	// Baseline defaults
	if cfg.Baseline.Table == "" {
		cfg.Baseline.Table = "size_baselines"
	}
	if cfg.Baseline.Index == "" {
		cfg.Baseline.Index = "shoe-orders"
	}
	if cfg.Baseline.Timeout == 0 {
		cfg.Baseline.Timeout = 2000
	}

	// Camunda defaults
	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	// Database defaults
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = 1.0
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", cfg.Server.Port)
	}
	if cfg.Server.MaxFiles < 1 {
		return fmt.Errorf("server.max_files must be positive")
	}

	a := cfg.Analytics
	if a.MaxParallelFiles < 1 {
		return fmt.Errorf("analytics.max_parallel_files must be positive")
	}
	if a.TopSizes < 1 || a.TopCustomers < 1 || a.PerFileTopSizes < 1 || a.PredictedSizes < 1 {
		return fmt.Errorf("analytics top-N limits must be positive")
	}
	if a.MinCustomerOrders < 1 {
		return fmt.Errorf("analytics.min_customer_orders must be at least 1")
	}
	switch a.CustomerFilePolicy {
	case "exclusive", "most_recent", "joined":
	default:
		return fmt.Errorf("analytics.customer_file_policy %q is not one of exclusive, most_recent, joined", a.CustomerFilePolicy)
	}
	if a.DecayWeight <= 0 || a.DecayWeight > 1 {
		return fmt.Errorf("analytics.decay_weight must be in (0,1]")
	}
	if a.TrendWeight < 0 {
		return fmt.Errorf("analytics.trend_weight must not be negative")
	}

	switch cfg.Baseline.Source {
	case "":
	case "postgres":
		if cfg.Database.Postgres.Host == "" || cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("baseline.source=postgres requires database.postgres.host and database")
		}
	case "elasticsearch":
		if cfg.Database.Elasticsearch.GetURL() == "" {
			return fmt.Errorf("baseline.source=elasticsearch requires database.elasticsearch.addresses or url")
		}
	default:
		return fmt.Errorf("baseline.source %q is not one of postgres, elasticsearch", cfg.Baseline.Source)
	}
	if cfg.Baseline.Source != "" && cfg.Baseline.CacheTTL > 0 && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("baseline.cache_ttl requires database.redis.address")
	}

	if cfg.Camunda.Enabled && cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required when camunda.enabled")
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
