// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig               `mapstructure:"app"`
	Server    ServerConfig            `mapstructure:"server"`
	Analytics AnalyticsConfig         `mapstructure:"analytics"`
	Extractor ExtractorConfig         `mapstructure:"extractor"`
	Baseline  BaselineConfig          `mapstructure:"baseline"`
	Database  DatabaseConfig          `mapstructure:"database"`
	Camunda   CamundaConfig           `mapstructure:"camunda"`
	Workers   map[string]WorkerConfig `mapstructure:"workers"`
	Logging   LoggingConfig           `mapstructure:"logging"`
	Tracing   TracingConfig           `mapstructure:"tracing"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig holds the HTTP boundary settings.
type ServerConfig struct {
	Port              int      `mapstructure:"port"`
	ReadTimeout       int      `mapstructure:"read_timeout"`    // milliseconds
	WriteTimeout      int      `mapstructure:"write_timeout"`   // milliseconds
	RequestTimeout    int      `mapstructure:"request_timeout"` // milliseconds
	MaxUploadBytes    int64    `mapstructure:"max_upload_bytes"`
	MaxFiles          int      `mapstructure:"max_files"`
	AllowedOrigins    []string `mapstructure:"allowed_origins"`
	ValidateResponses bool     `mapstructure:"validate_responses"`
}

// Address returns the listen address for the HTTP server.
func (s ServerConfig) Address() string {
	return fmt.Sprintf(":%d", s.Port)
}

// AnalyticsConfig tunes the ranking pipeline.
type AnalyticsConfig struct {
	MaxParallelFiles   int     `mapstructure:"max_parallel_files"`
	TopSizes           int     `mapstructure:"top_sizes"`
	TopCustomers       int     `mapstructure:"top_customers"`
	PerFileTopSizes    int     `mapstructure:"per_file_top_sizes"`
	PredictedSizes     int     `mapstructure:"predicted_sizes"`
	MinCustomerOrders  int     `mapstructure:"min_customer_orders"`
	CustomerFilePolicy string  `mapstructure:"customer_file_policy"`
	DecayWeight        float64 `mapstructure:"decay_weight"`
	TrendWeight        float64 `mapstructure:"trend_weight"`
}

// ExtractorConfig selects how documents become text.
type ExtractorConfig struct {
	RemoteURL string `mapstructure:"remote_url"` // Tika-compatible endpoint, optional
	Timeout   int    `mapstructure:"timeout"`    // milliseconds
}

// BaselineConfig selects where prior-period size counts come from.
type BaselineConfig struct {
	Source   string `mapstructure:"source"` // "", "postgres" or "elasticsearch"
	Index    string `mapstructure:"index"`
	Table    string `mapstructure:"table"`
	CacheTTL int    `mapstructure:"cache_ttl"` // seconds; 0 disables the redis cache
	Timeout  int    `mapstructure:"timeout"`   // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// TracingConfig enables span export. An empty endpoint keeps spans local.
type TracingConfig struct {
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}
