package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App          AppConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Search       SearchConfig
	Cache        CacheConfig
	Loyalty      LoyaltyConfig
	Organization OrganizationConfig
	Log          LogConfig
	HTTP         HTTPConfig
	Telemetry    TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port for the Redis client
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// SearchConfig holds the full-text search index settings
type SearchConfig struct {
	Host            string
	APIKey          string
	CustomerIndex   string
	Attempts        int           // total attempts per call, 1 disables retry
	InitialInterval time.Duration // first backoff interval
	MaxInterval     time.Duration
	ResultLimit     int64
}

// CacheConfig holds read-through cache settings
type CacheConfig struct {
	L1Enabled     bool          // in-process layer in front of Redis
	L1TTL         time.Duration // L1 entries never outlive this
	SearchTTL     time.Duration // customer_search entries
	SnapshotTTL   time.Duration // customers:{org}:{id}
	VolatileTTL   time.Duration // marketing data
	ReferenceTTL  time.Duration // reference data
	PubSubChannel string
}

// LoyaltyConfig holds loyalty programme settings
type LoyaltyConfig struct {
	PointsPerKES     float64
	MinSearchQuery   int
	MaxHistoryPage   int
	ReindexBatchSize int
}

// OrganizationConfig holds slug resolution settings
type OrganizationConfig struct {
	SlugCacheCapacity uint64
	SlugCacheTTL      time.Duration
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	CORSAllowOrigins  []string
	CORSAllowMethods  []string
	CORSAllowHeaders  []string
	TrustedProxies    []string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	MetricsEnabled    bool
	MetricsInterval   time.Duration
	// Database tracing options
	DBTraceEnabled    bool          // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool          // Log full SQL statements (dev only)
	DBSlowQueryThresh time.Duration // Slow query threshold for warnings
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with BACKOFFICE_ prefix (e.g., BACKOFFICE_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("BACKOFFICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Redis is on unless explicitly disabled
	v.SetDefault("redis.enabled", true)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Search: SearchConfig{
			Host:            v.GetString("search.host"),
			APIKey:          v.GetString("search.api_key"),
			CustomerIndex:   v.GetString("search.customer_index"),
			Attempts:        v.GetInt("search.attempts"),
			InitialInterval: v.GetDuration("search.initial_interval"),
			MaxInterval:     v.GetDuration("search.max_interval"),
			ResultLimit:     v.GetInt64("search.result_limit"),
		},
		Cache: CacheConfig{
			L1Enabled:     v.GetBool("cache.l1_enabled"),
			L1TTL:         v.GetDuration("cache.l1_ttl"),
			SearchTTL:     v.GetDuration("cache.search_ttl"),
			SnapshotTTL:   v.GetDuration("cache.snapshot_ttl"),
			VolatileTTL:   v.GetDuration("cache.volatile_ttl"),
			ReferenceTTL:  v.GetDuration("cache.reference_ttl"),
			PubSubChannel: v.GetString("cache.pubsub_channel"),
		},
		Loyalty: LoyaltyConfig{
			PointsPerKES:     v.GetFloat64("loyalty.points_per_kes"),
			MinSearchQuery:   v.GetInt("loyalty.min_search_query"),
			MaxHistoryPage:   v.GetInt("loyalty.max_history_page"),
			ReindexBatchSize: v.GetInt("loyalty.reindex_batch_size"),
		},
		Organization: OrganizationConfig{
			SlugCacheCapacity: v.GetUint64("organization.slug_cache_capacity"),
			SlugCacheTTL:      v.GetDuration("organization.slug_cache_ttl"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:  v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:  v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "backoffice"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "backoffice"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Search.Host == "" {
		cfg.Search.Host = "http://localhost:7700"
	}
	if cfg.Search.CustomerIndex == "" {
		cfg.Search.CustomerIndex = "customers"
	}
	if cfg.Search.Attempts == 0 {
		cfg.Search.Attempts = 2
	}
	if cfg.Search.InitialInterval == 0 {
		cfg.Search.InitialInterval = 100 * time.Millisecond
	}
	if cfg.Search.MaxInterval == 0 {
		cfg.Search.MaxInterval = 2 * time.Second
	}
	if cfg.Search.ResultLimit == 0 {
		cfg.Search.ResultLimit = 20
	}
	if cfg.Cache.L1TTL == 0 {
		cfg.Cache.L1TTL = 30 * time.Second
	}
	if cfg.Cache.SearchTTL == 0 {
		cfg.Cache.SearchTTL = 3600 * time.Second
	}
	if cfg.Cache.SnapshotTTL == 0 {
		cfg.Cache.SnapshotTTL = 15 * time.Minute
	}
	if cfg.Cache.VolatileTTL == 0 {
		cfg.Cache.VolatileTTL = 5 * time.Minute
	}
	if cfg.Cache.ReferenceTTL == 0 {
		cfg.Cache.ReferenceTTL = 3 * time.Hour
	}
	if cfg.Cache.PubSubChannel == "" {
		cfg.Cache.PubSubChannel = "cache:invalidate"
	}
	if cfg.Loyalty.PointsPerKES == 0 {
		cfg.Loyalty.PointsPerKES = 200
	}
	if cfg.Loyalty.MinSearchQuery == 0 {
		cfg.Loyalty.MinSearchQuery = 3
	}
	if cfg.Loyalty.MaxHistoryPage == 0 {
		cfg.Loyalty.MaxHistoryPage = 100
	}
	if cfg.Loyalty.ReindexBatchSize == 0 {
		cfg.Loyalty.ReindexBatchSize = 500
	}
	if cfg.Organization.SlugCacheCapacity == 0 {
		cfg.Organization.SlugCacheCapacity = 10000
	}
	if cfg.Organization.SlugCacheTTL == 0 {
		cfg.Organization.SlugCacheTTL = 3 * time.Hour
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 100
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	// NOTE: CORS origins have no "*" fallback. An empty list allows no cross-origin requests.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID", "X-Organization-ID", "X-Organization-Slug"}
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "backoffice"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Search.Attempts < 1 || c.Search.Attempts > 5 {
		return fmt.Errorf("search.attempts must be between 1 and 5, got %d", c.Search.Attempts)
	}
	if c.Loyalty.PointsPerKES < 0 {
		return fmt.Errorf("loyalty.points_per_kes cannot be negative")
	}
	if c.Loyalty.MinSearchQuery < 1 {
		return fmt.Errorf("loyalty.min_search_query must be positive")
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Search.APIKey == "" {
			return fmt.Errorf("search.api_key is required in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
