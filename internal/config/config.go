package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SourceConfig holds the settings for one external rate provider.
type SourceConfig struct {
	Name       string        `mapstructure:"name" yaml:"name"`
	BaseURL    string        `mapstructure:"base_url" yaml:"base_url"`
	APIKey     string        `mapstructure:"api_key" yaml:"api_key"`
	Currencies []string      `mapstructure:"currencies" yaml:"currencies"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Priority   int           `mapstructure:"priority" yaml:"priority"`
}

// Config is the application configuration.
type Config struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	Server struct {
		Host            string        `mapstructure:"host" yaml:"host"`
		Port            int           `mapstructure:"port" yaml:"port"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	} `mapstructure:"server" yaml:"server"`

	Database struct {
		DSN             string `mapstructure:"dsn" yaml:"dsn"`
		MaxOpenConns    int    `mapstructure:"max_open_conns" yaml:"max_open_conns"`
		MaxIdleConns    int    `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
		ConnMaxLifetime int    `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"` // seconds
	} `mapstructure:"database" yaml:"database"`

	Redis struct {
		Address  string `mapstructure:"address" yaml:"address"`
		Password string `mapstructure:"password" yaml:"password"`
		DB       int    `mapstructure:"db" yaml:"db"`
	} `mapstructure:"redis" yaml:"redis"`

	Kafka struct {
		Enabled bool     `mapstructure:"enabled" yaml:"enabled"`
		Brokers []string `mapstructure:"brokers" yaml:"brokers"`
		Topic   string   `mapstructure:"topic" yaml:"topic"`
	} `mapstructure:"kafka" yaml:"kafka"`

	Collector struct {
		Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	} `mapstructure:"collector" yaml:"collector"`

	Pipeline struct {
		SpreadRate    float64       `mapstructure:"spread_rate" yaml:"spread_rate"`
		MaxSaneRate   float64       `mapstructure:"max_sane_rate" yaml:"max_sane_rate"`
		DedupWindow   time.Duration `mapstructure:"dedup_window" yaml:"dedup_window"`
		DedupEpsilon  float64       `mapstructure:"dedup_epsilon" yaml:"dedup_epsilon"`
		BatchSize     int           `mapstructure:"batch_size" yaml:"batch_size"`
		RetentionDays int           `mapstructure:"retention_days" yaml:"retention_days"`
	} `mapstructure:"pipeline" yaml:"pipeline"`

	Cache struct {
		IngestTTL time.Duration `mapstructure:"ingest_ttl" yaml:"ingest_ttl"`
		FillTTL   time.Duration `mapstructure:"fill_ttl" yaml:"fill_ttl"`
	} `mapstructure:"cache" yaml:"cache"`

	Sources struct {
		BOK             SourceConfig `mapstructure:"bok" yaml:"bok"`
		ExchangeRateAPI SourceConfig `mapstructure:"exchangerate_api" yaml:"exchangerate_api"`
		Fixer           SourceConfig `mapstructure:"fixer" yaml:"fixer"`
	} `mapstructure:"sources" yaml:"sources"`
}

// LoadConfig loads configuration from defaults, an optional config.yaml and
// RATEFEED_* environment variables, in increasing precedence.
func LoadConfig() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/ratefeed")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("RATEFEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.dsn", "host=localhost user=ratefeed password=ratefeed dbname=currency_db port=5432 sslmode=disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 3600)

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.enabled", true)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "exchange-rates")

	v.SetDefault("collector.interval", 5*time.Minute)

	v.SetDefault("pipeline.spread_rate", 0.02)
	v.SetDefault("pipeline.max_sane_rate", 10000.0)
	v.SetDefault("pipeline.dedup_window", time.Hour)
	v.SetDefault("pipeline.dedup_epsilon", 0.01)
	v.SetDefault("pipeline.batch_size", 100)
	v.SetDefault("pipeline.retention_days", 365)

	v.SetDefault("cache.ingest_ttl", 10*time.Minute)
	v.SetDefault("cache.fill_ttl", 10*time.Minute)

	v.SetDefault("sources.bok.name", "Bank of Korea")
	v.SetDefault("sources.bok.base_url", "https://ecos.bok.or.kr/api/StatisticSearch")
	v.SetDefault("sources.bok.api_key", "")
	v.SetDefault("sources.bok.currencies", []string{"USD", "JPY", "EUR", "GBP", "CNY"})
	v.SetDefault("sources.bok.timeout", 15*time.Second)
	v.SetDefault("sources.bok.priority", 1)

	v.SetDefault("sources.exchangerate_api.name", "ExchangeRate-API")
	v.SetDefault("sources.exchangerate_api.base_url", "https://api.exchangerate-api.com/v4/latest/KRW")
	v.SetDefault("sources.exchangerate_api.api_key", "")
	v.SetDefault("sources.exchangerate_api.currencies", []string{"USD", "JPY", "EUR", "GBP", "CNY", "AUD", "CAD", "CHF"})
	v.SetDefault("sources.exchangerate_api.timeout", 10*time.Second)
	v.SetDefault("sources.exchangerate_api.priority", 2)

	v.SetDefault("sources.fixer.name", "Fixer.io")
	v.SetDefault("sources.fixer.base_url", "http://data.fixer.io/api/latest")
	v.SetDefault("sources.fixer.api_key", "")
	v.SetDefault("sources.fixer.currencies", []string{"USD", "JPY", "EUR", "GBP"})
	v.SetDefault("sources.fixer.timeout", 10*time.Second)
	v.SetDefault("sources.fixer.priority", 3)
}
