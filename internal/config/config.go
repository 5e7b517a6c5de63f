package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	EDGAR      EDGARConfig      `yaml:"edgar" mapstructure:"edgar"`
	Filter     FilterConfig     `yaml:"filter" mapstructure:"filter"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Market     MarketConfig     `yaml:"market" mapstructure:"market"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// EDGARConfig configures index and filing retrieval.
type EDGARConfig struct {
	ArchiveBaseURL     string   `yaml:"archive_base_url" mapstructure:"archive_base_url"`
	DailyIndexURL      string   `yaml:"daily_index_url" mapstructure:"daily_index_url"`
	UserAgent          string   `yaml:"user_agent" mapstructure:"user_agent"`
	MaxConcurrent      int      `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	RequestDelayMS     int      `yaml:"request_delay_ms" mapstructure:"request_delay_ms"`
	TimeoutSecs        int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries         int      `yaml:"max_retries" mapstructure:"max_retries"`
	FormTypes          []string `yaml:"form_types" mapstructure:"form_types"`
	IndexMissingPolicy string   `yaml:"index_missing_policy" mapstructure:"index_missing_policy"`
}

// RequestDelay is the per-filing pause as a duration.
func (c EDGARConfig) RequestDelay() time.Duration {
	return time.Duration(c.RequestDelayMS) * time.Millisecond
}

// Timeout is the per-request HTTP timeout as a duration.
func (c EDGARConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// FilterConfig configures the individual-filer filter.
type FilterConfig struct {
	EntityMarkers []string `yaml:"entity_markers" mapstructure:"entity_markers"`
}

// StoreConfig configures where flattened rows are written.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// MarketConfig configures the weekly price download.
type MarketConfig struct {
	Key              string `yaml:"key" mapstructure:"key"`
	BaseURL          string `yaml:"base_url" mapstructure:"base_url"`
	Function         string `yaml:"function" mapstructure:"function"`
	MaxConcurrent    int    `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	RequestDelaySecs int    `yaml:"request_delay_secs" mapstructure:"request_delay_secs"`
}

// RequestDelay is the pause before each quote request as a duration.
func (c MarketConfig) RequestDelay() time.Duration {
	return time.Duration(c.RequestDelaySecs) * time.Second
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// MonitoringConfig configures crawl-health alerting.
type MonitoringConfig struct {
	WebhookURL            string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	DropRateThreshold     float64 `yaml:"drop_rate_threshold" mapstructure:"drop_rate_threshold"`
	MissingIndexThreshold int     `yaml:"missing_index_threshold" mapstructure:"missing_index_threshold"`
	StaleAfterDays        int     `yaml:"stale_after_days" mapstructure:"stale_after_days"`
	LookbackDays          int     `yaml:"lookback_days" mapstructure:"lookback_days"`
	CheckIntervalSecs     int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("INSIDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("edgar.archive_base_url", "https://www.sec.gov/Archives/")
	v.SetDefault("edgar.daily_index_url", "https://www.sec.gov/Archives/edgar/daily-index/")
	v.SetDefault("edgar.user_agent", "insider-cli admin@example.com")
	v.SetDefault("edgar.max_concurrent", 8)
	v.SetDefault("edgar.request_delay_ms", 1200)
	v.SetDefault("edgar.timeout_secs", 30)
	v.SetDefault("edgar.max_retries", 3)
	v.SetDefault("edgar.form_types", []string{"4", "4/A"})
	v.SetDefault("edgar.index_missing_policy", "lenient")
	v.SetDefault("filter.entity_markers", []string{
		" llc", " lp", "group", "trust", "associates", "l.p.", "holdings", "inc.", "partners",
	})
	v.SetDefault("store.driver", "csv")
	v.SetDefault("store.path", "insider.csv")
	v.SetDefault("market.base_url", "https://www.alphavantage.co/query")
	v.SetDefault("market.function", "TIME_SERIES_WEEKLY_ADJUSTED")
	v.SetDefault("market.max_concurrent", 1)
	v.SetDefault("market.request_delay_secs", 30)
	v.SetDefault("server.port", 8080)
	v.SetDefault("monitoring.drop_rate_threshold", 0.10)
	v.SetDefault("monitoring.missing_index_threshold", 3)
	v.SetDefault("monitoring.stale_after_days", 4)
	v.SetDefault("monitoring.lookback_days", 7)
	v.SetDefault("monitoring.check_interval_secs", 3600)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the fields required by the given command (crawl, serve,
// index or market) are set.
// All problems are reported together.
func (c *Config) Validate(mode string) error {
	var missing []string

	switch mode {
	case "crawl", "serve", "index":
		if c.EDGAR.UserAgent == "" {
			missing = append(missing, "edgar.user_agent is required")
		}
		if c.EDGAR.MaxConcurrent < 1 {
			missing = append(missing, "edgar.max_concurrent must be at least 1")
		}
		if c.EDGAR.RequestDelayMS < 0 {
			missing = append(missing, "edgar.request_delay_ms must not be negative")
		}
		if len(c.EDGAR.FormTypes) == 0 {
			missing = append(missing, "edgar.form_types must not be empty")
		}
		switch c.EDGAR.IndexMissingPolicy {
		case "", "lenient", "strict":
		default:
			missing = append(missing, "edgar.index_missing_policy must be lenient or strict")
		}
		if mode == "crawl" {
			missing = append(missing, c.validateStore()...)
		}
		if mode == "serve" && c.Server.Port <= 0 {
			missing = append(missing, "server.port must be > 0")
		}
	case "market":
		if c.Market.Key == "" {
			missing = append(missing, "market.key is required")
		}
		if c.Market.MaxConcurrent < 1 {
			missing = append(missing, "market.max_concurrent must be at least 1")
		}
	default:
		return eris.Errorf("config: unknown validation mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.Errorf("config: %s", strings.Join(missing, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	switch c.Store.Driver {
	case "csv", "sqlite":
		if c.Store.Path == "" {
			return []string{"store.path is required for the " + c.Store.Driver + " driver"}
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return []string{"store.database_url is required for the postgres driver"}
		}
	default:
		return []string{"store.driver must be csv, sqlite or postgres"}
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
