package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Census CensusConfig `yaml:"census" mapstructure:"census"`
	HTTP   HTTPConfig   `yaml:"http" mapstructure:"http"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// CensusConfig configures the Census Bureau upstreams and request defaults.
type CensusConfig struct {
	APIKey                  string `yaml:"api_key" mapstructure:"api_key"`
	StatsBaseURL            string `yaml:"stats_base_url" mapstructure:"stats_base_url"`
	GeocoderBaseURL         string `yaml:"geocoder_base_url" mapstructure:"geocoder_base_url"`
	TigerwebBaseURL         string `yaml:"tigerweb_base_url" mapstructure:"tigerweb_base_url"`
	DefaultYear             int    `yaml:"default_year" mapstructure:"default_year"`
	DefaultAPI              string `yaml:"default_api" mapstructure:"default_api"`
	DefaultLevel            string `yaml:"default_level" mapstructure:"default_level"`
	Vintage                 string `yaml:"vintage" mapstructure:"vintage"`
	SupplementalConcurrency int    `yaml:"supplemental_concurrency" mapstructure:"supplemental_concurrency"`
	GeocoderBenchmark       string `yaml:"geocoder_benchmark" mapstructure:"geocoder_benchmark"`
	GeocoderVintage         string `yaml:"geocoder_vintage" mapstructure:"geocoder_vintage"`
	GeocoderRPS             int    `yaml:"geocoder_rps" mapstructure:"geocoder_rps"`
	GoogleAPIKey            string `yaml:"google_api_key" mapstructure:"google_api_key"`
	AliasesFile             string `yaml:"aliases_file" mapstructure:"aliases_file"`
}

// HTTPConfig configures the shared upstream HTTP client.
type HTTPConfig struct {
	UserAgent        string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs      int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries       int    `yaml:"max_retries" mapstructure:"max_retries"`
	InitialBackoffMs int    `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int    `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. An empty path looks
// for an optional config.yaml in the working directory; an explicit path
// must exist.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("CITYSDK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("census.api_key", "")
	v.SetDefault("census.stats_base_url", "https://api.census.gov/data")
	v.SetDefault("census.geocoder_base_url", "https://geocoding.geo.census.gov/geocoder")
	v.SetDefault("census.tigerweb_base_url", "https://tigerweb.geo.census.gov/arcgis/rest/services/TIGERweb")
	v.SetDefault("census.default_year", 2014)
	v.SetDefault("census.default_api", "acs5")
	v.SetDefault("census.default_level", "blockGroup")
	v.SetDefault("census.vintage", "current")
	v.SetDefault("census.supplemental_concurrency", 8)
	v.SetDefault("census.geocoder_benchmark", "Public_AR_Current")
	v.SetDefault("census.geocoder_vintage", "Current_Current")
	v.SetDefault("census.geocoder_rps", 50)
	v.SetDefault("census.google_api_key", "")
	v.SetDefault("census.aliases_file", "")
	v.SetDefault("http.user_agent", "citysdk/1.0")
	v.SetDefault("http.timeout_secs", 30)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.initial_backoff_ms", 500)
	v.SetDefault("http.max_backoff_ms", 10000)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
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

var validLevels = map[string]bool{
	"us": true, "nation": true, "state": true, "county": true,
	"tract": true, "place": true, "blockGroup": true,
}

var validVintages = map[string]bool{
	"current": true, "acs2014": true, "acs2013": true, "census2010": true,
}

// Validate checks the settings a given command depends on. Mode is one of
// "resolve" (one-shot CLI resolution) or "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "resolve":
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if !validLevels[c.Census.DefaultLevel] {
		errs = append(errs, fmt.Sprintf("census.default_level %q is not a geography level", c.Census.DefaultLevel))
	}
	if !validVintages[c.Census.Vintage] {
		errs = append(errs, fmt.Sprintf("census.vintage %q is not a known map service vintage", c.Census.Vintage))
	}
	if c.Census.SupplementalConcurrency < 1 || c.Census.SupplementalConcurrency > 64 {
		errs = append(errs, "census.supplemental_concurrency must be between 1 and 64")
	}
	if c.Census.DefaultYear < 2010 {
		errs = append(errs, "census.default_year must be >= 2010")
	}
	if c.HTTP.MaxRetries < 0 {
		errs = append(errs, "http.max_retries must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
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
