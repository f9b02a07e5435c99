package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/couchcryptid/climate-data-monitor/internal/domain"
	"github.com/couchcryptid/climate-data-monitor/internal/registry"
)

// EnvPrefix prefixes every environment override, e.g.
// CDM_QUALITY_THRESHOLDS_MIN_QUALITY_SCORE.
const EnvPrefix = "CDM"

// RequiredSections must appear in a config file.
var RequiredSections = []string{"climate", "quality", "registry"}

// Config holds all monitor settings.
type Config struct {
	Climate   ClimateConfig   `mapstructure:"climate"`
	Filtering FilteringConfig `mapstructure:"filtering"`
	Quality   QualityConfig   `mapstructure:"quality"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	AWS       AWSConfig       `mapstructure:"aws"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Redis     RedisConfig     `mapstructure:"redis"`
	History   HistoryConfig   `mapstructure:"history"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`

	// Thresholds is parsed from quality.thresholds.
	Thresholds domain.Thresholds `mapstructure:"-"`
	// Location is parsed from registry.url.
	Location registry.Location `mapstructure:"-"`
	// ShutdownTimeout comes from SHUTDOWN_TIMEOUT.
	ShutdownTimeout time.Duration `mapstructure:"-"`
}

type ClimateConfig struct {
	SourceURL        string        `mapstructure:"source_url"`
	DownloadDir      string        `mapstructure:"download_dir"`
	OpenMeteoURL     string        `mapstructure:"openmeteo_url"`
	OpenMeteoTimeout time.Duration `mapstructure:"openmeteo_timeout"`
}

type FilteringConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	StationIDs []string `mapstructure:"station_ids"`
	DataTypes  []string `mapstructure:"data_types"`
	StartDate  string   `mapstructure:"start_date"`
	EndDate    string   `mapstructure:"end_date"`
}

type QualityConfig struct {
	OutputDir       string `mapstructure:"output_dir"`
	EnforceMinScore bool   `mapstructure:"enforce_min_score"`
}

type RegistryConfig struct {
	URL     string `mapstructure:"url"`
	Package string `mapstructure:"package"`
	// PushEnabled defaults to true for s3:// registries and false otherwise.
	PushEnabled     bool `mapstructure:"push_enabled"`
	CacheSize       int  `mapstructure:"cache_size"`
	MaxPushAttempts int  `mapstructure:"max_push_attempts"`
}

type AWSConfig struct {
	Region           string `mapstructure:"region"`
	AccessKeyID      string `mapstructure:"access_key_id"`
	SecretAccessKey  string `mapstructure:"secret_access_key"`
	SessionToken     string `mapstructure:"session_token"`
	Endpoint         string `mapstructure:"endpoint"`
	ForcePathStyle   bool   `mapstructure:"force_path_style"`
	TestBucketAccess bool   `mapstructure:"test_bucket_access"`
}

type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// BrokerList splits Brokers on commas. Empty means notifications are off.
func (k KafkaConfig) BrokerList() []string {
	if strings.TrimSpace(k.Brokers) == "" {
		return nil
	}
	return sharedcfg.ParseBrokers(k.Brokers)
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type HistoryConfig struct {
	DSN string `mapstructure:"dsn"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type ScheduleConfig struct {
	Cron string `mapstructure:"cron"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("climate.source_url", "")
	v.SetDefault("climate.download_dir", "data/raw")
	v.SetDefault("climate.openmeteo_url", "https://archive-api.open-meteo.com/v1/archive")
	v.SetDefault("climate.openmeteo_timeout", "10s")

	v.SetDefault("filtering.enabled", false)
	v.SetDefault("filtering.station_ids", []string{})
	v.SetDefault("filtering.data_types", []string{})
	v.SetDefault("filtering.start_date", "")
	v.SetDefault("filtering.end_date", "")

	defaults := domain.DefaultThresholds()
	for key, value := range map[string]float64{
		domain.KeyMinQualityScore:      defaults.MinQualityScore,
		domain.KeyMaxNullPercentage:    defaults.MaxNullPercentage,
		domain.KeyMaxOutlierPercentage: defaults.MaxOutlierPercentage,
		domain.KeyTempOutlierStdDev:    defaults.TempOutlierStdDev,
		domain.KeyTempMinValid:         defaults.TempMinValid,
		domain.KeyTempMaxValid:         defaults.TempMaxValid,
		domain.KeyPrecipMaxDaily:       defaults.PrecipMaxDaily,
	} {
		v.SetDefault("quality.thresholds."+key, value)
	}
	v.SetDefault("quality.output_dir", "data/reports")
	v.SetDefault("quality.enforce_min_score", false)

	v.SetDefault("registry.url", "data/registry")
	v.SetDefault("registry.package", "climate/daily")
	v.SetDefault("registry.cache_size", 128)
	v.SetDefault("registry.max_push_attempts", 3)

	v.SetDefault("aws.region", "us-west-2")
	v.SetDefault("aws.access_key_id", "")
	v.SetDefault("aws.secret_access_key", "")
	v.SetDefault("aws.session_token", "")
	v.SetDefault("aws.endpoint", "")
	v.SetDefault("aws.force_path_style", false)
	v.SetDefault("aws.test_bucket_access", true)

	v.SetDefault("kafka.brokers", sharedcfg.EnvOrDefault("KAFKA_BROKERS", ""))
	v.SetDefault("kafka.topic", "climate-packages")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "climate")

	v.SetDefault("history.dsn", "")

	v.SetDefault("logging.level", sharedcfg.EnvOrDefault("LOG_LEVEL", "info"))
	v.SetDefault("logging.format", sharedcfg.EnvOrDefault("LOG_FORMAT", "json"))

	v.SetDefault("http.addr", sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"))
	v.SetDefault("schedule.cron", "")
}

// Load reads the YAML file at path (optional when empty), a .env file in the
// working directory if present, and CDM_* environment overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		var missing []string
		for _, s := range RequiredSections {
			if !v.InConfig(s) {
				missing = append(missing, s)
			}
		}
		if len(missing) > 0 {
			return nil, fmt.Errorf("missing required config sections: %v", missing)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	raw := make(map[string]any, len(domain.ThresholdKeys))
	for _, key := range domain.ThresholdKeys {
		raw[key] = v.Get("quality.thresholds." + key)
	}
	var err error
	if cfg.Thresholds, err = domain.ThresholdsFromMap(raw); err != nil {
		return nil, err
	}

	if cfg.Location, err = registry.ParseRegistryURL(cfg.Registry.URL); err != nil {
		return nil, err
	}
	if v.IsSet("registry.push_enabled") {
		cfg.Registry.PushEnabled = v.GetBool("registry.push_enabled")
	} else {
		cfg.Registry.PushEnabled = cfg.Location.Remote()
	}

	if cfg.ShutdownTimeout, err = sharedcfg.ParseShutdownTimeout(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings every command needs.
func (c *Config) Validate() error {
	if c.Climate.DownloadDir == "" {
		return errors.New("climate.download_dir is required")
	}
	if c.Quality.OutputDir == "" {
		return errors.New("quality.output_dir is required")
	}
	if c.Registry.URL == "" {
		return errors.New("registry.url is required")
	}
	if _, err := registry.ParsePackageName(c.Registry.Package); err != nil {
		return fmt.Errorf("registry.package: %w", err)
	}
	if c.Climate.OpenMeteoTimeout <= 0 {
		return errors.New("climate.openmeteo_timeout must be positive")
	}
	if c.Registry.CacheSize <= 0 {
		return errors.New("registry.cache_size must be positive")
	}
	if c.Registry.MaxPushAttempts <= 0 {
		return errors.New("registry.max_push_attempts must be positive")
	}
	if _, _, err := c.Filtering.DateRange(); err != nil {
		return err
	}
	return nil
}

// DateRange parses start_date and end_date. An empty date is returned as the
// zero time.
func (f FilteringConfig) DateRange() (start, end time.Time, err error) {
	if f.StartDate != "" {
		if start, err = time.Parse(domain.DateLayout, f.StartDate); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("filtering.start_date: %w", err)
		}
	}
	if f.EndDate != "" {
		if end, err = time.Parse(domain.DateLayout, f.EndDate); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("filtering.end_date: %w", err)
		}
	}
	if !start.IsZero() && !end.IsZero() && start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("filtering.start_date %s is after end_date %s", f.StartDate, f.EndDate)
	}
	return start, end, nil
}

// Elements returns the configured element filter as domain elements.
func (f FilteringConfig) Elements() []domain.Element {
	out := make([]domain.Element, 0, len(f.DataTypes))
	for _, d := range f.DataTypes {
		out = append(out, domain.Element(strings.ToUpper(strings.TrimSpace(d))))
	}
	return out
}
