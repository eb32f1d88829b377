package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jengzang/tripwatch/internal/segmentation"
)

// Config 应用配置
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Locations    LocationsConfig    `mapstructure:"locations"`
	Poll         PollConfig         `mapstructure:"poll"`
	Segmentation SegmentationConfig `mapstructure:"segmentation"`
	Notify       NotifyConfig       `mapstructure:"notify"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	RateLimit    RateLimitConfig    `mapstructure:"ratelimit"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LocationsConfig points at the remote location API
type LocationsConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Password string        `mapstructure:"password"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// PollConfig controls the background segmentation loop
type PollConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	Lookback time.Duration `mapstructure:"lookback"`
	Subjects []string      `mapstructure:"subjects"` // Display names resolved through the location API
}

type SegmentationConfig struct {
	SpeedThresholdMetersPerMs float64 `mapstructure:"speed_threshold_m_per_ms"`
	HysteresisTicks           int     `mapstructure:"hysteresis_ticks"`
	MaxGapMs                  int64   `mapstructure:"max_gap_ms"`
	MinTripLength             int     `mapstructure:"min_trip_length"`
	FilterTrailingTrip        bool    `mapstructure:"filter_trailing_trip"`
}

type NotifyConfig struct {
	App            string        `mapstructure:"app"`
	Points         int           `mapstructure:"points"`
	LongTrip       time.Duration `mapstructure:"long_trip"`
	AnnounceTTL    time.Duration `mapstructure:"announce_ttl"`
	IncludeMedia   bool          `mapstructure:"include_media"`
	MediaTolerance float64       `mapstructure:"media_tolerance"` // Degrees
}

type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"` // Comma separated, empty disables kafka
	Topic   string `mapstructure:"topic"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"` // Empty disables redis
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"` // Empty disables API auth
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

func setDefaults(v *viper.Viper) {
	defaults := segmentation.DefaultParams()

	v.SetDefault("server.port", ":8080")
	v.SetDefault("database.path", "./data/tripwatch.db")
	v.SetDefault("locations.base_url", "http://localhost:3000/api")
	v.SetDefault("locations.password", "")
	v.SetDefault("locations.timeout", 15*time.Second)
	v.SetDefault("poll.enabled", false)
	v.SetDefault("poll.interval", 5*time.Minute)
	v.SetDefault("poll.lookback", 12*time.Hour)
	v.SetDefault("poll.subjects", []string{})
	v.SetDefault("segmentation.speed_threshold_m_per_ms", defaults.SpeedThresholdMetersPerMs)
	v.SetDefault("segmentation.hysteresis_ticks", defaults.HysteresisTicks)
	v.SetDefault("segmentation.max_gap_ms", defaults.MaxGapMs)
	v.SetDefault("segmentation.min_trip_length", defaults.MinTripLength)
	v.SetDefault("segmentation.filter_trailing_trip", defaults.FilterTrailingTrip)
	v.SetDefault("notify.app", "tripwatch")
	v.SetDefault("notify.points", 0)
	v.SetDefault("notify.media_tolerance", 0.0001)
	v.SetDefault("notify.long_trip", 20*time.Minute)
	v.SetDefault("notify.announce_ttl", 72*time.Hour)
	v.SetDefault("notify.include_media", true)
	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "trip-events")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("ratelimit.requests", 120)
	v.SetDefault("ratelimit.window", time.Minute)
}

// Load 加载配置. An empty path only uses defaults and TRIPWATCH_* environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("TRIPWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Comma separated lists from the environment arrive as one element.
	if len(cfg.Poll.Subjects) == 1 && strings.Contains(cfg.Poll.Subjects[0], ",") {
		cfg.Poll.Subjects = splitAndTrim(cfg.Poll.Subjects[0])
	}

	if err := cfg.SegmentationParams().Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// GetConfigPath returns TRIPWATCH_CONFIG_PATH, configs/config.yaml when it exists, or ""
func GetConfigPath() string {
	if path := os.Getenv("TRIPWATCH_CONFIG_PATH"); path != "" {
		return path
	}

	configPath := filepath.Join("configs", "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return configPath
	}

	return ""
}

// SegmentationParams maps the configuration onto engine parameters
func (c *Config) SegmentationParams() segmentation.Params {
	return segmentation.Params{
		SpeedThresholdMetersPerMs: c.Segmentation.SpeedThresholdMetersPerMs,
		HysteresisTicks:           c.Segmentation.HysteresisTicks,
		MaxGapMs:                  c.Segmentation.MaxGapMs,
		MinTripLength:             c.Segmentation.MinTripLength,
		FilterTrailingTrip:        c.Segmentation.FilterTrailingTrip,
	}
}

// KafkaBrokers splits the configured broker list
func (c *Config) KafkaBrokers() []string {
	return splitAndTrim(c.Kafka.Brokers)
}

func splitAndTrim(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
