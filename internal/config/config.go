// Package config loads cloudkit settings from YAML files, .env files and
// CLOUDKIT_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/cloudkit/cloudkit/internal/analytics/pinpoint"
	"github.com/cloudkit/cloudkit/internal/batch"
	"github.com/cloudkit/cloudkit/internal/metrics"
	"github.com/cloudkit/cloudkit/internal/storage/s3"
	"github.com/cloudkit/cloudkit/internal/telemetry"
	"github.com/cloudkit/cloudkit/pkg/errors"
)

// EnvPrefix is the prefix of every environment variable read by LoadFromEnv.
const EnvPrefix = "CLOUDKIT_"

// Configuration represents the complete application configuration
type Configuration struct {
	Global     GlobalConfig     `yaml:"global"`
	Analytics  AnalyticsConfig  `yaml:"analytics"`
	Storage    StorageConfig    `yaml:"storage"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

// GlobalConfig represents global application settings
type GlobalConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	OutputsFile string `yaml:"outputs_file"`
}

// AnalyticsConfig represents the analytics plugin settings
type AnalyticsConfig struct {
	Enabled                 bool          `yaml:"enabled"`
	AutoFlushEventsInterval time.Duration `yaml:"auto_flush_events_interval"`
	TrackAppLifecycleEvents bool          `yaml:"track_app_lifecycle_events"`
	ArchivePrefix           string        `yaml:"archive_prefix"`
	MaxBatchSize            int           `yaml:"max_batch_size"`
}

// StorageConfig represents the storage plugin settings
type StorageConfig struct {
	Enabled              bool          `yaml:"enabled"`
	Bucket               string        `yaml:"bucket"`
	Endpoint             string        `yaml:"endpoint"`
	ForcePathStyle       bool          `yaml:"force_path_style"`
	UseAccelerate        bool          `yaml:"use_accelerate"`
	TransferOptimization bool          `yaml:"transfer_optimization"`
	UploadConcurrency    int           `yaml:"upload_concurrency"`
	DefaultAccessLevel   string        `yaml:"default_access_level"`
	URLExpiration        time.Duration `yaml:"url_expiration"`
	URLCacheSize         int           `yaml:"url_cache_size"`
	AccessKeyID          string        `yaml:"access_key_id"`
	SecretAccessKey      string        `yaml:"secret_access_key"`
	SessionToken         string        `yaml:"session_token"`
}

// MonitoringConfig represents monitoring settings
type MonitoringConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// TracingConfig represents tracing settings
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// MetricsConfig represents metrics settings
type MetricsConfig struct {
	Enabled      bool              `yaml:"enabled"`
	Port         int               `yaml:"port"`
	Path         string            `yaml:"path"`
	CustomLabels map[string]string `yaml:"custom_labels"`
}

// NewDefault returns a configuration with sensible defaults
func NewDefault() *Configuration {
	analytics := pinpoint.DefaultOptions()
	batchCfg := batch.DefaultConfig()
	storage := s3.DefaultOptions()
	metricsCfg := metrics.DefaultConfig()
	tracingCfg := telemetry.DefaultTracingConfig()

	return &Configuration{
		Global: GlobalConfig{
			LogLevel:    "INFO",
			LogFormat:   "text",
			OutputsFile: "cloudkit_outputs.json",
		},
		Analytics: AnalyticsConfig{
			Enabled:                 true,
			AutoFlushEventsInterval: analytics.AutoFlushEventsInterval,
			TrackAppLifecycleEvents: analytics.TrackLifecycleEvents,
			ArchivePrefix:           "analytics/",
			MaxBatchSize:            batchCfg.MaxBatchSize,
		},
		Storage: StorageConfig{
			Enabled:            true,
			UploadConcurrency:  storage.UploadConcurrency,
			DefaultAccessLevel: storage.DefaultAccessLevel,
			URLExpiration:      storage.URLExpiration,
			URLCacheSize:       128,
		},
		Monitoring: MonitoringConfig{
			Metrics: MetricsConfig{
				Enabled: false,
				Port:    metricsCfg.Port,
				Path:    metricsCfg.Path,
				CustomLabels: map[string]string{
					"service": "cloudkit",
				},
			},
			Tracing: TracingConfig{
				Enabled:      tracingCfg.Enabled,
				Exporter:     tracingCfg.Exporter,
				SamplingRate: tracingCfg.SamplingRate,
			},
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return errors.Wrap(err, errors.CategoryCore, errors.ErrCodeMissingConfig,
			"failed to read config file").WithDetail("file", filename)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrap(err, errors.CategoryCore, errors.ErrCodeInvalidConfig,
			"failed to parse config file").WithDetail("file", filename)
	}

	return nil
}

// LoadDotEnv loads the given .env files into the process environment.
// Missing files are skipped; variables already set are not overridden.
func LoadDotEnv(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}

	var existing []string
	for _, name := range filenames {
		if _, err := os.Stat(name); err == nil {
			existing = append(existing, name)
		}
	}
	if len(existing) == 0 {
		return nil
	}

	if err := godotenv.Load(existing...); err != nil {
		return errors.Wrap(err, errors.CategoryCore, errors.ErrCodeInvalidConfig,
			"failed to load .env file")
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables
func (c *Configuration) LoadFromEnv() error {
	// Global settings
	if val := getenv("LOG_LEVEL"); val != "" {
		c.Global.LogLevel = strings.ToUpper(val)
	}
	if val := getenv("LOG_FORMAT"); val != "" {
		c.Global.LogFormat = strings.ToLower(val)
	}
	if val := getenv("OUTPUTS_FILE"); val != "" {
		c.Global.OutputsFile = val
	}

	// Analytics settings
	if val := getenv("ANALYTICS_ENABLED"); val != "" {
		c.Analytics.Enabled = parseBool(val)
	}
	if err := envDuration("ANALYTICS_AUTO_FLUSH_EVENTS_INTERVAL", &c.Analytics.AutoFlushEventsInterval); err != nil {
		return err
	}
	if val := getenv("ANALYTICS_TRACK_APP_LIFECYCLE_EVENTS"); val != "" {
		c.Analytics.TrackAppLifecycleEvents = parseBool(val)
	}
	if val := getenv("ANALYTICS_ARCHIVE_PREFIX"); val != "" {
		c.Analytics.ArchivePrefix = val
	}
	if val := getenv("ANALYTICS_MAX_BATCH_SIZE"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return envError("ANALYTICS_MAX_BATCH_SIZE", val, err)
		}
		c.Analytics.MaxBatchSize = n
	}

	// Storage settings
	if val := getenv("STORAGE_ENABLED"); val != "" {
		c.Storage.Enabled = parseBool(val)
	}
	if val := getenv("STORAGE_BUCKET"); val != "" {
		c.Storage.Bucket = val
	}
	if val := getenv("STORAGE_ENDPOINT"); val != "" {
		c.Storage.Endpoint = val
	}
	if val := getenv("STORAGE_FORCE_PATH_STYLE"); val != "" {
		c.Storage.ForcePathStyle = parseBool(val)
	}
	if val := getenv("STORAGE_TRANSFER_OPTIMIZATION"); val != "" {
		c.Storage.TransferOptimization = parseBool(val)
	}
	if val := getenv("STORAGE_UPLOAD_CONCURRENCY"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return envError("STORAGE_UPLOAD_CONCURRENCY", val, err)
		}
		c.Storage.UploadConcurrency = n
	}
	if val := getenv("STORAGE_DEFAULT_ACCESS_LEVEL"); val != "" {
		c.Storage.DefaultAccessLevel = strings.ToLower(val)
	}
	if err := envDuration("STORAGE_URL_EXPIRATION", &c.Storage.URLExpiration); err != nil {
		return err
	}
	if val := getenv("STORAGE_URL_CACHE_SIZE"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return envError("STORAGE_URL_CACHE_SIZE", val, err)
		}
		c.Storage.URLCacheSize = n
	}
	if val := getenv("STORAGE_ACCESS_KEY_ID"); val != "" {
		c.Storage.AccessKeyID = val
	}
	if val := getenv("STORAGE_SECRET_ACCESS_KEY"); val != "" {
		c.Storage.SecretAccessKey = val
	}
	if val := getenv("STORAGE_SESSION_TOKEN"); val != "" {
		c.Storage.SessionToken = val
	}

	// Monitoring settings
	if val := getenv("METRICS_ENABLED"); val != "" {
		c.Monitoring.Metrics.Enabled = parseBool(val)
	}
	if val := getenv("METRICS_PORT"); val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return envError("METRICS_PORT", val, err)
		}
		c.Monitoring.Metrics.Port = port
	}
	if val := getenv("TRACING_ENABLED"); val != "" {
		c.Monitoring.Tracing.Enabled = parseBool(val)
	}
	if val := getenv("TRACING_EXPORTER"); val != "" {
		c.Monitoring.Tracing.Exporter = strings.ToLower(val)
	}
	if val := getenv("TRACING_SAMPLING_RATE"); val != "" {
		rate, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return envError("TRACING_SAMPLING_RATE", val, err)
		}
		c.Monitoring.Tracing.SamplingRate = rate
	}

	return nil
}

// SaveToFile saves the configuration to a YAML file
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Configuration) Validate() error {
	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	logLevelValid := false
	for _, level := range validLogLevels {
		if c.Global.LogLevel == level {
			logLevelValid = true
			break
		}
	}
	if !logLevelValid {
		return invalid("invalid log_level: %s (must be one of: %s)",
			c.Global.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if c.Global.LogFormat != "text" && c.Global.LogFormat != "json" {
		return invalid("invalid log_format: %s (must be text or json)", c.Global.LogFormat)
	}

	if c.Global.OutputsFile == "" {
		return invalid("outputs_file cannot be empty")
	}

	if c.Analytics.Enabled && c.Analytics.AutoFlushEventsInterval <= 0 {
		return invalid("auto_flush_events_interval must be greater than 0")
	}

	if c.Analytics.Enabled && c.Analytics.MaxBatchSize <= 0 {
		return invalid("max_batch_size must be greater than 0")
	}

	if c.Storage.Enabled {
		switch c.Storage.DefaultAccessLevel {
		case s3.AccessLevelPublic, s3.AccessLevelProtected, s3.AccessLevelPrivate:
		default:
			return invalid("invalid default_access_level: %s", c.Storage.DefaultAccessLevel)
		}
		if c.Storage.URLExpiration <= 0 {
			return invalid("url_expiration must be greater than 0")
		}
		if c.Storage.URLCacheSize < 0 {
			return invalid("url_cache_size cannot be negative")
		}
		if (c.Storage.AccessKeyID == "") != (c.Storage.SecretAccessKey == "") {
			return invalid("access_key_id and secret_access_key must be set together")
		}
	}

	if c.Monitoring.Tracing.Enabled {
		switch c.Monitoring.Tracing.Exporter {
		case "stdout", "none":
		default:
			return invalid("invalid tracing exporter: %s (must be stdout or none)", c.Monitoring.Tracing.Exporter)
		}
		if c.Monitoring.Tracing.SamplingRate < 0 || c.Monitoring.Tracing.SamplingRate > 1 {
			return invalid("tracing sampling_rate must be between 0 and 1, got %v", c.Monitoring.Tracing.SamplingRate)
		}
	}

	if c.Monitoring.Metrics.Enabled && (c.Monitoring.Metrics.Port <= 0 || c.Monitoring.Metrics.Port > 65535) {
		return invalid("metrics port must be between 1 and 65535, got %d", c.Monitoring.Metrics.Port)
	}

	return nil
}

// AnalyticsOptions converts the analytics section into plugin options.
func (c *Configuration) AnalyticsOptions() pinpoint.Options {
	return pinpoint.Options{
		AutoFlushEventsInterval: c.Analytics.AutoFlushEventsInterval,
		TrackLifecycleEvents:    c.Analytics.TrackAppLifecycleEvents,
	}
}

// BatchConfig converts the analytics section into an event batch config.
func (c *Configuration) BatchConfig() batch.Config {
	cfg := batch.DefaultConfig()
	cfg.MaxBatchSize = c.Analytics.MaxBatchSize
	if cfg.MaxPending < cfg.MaxBatchSize {
		cfg.MaxPending = cfg.MaxBatchSize
	}
	return cfg
}

// StorageOptions converts the storage section into plugin options.
func (c *Configuration) StorageOptions() s3.Options {
	return s3.Options{
		Bucket:               c.Storage.Bucket,
		Endpoint:             c.Storage.Endpoint,
		ForcePathStyle:       c.Storage.ForcePathStyle,
		UseAccelerate:        c.Storage.UseAccelerate,
		TransferOptimization: c.Storage.TransferOptimization,
		UploadConcurrency:    c.Storage.UploadConcurrency,
		DefaultAccessLevel:   c.Storage.DefaultAccessLevel,
		URLExpiration:        c.Storage.URLExpiration,
		URLCacheSize:         c.Storage.URLCacheSize,
		AccessKeyID:          c.Storage.AccessKeyID,
		SecretAccessKey:      c.Storage.SecretAccessKey,
		SessionToken:         c.Storage.SessionToken,
	}
}

// MetricsConfig converts the monitoring section into a collector config.
func (c *Configuration) MetricsConfig() *metrics.Config {
	cfg := metrics.DefaultConfig()
	cfg.Enabled = c.Monitoring.Metrics.Enabled
	cfg.Port = c.Monitoring.Metrics.Port
	if c.Monitoring.Metrics.Path != "" {
		cfg.Path = c.Monitoring.Metrics.Path
	}
	cfg.Labels = c.Monitoring.Metrics.CustomLabels
	return cfg
}

// TracingConfig converts the monitoring section into a tracing config.
func (c *Configuration) TracingConfig() telemetry.TracingConfig {
	cfg := telemetry.DefaultTracingConfig()
	cfg.Enabled = c.Monitoring.Tracing.Enabled
	if c.Monitoring.Tracing.Exporter != "" {
		cfg.Exporter = c.Monitoring.Tracing.Exporter
	}
	cfg.SamplingRate = c.Monitoring.Tracing.SamplingRate
	return cfg
}

func getenv(name string) string {
	return os.Getenv(EnvPrefix + name)
}

func parseBool(val string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(val))
	return err == nil && b
}

func envDuration(name string, dst *time.Duration) error {
	val := getenv(name)
	if val == "" {
		return nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return envError(name, val, err)
	}
	*dst = d
	return nil
}

func envError(name, val string, cause error) error {
	return errors.Wrap(cause, errors.CategoryCore, errors.ErrCodeInvalidConfig,
		fmt.Sprintf("invalid value %q for %s%s", val, EnvPrefix, name))
}

func invalid(format string, args ...any) error {
	return errors.Newf(errors.CategoryCore, errors.ErrCodeInvalidConfig, format, args...)
}
