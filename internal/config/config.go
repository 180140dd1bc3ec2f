package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the evaluator configuration
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Data    DataConfig    `mapstructure:"data"`
	Storage StorageConfig `mapstructure:"storage"`
	Blob    BlobConfig    `mapstructure:"blob"`
	NATS    NATSConfig    `mapstructure:"nats"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Backup  BackupConfig  `mapstructure:"backup"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	LogLevel    string `mapstructure:"log_level"`
	Development bool   `mapstructure:"development"`
}

// DataConfig locates the read-only measurement datasets
type DataConfig struct {
	Dir string `mapstructure:"dir"`
}

// StorageConfig selects the evaluation store backend
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// BlobConfig configures object storage sync. Secrets come from the environment.
type BlobConfig struct {
	Provider        string        `mapstructure:"provider"`
	AccessKey       string        `mapstructure:"access_key"`
	SecretKey       string        `mapstructure:"secret_key"`
	Bucket          string        `mapstructure:"bucket"`
	Region          string        `mapstructure:"region"`
	Endpoint        string        `mapstructure:"endpoint"`
	CredentialsFile string        `mapstructure:"credentials_file"`
	DataPrefix      string        `mapstructure:"data_prefix"`
	BackupPrefix    string        `mapstructure:"backup_prefix"`
	FreshFor        time.Duration `mapstructure:"fresh_for"`
	Timeout         time.Duration `mapstructure:"timeout"`
	ExportDir       string        `mapstructure:"export_dir"`
}

// Missing lists the settings that keep blob sync disabled
func (c BlobConfig) Missing() []string {
	var missing []string
	if c.Bucket == "" {
		missing = append(missing, "bucket")
	}
	if strings.EqualFold(c.Provider, "gcs") {
		return missing
	}
	if c.AccessKey == "" {
		missing = append(missing, "access_key")
	}
	if c.SecretKey == "" {
		missing = append(missing, "secret_key")
	}
	if c.Region == "" {
		missing = append(missing, "region")
	}
	return missing
}

// Enabled reports whether enough settings are present to reach object storage
func (c BlobConfig) Enabled() bool {
	return len(c.Missing()) == 0
}

type NATSConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	URL            string        `mapstructure:"url"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// BackupConfig drives the scheduled export of the evaluation store
type BackupConfig struct {
	Schedule string `mapstructure:"schedule"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "comment-evaluator")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.development", false)

	v.SetDefault("data.dir", "data")

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.dsn", "state/eval.sqlite")

	v.SetDefault("blob.provider", "s3")
	v.SetDefault("blob.region", "us-east-1")
	v.SetDefault("blob.data_prefix", "data/")
	v.SetDefault("blob.backup_prefix", "")
	v.SetDefault("blob.fresh_for", 24*time.Hour)
	v.SetDefault("blob.timeout", 2*time.Minute)
	v.SetDefault("blob.export_dir", "state/exports")

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.connect_timeout", 5*time.Second)
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", 2*time.Second)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.shutdown_timeout", 10*time.Second)

	v.SetDefault("backup.schedule", "@daily")
}

// bindEnv maps the object storage secrets to the environment names used by
// existing deployments, AWS names first.
func bindEnv(v *viper.Viper) error {
	bindings := [][]string{
		{"blob.access_key", "AWS_ACCESS_KEY_ID", "ACCESS_KEY"},
		{"blob.secret_key", "AWS_SECRET_ACCESS_KEY", "SECRET_KEY"},
		{"blob.bucket", "AWS_S3_BUCKET", "BUCKET_NAME"},
		{"blob.region", "AWS_DEFAULT_REGION", "AWS_REGION"},
		{"blob.credentials_file", "GOOGLE_APPLICATION_CREDENTIALS"},
	}
	for _, b := range bindings {
		if err := v.BindEnv(b...); err != nil {
			return fmt.Errorf("failed to bind env for %s: %w", b[0], err)
		}
	}
	return nil
}

// Load reads config.yaml (from path, or ./ and ./config when path is empty)
// with EVAL_* environment overrides. A missing config file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("EVAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that cannot be defaulted. The blob provider
// name is normalized to lower case.
func Validate(cfg *Config) error {
	switch strings.ToLower(cfg.Storage.Driver) {
	case "sqlite", "sqlite3", "postgres", "postgresql":
	default:
		return fmt.Errorf("%w: storage.driver %q", ErrInvalidConfig, cfg.Storage.Driver)
	}
	cfg.Blob.Provider = strings.ToLower(strings.TrimSpace(cfg.Blob.Provider))
	switch cfg.Blob.Provider {
	case "s3", "gcs":
	default:
		return fmt.Errorf("%w: blob.provider %q", ErrInvalidConfig, cfg.Blob.Provider)
	}
	if cfg.Data.Dir == "" {
		return fmt.Errorf("%w: data.dir is required", ErrInvalidConfig)
	}
	if cfg.Blob.FreshFor < 0 {
		return fmt.Errorf("%w: blob.fresh_for must not be negative", ErrInvalidConfig)
	}
	if cfg.NATS.Enabled && cfg.NATS.URL == "" {
		return fmt.Errorf("%w: nats.url required when nats.enabled is true", ErrInvalidConfig)
	}
	return nil
}

// ErrInvalidConfig is returned for settings that fail validation
var ErrInvalidConfig = errors.New("invalid config")
