package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sagarc03/repostore"
	"github.com/sagarc03/repostore/backend"
	repohttp "github.com/sagarc03/repostore/http"
	"github.com/sagarc03/repostore/journal"
)

type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for repostore.
type Config struct {
	Env       string          `mapstructure:"env" validate:"required,oneof=dev development prod production"`
	Storage   backend.Config  `mapstructure:"storage"`
	Lifecycle LifecycleConfig `mapstructure:"lifecycle"`
	Journal   journal.Config  `mapstructure:"journal"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig configures the HTTP gateway started by "repostore serve".
type ServerConfig struct {
	Addr          string              `mapstructure:"addr" validate:"required,hostname_port"`
	Token         string              `mapstructure:"token"`
	FileRoots     []string            `mapstructure:"file_roots"`
	MaxUploadSize int64               `mapstructure:"max_upload_size" validate:"min=0"`
	CORS          repohttp.CORSConfig `mapstructure:"cors"`
}

// ErrUnprotectedFileRoots is returned when local directories would be served
// without a bearer token.
var ErrUnprotectedFileRoots = errors.New("server.file_roots requires server.token")

// CheckAccess reports whether the gateway may start with these settings.
func (c ServerConfig) CheckAccess() error {
	if len(c.FileRoots) > 0 && c.Token == "" {
		return ErrUnprotectedFileRoots
	}
	return nil
}

// HandlerConfig returns the gateway handler settings.
func (c ServerConfig) HandlerConfig() *repohttp.HandlerConfig {
	return &repohttp.HandlerConfig{
		Token:         c.Token,
		FileRoots:     c.FileRoots,
		MaxUploadSize: c.MaxUploadSize,
		CORS:          c.CORS,
	}
}

// LifecycleConfig controls how test containers are named and torn down.
type LifecycleConfig struct {
	NamePrefix   string        `mapstructure:"name_prefix" validate:"required"`
	SuffixLength int           `mapstructure:"suffix_length" validate:"min=8,max=40"`
	Concurrency  int           `mapstructure:"concurrency" validate:"min=0"`
	Timeout      time.Duration `mapstructure:"timeout" validate:"min=0"`
}

// ManagerOptions turns the lifecycle settings into manager options.
func (c LifecycleConfig) ManagerOptions() []repostore.ManagerOption {
	return []repostore.ManagerOption{
		repostore.WithNaming(c.NamePrefix, c.SuffixLength),
		repostore.WithConcurrency(c.Concurrency),
	}
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// IsProduction reports whether logs should be emitted as JSON.
func (c *Config) IsProduction() bool {
	return c.Env == "prod" || c.Env == "production"
}

var flagToViperKey = map[string]string{
	"log-level":     "log.level",
	"env":           "env",
	"journal":       "journal.type",
	"journal-dsn":   "journal.dsn",
	"concurrency":   "lifecycle.concurrency",
	"timeout":       "lifecycle.timeout",
	"s3-endpoint":   "storage.s3.endpoint",
	"s3-region":     "storage.s3.region",
	"gcs-project":   "storage.gcs.project_id",
	"gcs-endpoint":  "storage.gcs.endpoint",
	"abs-url":       "storage.abs.account_url",
	"name-prefix":   "lifecycle.name_prefix",
	"suffix-length": "lifecycle.suffix_length",
	"addr":          "server.addr",
}

// bindFlags binds explicitly set flags that have a config key.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		key, ok := flagToViperKey[f.Name]
		if !ok || !f.Changed {
			return
		}
		_ = v.BindPFlag(key, f)
	})
}

// setDefaults gives every key a default so AutomaticEnv can find it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")

	v.SetDefault("storage.s3.region", "")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.use_path_style", false)
	v.SetDefault("storage.s3.access_key_id", "")
	v.SetDefault("storage.s3.secret_access_key", "")
	v.SetDefault("storage.s3.bucket_wait", "30s")
	v.SetDefault("storage.s3.page_size", 0)

	v.SetDefault("storage.gcs.project_id", "")
	v.SetDefault("storage.gcs.endpoint", "")
	v.SetDefault("storage.gcs.credentials_file", "")
	v.SetDefault("storage.gcs.anonymous", false)
	v.SetDefault("storage.gcs.page_size", 0)
	v.SetDefault("storage.gcs.parallelism", 0)

	v.SetDefault("storage.abs.account_url", "")
	v.SetDefault("storage.abs.account_name", "")
	v.SetDefault("storage.abs.account_key", "")
	v.SetDefault("storage.abs.page_size", 0)

	v.SetDefault("lifecycle.name_prefix", repostore.DefaultNamePrefix)
	v.SetDefault("lifecycle.suffix_length", repostore.DefaultSuffixLength)
	v.SetDefault("lifecycle.concurrency", 0)
	v.SetDefault("lifecycle.timeout", "10m")

	v.SetDefault("journal.type", journal.TypeSQLite)
	v.SetDefault("journal.dsn", "repostore.db")
	v.SetDefault("journal.table", "repostore_journal")

	v.SetDefault("server.addr", "127.0.0.1:5708")
	v.SetDefault("server.token", "")
	v.SetDefault("server.file_roots", []string{})
	v.SetDefault("server.max_upload_size", 0)
	v.SetDefault("server.cors.enabled", false)
	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.cors.allowed_methods", []string{"GET", "HEAD", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("server.cors.allowed_headers", []string{"Authorization", "Content-Type"})
	v.SetDefault("server.cors.exposed_headers", []string{"Content-Length"})
	v.SetDefault("server.cors.allow_credentials", false)
	v.SetDefault("server.cors.max_age", 300)

	v.SetDefault("log.level", "info")
}

// bindProviderEnv maps the cloud providers' own variables onto config keys.
// REPOSTORE_ variables still win because they are bound first.
func bindProviderEnv(v *viper.Viper) {
	_ = v.BindEnv("storage.abs.account_url", "REPOSTORE_STORAGE_ABS_ACCOUNT_URL", "STORAGE_BLOB_URL")
	_ = v.BindEnv("storage.gcs.project_id", "REPOSTORE_STORAGE_GCS_PROJECT_ID", "GOOGLE_CLOUD_PROJECT")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults.
// Later config files override earlier ones. flags may be nil.
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("repostore")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	v.SetEnvPrefix("REPOSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindProviderEnv(v)

	if flags != nil {
		bindFlags(v, flags)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}
