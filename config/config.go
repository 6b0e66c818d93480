package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	BackendS3    = "s3"
	BackendAzure = "azure"
	BackendGCS   = "gcs"
	BackendLocal = "local"
)

type Config struct {
	DebugMode bool   `split_words:"true" default:"false"`
	LogLevel  string `split_words:"true" default:"info"`
	LogFormat string `split_words:"true" default:"text"`

	Host              string `default:"0.0.0.0"`
	Port              int    `default:"8080"`
	CustomHandlerPort int    `envconfig:"FUNCTIONS_CUSTOMHANDLER_PORT"`
	PathPrefix        string `split_words:"true"`
	RequestIDHeader   string `split_words:"true"`

	StorageBackend   string        `split_words:"true" default:"s3"`
	ActionExpiration time.Duration `split_words:"true" default:"1h"`

	S3Bucket            string        `split_words:"true"`
	S3UseAccelerate     bool          `split_words:"true" default:"false"`
	S3PresignEnabled    bool          `split_words:"true" default:"true"`
	S3PresignExpiration time.Duration `split_words:"true" default:"1h"`

	AzureContainer string `split_words:"true"`
	GCSBucket      string `envconfig:"GCS_BUCKET"`

	LocalRepo     string `split_words:"true"`
	LocalEndpoint string `split_words:"true"`

	CacheEnabled   bool          `split_words:"true" default:"false"`
	CacheEviction  time.Duration `split_words:"true" default:"23h"`
	CacheMaxSizeMB int           `split_words:"true" default:"0"`

	EnablePrometheusExporter bool `split_words:"true" default:"false"`
}

// Flags returns the command line flags of the self-hosted server. Flags that
// are set override the environment.
func Flags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("lfsserver", pflag.ContinueOnError)
	flags.Int("port", 8080, "The port of the web server.")
	flags.String("host", "0.0.0.0", "The hostname to listen on.")
	flags.String("repo", "", "Absolute path to the Git LFS repository, selects the local backend.")
	flags.String("endpoint", "", "Public endpoint address.")
	flags.Bool("debug", false, "Enable debug mode.")

	return flags
}

// GetConfig reads the configuration from APP_* environment variables and,
// when flags is not nil, applies the flags that were set on the command line.
func GetConfig(flags *pflag.FlagSet) (*Config, error) {
	var cfg Config

	err := envconfig.Process("app", &cfg)
	if err != nil {
		return nil, err
	}

	if flags != nil {
		if err := cfg.applyFlags(flags); err != nil {
			return nil, err
		}
	}

	if cfg.CustomHandlerPort != 0 {
		cfg.Port = cfg.CustomHandlerPort
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyFlags(flags *pflag.FlagSet) error {
	v := viper.New()
	if err := v.BindPFlags(flags); err != nil {
		return err
	}

	if flags.Changed("port") {
		c.Port = v.GetInt("port")
	}
	if flags.Changed("host") {
		c.Host = v.GetString("host")
	}
	if flags.Changed("repo") {
		c.StorageBackend = BackendLocal
		c.LocalRepo = v.GetString("repo")
	}
	if flags.Changed("endpoint") {
		c.LocalEndpoint = v.GetString("endpoint")
	}
	if flags.Changed("debug") {
		c.DebugMode = v.GetBool("debug")
	}

	return nil
}

// Validate checks that the selected storage backend is fully configured.
func (c *Config) Validate() error {
	c.StorageBackend = strings.ToLower(c.StorageBackend)

	var missing string
	switch c.StorageBackend {
	case BackendS3:
		if c.S3Bucket == "" {
			missing = "APP_S3_BUCKET"
		}
	case BackendAzure:
		if c.AzureContainer == "" {
			missing = "APP_AZURE_CONTAINER"
		}
	case BackendGCS:
		if c.GCSBucket == "" {
			missing = "APP_GCS_BUCKET"
		}
	case BackendLocal:
		if c.LocalRepo == "" {
			missing = "APP_LOCAL_REPO"
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}

	if missing != "" {
		return fmt.Errorf("storage backend %s requires %s", c.StorageBackend, missing)
	}

	return nil
}

// Addr is the address the web server binds to.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
