package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/thingmaster/StravaActivityAPI-to-CSV/pkg/auth"
	"github.com/thingmaster/StravaActivityAPI-to-CSV/pkg/client"
	"github.com/thingmaster/StravaActivityAPI-to-CSV/pkg/export"
	"github.com/thingmaster/StravaActivityAPI-to-CSV/pkg/format"
	"github.com/thingmaster/StravaActivityAPI-to-CSV/pkg/storage"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables read into the config
const EnvPrefix = "STRAVA2CSV"

const redacted = "********"

// GrantConfig controls how an authorization grant is obtained when none is given
type GrantConfig struct {
	// Mode is "console" (paste the code) or "loopback" (capture the redirect)
	Mode        string        `json:"mode" yaml:"mode" mapstructure:"mode"`
	RedirectURI string        `json:"redirect_uri" yaml:"redirect_uri" mapstructure:"redirect_uri"`
	Scope       string        `json:"scope" yaml:"scope" mapstructure:"scope"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	AuthURL     string        `json:"auth_url" yaml:"auth_url" mapstructure:"auth_url"`
	TokenURL    string        `json:"token_url" yaml:"token_url" mapstructure:"token_url"`
}

// RetryConfig mirrors client.RetryPolicy
type RetryConfig struct {
	MaxAttempts int           `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts"`
	Delay       time.Duration `json:"delay" yaml:"delay" mapstructure:"delay"`
	Mode        string        `json:"mode" yaml:"mode" mapstructure:"mode"`
}

// QuotaConfig mirrors client.Quota
type QuotaConfig struct {
	Enabled  bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Per15Min int  `json:"per_15_min" yaml:"per_15_min" mapstructure:"per_15_min"`
	PerDay   int  `json:"per_day" yaml:"per_day" mapstructure:"per_day"`
}

// ExportConfig controls the CSV output
type ExportConfig struct {
	Units         string `json:"units" yaml:"units" mapstructure:"units"`
	FailurePolicy string `json:"failure_policy" yaml:"failure_policy" mapstructure:"failure_policy"`
}

// Config represents the exporter configuration
type Config struct {
	ClientID     string `json:"client_id" yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string `json:"client_secret" yaml:"client_secret" mapstructure:"client_secret"`
	// Code is a previously obtained authorization grant
	Code string `json:"code,omitempty" yaml:"code,omitempty" mapstructure:"code"`
	// AccessToken skips the exchange entirely when set
	AccessToken string `json:"access_token,omitempty" yaml:"access_token,omitempty" mapstructure:"access_token"`
	APIURL      string `json:"api_url" yaml:"api_url" mapstructure:"api_url"`

	Grant       GrantConfig           `json:"grant" yaml:"grant" mapstructure:"grant"`
	Retry       RetryConfig           `json:"retry" yaml:"retry" mapstructure:"retry"`
	Quota       QuotaConfig           `json:"quota" yaml:"quota" mapstructure:"quota"`
	Export      ExportConfig          `json:"export" yaml:"export" mapstructure:"export"`
	Storage     storage.StorageConfig `json:"storage" yaml:"storage" mapstructure:"storage"`
	MetricsFile string                `json:"metrics_file,omitempty" yaml:"metrics_file,omitempty" mapstructure:"metrics_file"`
	Verbose     bool                  `json:"verbose" yaml:"verbose" mapstructure:"verbose"`
}

// SetDefaults registers every key with its default so that environment
// variables are picked up for all of them
func SetDefaults(v *viper.Viper) {
	v.SetDefault("client_id", "")
	v.SetDefault("client_secret", "")
	v.SetDefault("code", "")
	v.SetDefault("access_token", "")
	v.SetDefault("api_url", client.DefaultBaseURL)

	v.SetDefault("grant.mode", "console")
	v.SetDefault("grant.redirect_uri", auth.DefaultRedirectURI)
	v.SetDefault("grant.scope", auth.DefaultScope)
	v.SetDefault("grant.timeout", "5m")
	v.SetDefault("grant.auth_url", auth.DefaultAuthURL)
	v.SetDefault("grant.token_url", auth.DefaultTokenURL)

	v.SetDefault("retry.max_attempts", client.DefaultMaxAttempts)
	v.SetDefault("retry.delay", client.DefaultRetryDelay.String())
	v.SetDefault("retry.mode", string(client.RetryAll))

	v.SetDefault("quota.enabled", false)
	v.SetDefault("quota.per_15_min", client.DefaultPer15Min)
	v.SetDefault("quota.per_day", client.DefaultPerDay)

	v.SetDefault("export.units", string(format.Imperial))
	v.SetDefault("export.failure_policy", string(export.Abort))

	v.SetDefault("storage.type", "file")
	v.SetDefault("storage.dir", ".")
	v.SetDefault("storage.s3_bucket", "")
	v.SetDefault("storage.s3_region", "")
	v.SetDefault("storage.s3_prefix", "")
	v.SetDefault("storage.s3_endpoint", "")
	v.SetDefault("storage.s3_access_key", "")
	v.SetDefault("storage.s3_secret_key", "")

	v.SetDefault("metrics_file", "")
	v.SetDefault("verbose", false)
}

// Load reads configuration from defaults, the optional config file,
// STRAVA2CSV_* environment variables and any flags bound to v
func Load(v *viper.Viper, filename string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if filename != "" {
		v.SetConfigFile(filename)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
		}
		log.Printf("[CONFIG] Loaded configuration from %s", filename)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	return &config, nil
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	v := viper.New()
	config, err := Load(v, "")
	if err != nil {
		// defaults alone always decode
		panic(err)
	}
	return config
}

// Validate checks values that would otherwise fail deep inside a run
func (c *Config) Validate() error {
	var errs []error

	switch c.Grant.Mode {
	case "console", "loopback":
	default:
		errs = append(errs, fmt.Errorf("grant.mode must be console or loopback, got %q", c.Grant.Mode))
	}
	if c.Grant.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("grant.timeout must be positive"))
	}
	if c.APIURL == "" {
		errs = append(errs, fmt.Errorf("api_url cannot be empty"))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts))
	}
	if c.Retry.Delay < 0 {
		errs = append(errs, fmt.Errorf("retry.delay cannot be negative"))
	}
	if _, err := client.ParseRetryMode(c.Retry.Mode); err != nil {
		errs = append(errs, err)
	}
	if c.Quota.Enabled && (c.Quota.Per15Min <= 0 || c.Quota.PerDay <= 0) {
		errs = append(errs, fmt.Errorf("quota limits must be positive when quota is enabled"))
	}
	if _, err := format.ParseUnits(c.Export.Units); err != nil {
		errs = append(errs, err)
	}
	if _, err := export.ParseFailurePolicy(c.Export.FailurePolicy); err != nil {
		errs = append(errs, err)
	}
	switch c.Storage.Type {
	case "", "file", "memory":
	case "s3":
		if c.Storage.S3Bucket == "" {
			errs = append(errs, fmt.Errorf("storage.s3_bucket is required for s3 storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage type: %s", c.Storage.Type))
	}

	return errors.Join(errs...)
}

// Credentials returns the application credentials, failing when either is missing
func (c *Config) Credentials() (auth.Credentials, error) {
	creds := auth.Credentials{
		ClientID:     strings.TrimSpace(c.ClientID),
		ClientSecret: strings.TrimSpace(c.ClientSecret),
	}
	if err := creds.Validate(); err != nil {
		return auth.Credentials{}, fmt.Errorf("%w (set --client-id/--client-secret or %s_CLIENT_ID/%s_CLIENT_SECRET)", err, EnvPrefix, EnvPrefix)
	}
	return creds, nil
}

// RetryPolicy converts the retry section
func (c *Config) RetryPolicy() (client.RetryPolicy, error) {
	mode, err := client.ParseRetryMode(c.Retry.Mode)
	if err != nil {
		return client.RetryPolicy{}, err
	}
	return client.RetryPolicy{
		MaxAttempts: c.Retry.MaxAttempts,
		Delay:       c.Retry.Delay,
		Mode:        mode,
	}, nil
}

// ClientQuota converts the quota section
func (c *Config) ClientQuota() client.Quota {
	return client.Quota{
		Enabled:  c.Quota.Enabled,
		Per15Min: c.Quota.Per15Min,
		PerDay:   c.Quota.PerDay,
	}
}

// Redacted returns a copy safe to print
func (c *Config) Redacted() *Config {
	out := *c
	if out.ClientSecret != "" {
		out.ClientSecret = redacted
	}
	if out.Code != "" {
		out.Code = redacted
	}
	if out.AccessToken != "" {
		out.AccessToken = redacted
	}
	if out.Storage.S3SecretKey != "" {
		out.Storage.S3SecretKey = redacted
	}
	return &out
}

// YAML renders the redacted configuration
func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c.Redacted())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}
