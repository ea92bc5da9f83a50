package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thingmaster/StravaActivityAPI-to-CSV/pkg/client"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "console", config.Grant.Mode)
	assert.Equal(t, "http://127.0.0.1:5000/authorization", config.Grant.RedirectURI)
	assert.Equal(t, "read,activity:read", config.Grant.Scope)
	assert.Equal(t, 5*time.Minute, config.Grant.Timeout)
	assert.Equal(t, 20, config.Retry.MaxAttempts)
	assert.Equal(t, 30*time.Second, config.Retry.Delay)
	assert.Equal(t, "all", config.Retry.Mode)
	assert.False(t, config.Quota.Enabled)
	assert.Equal(t, 600, config.Quota.Per15Min)
	assert.Equal(t, 30000, config.Quota.PerDay)
	assert.Equal(t, "imperial", config.Export.Units)
	assert.Equal(t, "abort", config.Export.FailurePolicy)
	assert.Equal(t, "file", config.Storage.Type)
	assert.Equal(t, ".", config.Storage.Dir)
	assert.Equal(t, client.DefaultBaseURL, config.APIURL)
	assert.Equal(t, "https://www.strava.com/oauth/token", config.Grant.TokenURL)
	assert.NoError(t, config.Validate())
}

func TestLoad_File(t *testing.T) {
	content := `client_id: "12345"
client_secret: s3cr3t
retry:
  max_attempts: 5
  delay: 2s
  mode: transient
quota:
  enabled: true
export:
  units: metric
  failure_policy: skip
storage:
  type: s3
  s3_bucket: exports
`
	path := filepath.Join(t.TempDir(), "strava2csv.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	config, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "12345", config.ClientID)
	assert.Equal(t, "s3cr3t", config.ClientSecret)
	assert.Equal(t, 5, config.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, config.Retry.Delay)
	assert.True(t, config.Quota.Enabled)
	assert.Equal(t, 600, config.Quota.Per15Min)
	assert.Equal(t, "metric", config.Export.Units)
	assert.Equal(t, "s3", config.Storage.Type)
	assert.Equal(t, "exports", config.Storage.S3Bucket)
	assert.NoError(t, config.Validate())

	policy, err := config.RetryPolicy()
	require.NoError(t, err)
	assert.Equal(t, client.RetryPolicy{MaxAttempts: 5, Delay: 2 * time.Second, Mode: client.RetryTransient}, policy)
	assert.Equal(t, client.Quota{Enabled: true, Per15Min: 600, PerDay: 30000}, config.ClientQuota())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("STRAVA2CSV_CLIENT_ID", "777")
	t.Setenv("STRAVA2CSV_CLIENT_SECRET", "from-env")
	t.Setenv("STRAVA2CSV_RETRY_MAX_ATTEMPTS", "3")
	t.Setenv("STRAVA2CSV_STORAGE_DIR", "/tmp/exports")

	config, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "777", config.ClientID)
	assert.Equal(t, "from-env", config.ClientSecret)
	assert.Equal(t, 3, config.Retry.MaxAttempts)
	assert.Equal(t, "/tmp/exports", config.Storage.Dir)

	creds, err := config.Credentials()
	require.NoError(t, err)
	assert.Equal(t, "777", creds.ClientID)
}

func TestConfig_Credentials_Missing(t *testing.T) {
	config := DefaultConfig()
	_, err := config.Credentials()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STRAVA2CSV_CLIENT_ID")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"bad grant mode", func(c *Config) { c.Grant.Mode = "carrier-pigeon" }, "grant.mode"},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, "max_attempts"},
		{"negative delay", func(c *Config) { c.Retry.Delay = -time.Second }, "retry.delay"},
		{"bad retry mode", func(c *Config) { c.Retry.Mode = "sometimes" }, "retry mode"},
		{"bad quota", func(c *Config) { c.Quota.Enabled = true; c.Quota.PerDay = 0 }, "quota"},
		{"bad units", func(c *Config) { c.Export.Units = "furlongs" }, "units"},
		{"bad policy", func(c *Config) { c.Export.FailurePolicy = "retry" }, "failure policy"},
		{"s3 without bucket", func(c *Config) { c.Storage.Type = "s3" }, "s3_bucket"},
		{"unknown storage", func(c *Config) { c.Storage.Type = "ftp" }, "unknown storage type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(config)
			err := config.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_YAMLRedactsSecrets(t *testing.T) {
	config := DefaultConfig()
	config.ClientID = "12345"
	config.ClientSecret = "very-secret"
	config.Code = "app-code"
	config.AccessToken = "bearer-value"
	config.Storage.S3SecretKey = "aws-secret"

	data, err := config.YAML()
	require.NoError(t, err)
	text := string(data)

	assert.False(t, strings.Contains(text, "very-secret"))
	assert.False(t, strings.Contains(text, "app-code"))
	assert.False(t, strings.Contains(text, "aws-secret"))
	assert.False(t, strings.Contains(text, "bearer-value"))
	assert.Contains(t, text, "client_id: \"12345\"")
	assert.Contains(t, text, "delay: 30s")

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, redacted, decoded["client_secret"])

	// the receiver is untouched
	assert.Equal(t, "very-secret", config.ClientSecret)
}
