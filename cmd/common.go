package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/thingmaster/StravaActivityAPI-to-CSV/pkg/auth"
	"github.com/thingmaster/StravaActivityAPI-to-CSV/pkg/client"
	"github.com/thingmaster/StravaActivityAPI-to-CSV/pkg/config"
	"golang.org/x/oauth2"
)

var (
	configFile string
	envFile    string
)

// flagKeys maps flag names to the config keys they override
var flagKeys = map[string]string{
	"client-id":      "client_id",
	"client-secret":  "client_secret",
	"code":           "code",
	"access-token":   "access_token",
	"api-url":        "api_url",
	"verbose":        "verbose",
	"grant-mode":     "grant.mode",
	"redirect-uri":   "grant.redirect_uri",
	"scope":          "grant.scope",
	"grant-timeout":  "grant.timeout",
	"token-url":      "grant.token_url",
	"retry-attempts": "retry.max_attempts",
	"retry-delay":    "retry.delay",
	"retry-mode":     "retry.mode",
	"quota":          "quota.enabled",
	"units":          "export.units",
	"failure-policy": "export.failure_policy",
	"output":         "storage.type",
	"output-dir":     "storage.dir",
	"s3-bucket":      "storage.s3_bucket",
	"s3-region":      "storage.s3_region",
	"s3-prefix":      "storage.s3_prefix",
	"s3-endpoint":    "storage.s3_endpoint",
	"metrics-file":   "metrics_file",
}

func addConfigFlags(c *cobra.Command) {
	c.Flags().StringVarP(&configFile, "config", "c", "", "Configuration file path (yaml, json or toml)")
	c.Flags().StringVar(&envFile, "env-file", "", "File of KEY=VALUE lines loaded into the environment")
	c.Flags().BoolP("verbose", "v", false, "Enable verbose logging")
	c.Flags().String("client-id", "", "Application client id")
	c.Flags().String("client-secret", "", "Application client secret")
}

func addGrantFlags(c *cobra.Command) {
	c.Flags().String("code", "", "App code returned by the authorization page")
	c.Flags().String("access-token", "", "Use an existing access token instead of exchanging a code")
	c.Flags().String("grant-mode", "console", "How to obtain a code when none is given (console or loopback)")
	c.Flags().String("redirect-uri", auth.DefaultRedirectURI, "Redirect URI registered for the application")
	c.Flags().String("scope", auth.DefaultScope, "Comma separated scopes to request")
	c.Flags().Duration("grant-timeout", 0, "How long loopback mode waits for the redirect (default 5m)")
	c.Flags().String("token-url", auth.DefaultTokenURL, "Token exchange endpoint")
}

func addClientFlags(c *cobra.Command) {
	c.Flags().String("api-url", client.DefaultBaseURL, "API base URL")
	c.Flags().Int("retry-attempts", client.DefaultMaxAttempts, "Attempts per request before giving up")
	c.Flags().Duration("retry-delay", client.DefaultRetryDelay, "Pause between attempts")
	c.Flags().String("retry-mode", string(client.RetryAll), "Which failures are retried (all or transient)")
	c.Flags().Bool("quota", false, "Pause before the 15 minute and daily request limits are reached")
}

// bindFlags binds the flags of the running command only, so commands sharing
// a flag name do not shadow each other on the global viper instance
func bindFlags(c *cobra.Command) {
	c.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return
		}
		if err := viper.BindPFlag(key, f); err != nil {
			log.Printf("Failed to bind %s flag: %v", f.Name, err)
		}
	})
}

// loadConfig applies the env file, binds c's flags and reads the configuration
func loadConfig(c *cobra.Command) (*config.Config, error) {
	if envFile != "" {
		envVars, err := config.LoadEnvFile(envFile)
		if err != nil {
			return nil, err
		}
		applied := config.ApplyEnvVars(envVars)
		log.Printf("[CONFIG] Applied %d variables from %s", len(applied), envFile)
	}

	bindFlags(c)
	cfg, err := config.Load(viper.GetViper(), configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.Verbose {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}
	return cfg, nil
}

// newAuthenticator builds the authenticator and its grant provider from cfg.
// Console prompts go to out and answers are read from in.
func newAuthenticator(cfg *config.Config, in io.Reader, out io.Writer) (*auth.Authenticator, error) {
	creds, err := cfg.Credentials()
	if err != nil {
		return nil, err
	}

	var provider auth.GrantProvider
	switch cfg.Grant.Mode {
	case "loopback":
		loopback := auth.NewLoopbackGrantProvider(cfg.Grant.RedirectURI)
		loopback.Timeout = cfg.Grant.Timeout
		loopback.OnListen = func(addr string) {
			_, _ = fmt.Fprintf(out, "Waiting for the authorization redirect on %s\n", addr)
		}
		provider = loopback
	default:
		provider = auth.NewConsoleGrantProvider(in, out)
	}

	return auth.NewAuthenticator(creds,
		auth.WithAuthURL(cfg.Grant.AuthURL),
		auth.WithTokenURL(cfg.Grant.TokenURL),
		auth.WithRedirectURI(cfg.Grant.RedirectURI),
		auth.WithScope(cfg.Grant.Scope),
		auth.WithGrantProvider(provider),
	), nil
}

// obtainToken returns the configured access token, or exchanges an app code for one
func obtainToken(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) (*oauth2.Token, error) {
	if cfg.AccessToken != "" {
		log.Printf("[AUTH] Using the configured access token")
		return &oauth2.Token{AccessToken: cfg.AccessToken, TokenType: "Bearer"}, nil
	}

	authenticator, err := newAuthenticator(cfg, in, out)
	if err != nil {
		return nil, err
	}
	return authenticator.Authenticate(ctx, cfg.Code)
}

// newAPIClient creates a resource client honoring the retry and quota settings
func newAPIClient(cfg *config.Config, token *oauth2.Token, recorder client.Recorder) (*client.Client, error) {
	policy, err := cfg.RetryPolicy()
	if err != nil {
		return nil, err
	}

	opts := []client.Option{
		client.WithBaseURL(cfg.APIURL),
		client.WithRetryPolicy(policy),
		client.WithQuota(cfg.ClientQuota()),
	}
	if recorder != nil {
		opts = append(opts, client.WithRecorder(recorder))
	}
	return client.New(token, opts...)
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// exitOnError prints err and terminates the process
func exitOnError(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
