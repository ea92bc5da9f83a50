package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	// DefaultAuthURL is the provider page that issues the authorization grant ("app code")
	DefaultAuthURL = "https://www.strava.com/oauth/authorize"
	// DefaultTokenURL is the provider endpoint that exchanges a grant for an access token
	DefaultTokenURL = "https://www.strava.com/oauth/token"
	// DefaultRedirectURI is the local loopback address the provider redirects the browser to
	DefaultRedirectURI = "http://127.0.0.1:5000/authorization"
	// DefaultScope is the scope requested for reading the athlete's activities
	DefaultScope = "read,activity:read"
)

var (
	// ErrAuthenticationFailed is matched by every token exchange failure
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrMissingGrant is returned when no authorization grant could be obtained
	ErrMissingGrant = errors.New("authorization grant is required")
)

// Credentials identify the registered API application
type Credentials struct {
	ClientID     string `json:"client_id" mapstructure:"client_id"`
	ClientSecret string `json:"client_secret" mapstructure:"client_secret"`
}

// Validate checks that both values are present
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.ClientID) == "" {
		return fmt.Errorf("client ID is required")
	}
	if strings.TrimSpace(c.ClientSecret) == "" {
		return fmt.Errorf("client secret is required")
	}
	return nil
}

// AuthenticationError describes a rejected token exchange
type AuthenticationError struct {
	StatusCode int
	Reason     string
}

func (e *AuthenticationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("authentication failed: status %d: %s", e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

// Is reports whether target is ErrAuthenticationFailed
func (e *AuthenticationError) Is(target error) bool {
	return target == ErrAuthenticationFailed
}

// tokenResponse is the subset of the token endpoint body we rely on
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

// Authenticator turns credentials and an authorization grant into an access token
type Authenticator struct {
	creds         Credentials
	authURL       string
	tokenURL      string
	redirectURI   string
	scope         string
	client        *http.Client
	grantProvider GrantProvider
}

// Option configures an Authenticator
type Option func(*Authenticator)

// WithTokenURL overrides the token endpoint
func WithTokenURL(tokenURL string) Option {
	return func(a *Authenticator) {
		a.tokenURL = tokenURL
	}
}

// WithAuthURL overrides the authorization page
func WithAuthURL(authURL string) Option {
	return func(a *Authenticator) {
		a.authURL = authURL
	}
}

// WithRedirectURI overrides the loopback redirect address
func WithRedirectURI(redirectURI string) Option {
	return func(a *Authenticator) {
		a.redirectURI = redirectURI
	}
}

// WithScope overrides the requested scope
func WithScope(scope string) Option {
	return func(a *Authenticator) {
		a.scope = scope
	}
}

// WithHTTPClient sets the client used for the token exchange
func WithHTTPClient(client *http.Client) Option {
	return func(a *Authenticator) {
		a.client = client
	}
}

// WithGrantProvider sets the collaborator asked for a grant when none is supplied
func WithGrantProvider(provider GrantProvider) Option {
	return func(a *Authenticator) {
		a.grantProvider = provider
	}
}

// NewAuthenticator creates a new Authenticator for the given credentials
func NewAuthenticator(creds Credentials, opts ...Option) *Authenticator {
	a := &Authenticator{
		creds:       creds,
		authURL:     DefaultAuthURL,
		tokenURL:    DefaultTokenURL,
		redirectURI: DefaultRedirectURI,
		scope:       DefaultScope,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RedirectURI returns the address the provider will redirect the browser to
func (a *Authenticator) RedirectURI() string {
	return a.redirectURI
}

// AuthorizationURL builds the page a user visits to grant access
func (a *Authenticator) AuthorizationURL() string {
	cfg := &oauth2.Config{
		ClientID:    a.creds.ClientID,
		RedirectURL: a.redirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:  a.authURL,
			TokenURL: a.tokenURL,
		},
	}
	// The provider expects a comma separated scope, so it is passed verbatim
	// rather than through Config.Scopes which joins with spaces.
	return cfg.AuthCodeURL("",
		oauth2.SetAuthURLParam("approval_prompt", "auto"),
		oauth2.SetAuthURLParam("scope", a.scope),
	)
}

// Authenticate exchanges grant for an access token, asking the grant provider
// for one first when grant is empty
func (a *Authenticator) Authenticate(ctx context.Context, grant string) (*oauth2.Token, error) {
	grant = strings.TrimSpace(grant)
	if grant == "" {
		if a.grantProvider == nil {
			return nil, ErrMissingGrant
		}
		obtained, err := a.grantProvider.ObtainGrant(ctx, a.AuthorizationURL())
		if err != nil {
			return nil, fmt.Errorf("failed to obtain authorization grant: %w", err)
		}
		grant = strings.TrimSpace(obtained)
		if grant == "" {
			return nil, ErrMissingGrant
		}
	}
	return a.Exchange(ctx, grant)
}

// Exchange performs a single token request. It never retries.
func (a *Authenticator) Exchange(ctx context.Context, grant string) (*oauth2.Token, error) {
	if err := a.creds.Validate(); err != nil {
		return nil, &AuthenticationError{Reason: err.Error()}
	}
	if strings.TrimSpace(grant) == "" {
		return nil, ErrMissingGrant
	}

	params := url.Values{
		"client_id":     {a.creds.ClientID},
		"client_secret": {a.creds.ClientSecret},
		"code":          {grant},
		"grant_type":    {"authorization_code"},
	}
	tokenURL := a.tokenURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &AuthenticationError{Reason: fmt.Sprintf("token request failed: %v", err)}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Printf("[AUTH] Token exchange rejected with status %d", resp.StatusCode)
		return nil, &AuthenticationError{
			StatusCode: resp.StatusCode,
			Reason:     strings.TrimSpace(string(body)),
		}
	}

	var tokenResp tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, &AuthenticationError{
			StatusCode: resp.StatusCode,
			Reason:     fmt.Sprintf("malformed token response: %v", err),
		}
	}

	if tokenResp.AccessToken == "" {
		return nil, &AuthenticationError{
			StatusCode: resp.StatusCode,
			Reason:     "no access token in response",
		}
	}

	token := &oauth2.Token{
		AccessToken:  tokenResp.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: tokenResp.RefreshToken,
	}
	if tokenResp.ExpiresAt > 0 {
		token.Expiry = time.Unix(tokenResp.ExpiresAt, 0)
	}

	log.Printf("[AUTH] Access token obtained")
	return token, nil
}
