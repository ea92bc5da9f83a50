package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"
)

// LoopbackGrantProvider captures the grant by serving the redirect URI itself,
// so the browser lands on a local page instead of a connection error
type LoopbackGrantProvider struct {
	RedirectURI string
	Timeout     time.Duration
	OpenBrowser func(url string) error
	// OnListen is called with the bound address once the server accepts connections
	OnListen func(addr string)
}

type grantResult struct {
	code string
	err  error
}

// NewLoopbackGrantProvider creates a provider listening on redirectURI
func NewLoopbackGrantProvider(redirectURI string) *LoopbackGrantProvider {
	return &LoopbackGrantProvider{
		RedirectURI: redirectURI,
		Timeout:     5 * time.Minute,
		OpenBrowser: OpenBrowser,
	}
}

// ObtainGrant opens the authorization page and waits for the provider to
// redirect back with a code
func (p *LoopbackGrantProvider) ObtainGrant(ctx context.Context, requestURL string) (string, error) {
	redirect, err := url.Parse(p.RedirectURI)
	if err != nil {
		return "", fmt.Errorf("invalid redirect URI: %w", err)
	}
	if redirect.Host == "" {
		return "", fmt.Errorf("redirect URI %q has no host", p.RedirectURI)
	}
	path := redirect.Path
	if path == "" {
		path = "/"
	}

	results := make(chan grantResult, 1)
	deliver := func(r grantResult) {
		select {
		case results <- r:
		default:
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.GET(path, func(c echo.Context) error {
		if reason := c.QueryParam("error"); reason != "" {
			deliver(grantResult{err: fmt.Errorf("authorization denied: %s", reason)})
			return c.String(http.StatusForbidden, "Authorization was denied. You can close this window.")
		}
		code := c.QueryParam("code")
		if code == "" {
			return c.String(http.StatusBadRequest, "Missing code parameter.")
		}
		deliver(grantResult{code: code})
		return c.String(http.StatusOK, "Authorization received. You can close this window.")
	})

	ln, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", redirect.Host, err)
	}
	server := &http.Server{
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			deliver(grantResult{err: fmt.Errorf("redirect server failed: %w", err)})
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("[AUTH] Redirect server shutdown error: %v", err)
		}
	}()

	log.Printf("[AUTH] Waiting for authorization redirect on %s%s", ln.Addr().String(), path)
	if p.OnListen != nil {
		p.OnListen(ln.Addr().String())
	}
	if p.OpenBrowser != nil {
		if err := p.OpenBrowser(requestURL); err != nil {
			log.Printf("[AUTH] Could not open browser, visit %s manually: %v", requestURL, err)
		}
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-results:
		if r.err != nil {
			return "", r.err
		}
		return r.code, nil
	case <-timer.C:
		return "", fmt.Errorf("timed out after %s waiting for authorization redirect", timeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
