package auth

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
)

// GrantProvider obtains an authorization grant out of band, typically by sending
// a user through the provider's authorization page
type GrantProvider interface {
	ObtainGrant(ctx context.Context, requestURL string) (string, error)
}

// StaticGrant is a grant that is already known, e.g. from configuration
type StaticGrant string

// ObtainGrant returns the grant itself
func (g StaticGrant) ObtainGrant(ctx context.Context, requestURL string) (string, error) {
	if strings.TrimSpace(string(g)) == "" {
		return "", ErrMissingGrant
	}
	return string(g), nil
}

// ParseGrantFromURL accepts either a bare app code or the redirect URL the
// browser ended up on, and returns the code
func ParseGrantFromURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrMissingGrant
	}
	if !strings.Contains(raw, "code=") && !strings.Contains(raw, "error=") {
		return raw, nil
	}

	query := raw
	if i := strings.Index(raw, "?"); i >= 0 {
		query = raw[i+1:]
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return "", fmt.Errorf("failed to parse redirect URL: %w", err)
	}
	if e := values.Get("error"); e != "" {
		return "", fmt.Errorf("authorization denied: %s", e)
	}
	code := strings.TrimSpace(values.Get("code"))
	if code == "" {
		return "", ErrMissingGrant
	}
	return code, nil
}

// ConsoleGrantProvider walks a user through the browser flow on a terminal and
// reads the app code they paste back
type ConsoleGrantProvider struct {
	In          io.Reader
	Out         io.Writer
	OpenBrowser func(url string) error
}

// NewConsoleGrantProvider creates a provider reading from in and writing prompts to out
func NewConsoleGrantProvider(in io.Reader, out io.Writer) *ConsoleGrantProvider {
	return &ConsoleGrantProvider{
		In:          in,
		Out:         out,
		OpenBrowser: OpenBrowser,
	}
}

// ObtainGrant prints the instructions, optionally opens the browser and reads the code
func (p *ConsoleGrantProvider) ObtainGrant(ctx context.Context, requestURL string) (string, error) {
	scanner := bufio.NewScanner(p.In)
	readLine := func() (string, error) {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", fmt.Errorf("error reading input: %w", err)
			}
			return "", io.EOF
		}
		return strings.TrimSpace(scanner.Text()), nil
	}

	_, _ = fmt.Fprintln(p.Out, "You must be logged in to the athlete's web account for this to work.")
	_, _ = fmt.Fprintln(p.Out, "The browser will fail to load the redirect page; the address it shows contains code=<APP CODE>.")
	_, _ = fmt.Fprintf(p.Out, "Authorization URL:\n  %s\n", requestURL)
	_, _ = fmt.Fprint(p.Out, "Press <Enter> to open the browser, or paste an app code you already have: ")

	line, err := readLine()
	if err != nil {
		return "", err
	}
	if line != "" {
		return ParseGrantFromURL(line)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.OpenBrowser != nil {
		if err := p.OpenBrowser(requestURL); err != nil {
			_, _ = fmt.Fprintf(p.Out, "Could not open a browser (%v); open the URL above manually.\n", err)
		}
	}

	_, _ = fmt.Fprint(p.Out, "Enter the app code (or the whole redirect URL): ")
	line, err = readLine()
	if err != nil {
		return "", err
	}
	return ParseGrantFromURL(line)
}

// OpenBrowser opens url with the platform's default handler
func OpenBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
