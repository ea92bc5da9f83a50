package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/thingmaster/StravaActivityAPI-to-CSV/pkg/auth"
	"github.com/thingmaster/StravaActivityAPI-to-CSV/pkg/config"
)

var AuthURLCmd = &cobra.Command{
	Use:   "auth-url",
	Short: "Print the authorization page URL",
	Long: `Print the page the athlete visits to grant this application access.

After approving, the browser is redirected to the registered redirect URI with
code=<APP CODE> in its address. Pass that code to export or token with --code.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		exitOnError(err)
		exitOnError(runAuthURL(cfg, cmd.OutOrStdout()))
	},
}

var TokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Exchange an app code for an access token",
	Long: `Exchange an app code for an access token and print it.

The printed token can be passed to later runs with --access-token until it
expires, which avoids repeating the browser flow.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		exitOnError(err)

		ctx, cancel := signalContext()
		defer cancel()

		exitOnError(runToken(ctx, cfg, cmd.InOrStdin(), cmd.OutOrStdout()))
	},
}

func init() {
	addConfigFlags(AuthURLCmd)
	AuthURLCmd.Flags().String("redirect-uri", auth.DefaultRedirectURI, "Redirect URI registered for the application")
	AuthURLCmd.Flags().String("scope", auth.DefaultScope, "Comma separated scopes to request")

	addConfigFlags(TokenCmd)
	addGrantFlags(TokenCmd)
}

func runAuthURL(cfg *config.Config, out io.Writer) error {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return fmt.Errorf("client id is required (set --client-id or %s_CLIENT_ID)", config.EnvPrefix)
	}

	authenticator := auth.NewAuthenticator(auth.Credentials{ClientID: cfg.ClientID},
		auth.WithAuthURL(cfg.Grant.AuthURL),
		auth.WithRedirectURI(cfg.Grant.RedirectURI),
		auth.WithScope(cfg.Grant.Scope),
	)
	_, err := fmt.Fprintln(out, authenticator.AuthorizationURL())
	return err
}

func runToken(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	authenticator, err := newAuthenticator(cfg, in, out)
	if err != nil {
		return err
	}
	token, err := authenticator.Authenticate(ctx, cfg.Code)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen).SprintFunc()
	_, _ = fmt.Fprintf(out, "%s %s\n", green("access_token:"), token.AccessToken)
	if !token.Expiry.IsZero() {
		_, _ = fmt.Fprintf(out, "expires_at: %s\n", token.Expiry.Local().Format(time.RFC3339))
	}
	return nil
}
