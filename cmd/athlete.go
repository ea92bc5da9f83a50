package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/thingmaster/StravaActivityAPI-to-CSV/pkg/config"
)

var athleteJSON bool

var AthleteCmd = &cobra.Command{
	Use:   "athlete",
	Short: "Show the authenticated athlete",
	Long:  "Authenticate and print the athlete the access token belongs to. Useful to check credentials before a long export.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		exitOnError(err)

		ctx, cancel := signalContext()
		defer cancel()

		exitOnError(runAthlete(ctx, cfg, cmd.InOrStdin(), cmd.OutOrStdout()))
	},
}

func init() {
	addConfigFlags(AthleteCmd)
	addGrantFlags(AthleteCmd)
	addClientFlags(AthleteCmd)
	AthleteCmd.Flags().BoolVar(&athleteJSON, "json", false, "Print the full athlete record as JSON")
}

func runAthlete(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	token, err := obtainToken(ctx, cfg, in, out)
	if err != nil {
		return err
	}
	api, err := newAPIClient(cfg, token, nil)
	if err != nil {
		return err
	}

	athlete, err := api.GetAthlete(ctx)
	if err != nil {
		return fmt.Errorf("failed to get athlete: %w", err)
	}

	if athleteJSON {
		data, err := json.MarshalIndent(athlete, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal athlete: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	_, err = fmt.Fprintf(out, "Athlete %d: %v %v\n", athlete.Int("id"), athlete["firstname"], athlete["lastname"])
	return err
}
