package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/thingmaster/StravaActivityAPI-to-CSV/cmd"
)

var rootCmd = &cobra.Command{
	Use:   "strava2csv",
	Short: "Export Strava activities to CSV",
	Long:  "Authenticate against Strava and export every activity of the athlete, with laps, segment efforts, splits, kudos and comments, to a single CSV file",
}

func init() {
	rootCmd.AddCommand(cmd.ExportCmd)
	rootCmd.AddCommand(cmd.ExportsCmd)
	rootCmd.AddCommand(cmd.AuthURLCmd)
	rootCmd.AddCommand(cmd.TokenCmd)
	rootCmd.AddCommand(cmd.AthleteCmd)
	rootCmd.AddCommand(cmd.ConfigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}
