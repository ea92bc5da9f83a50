package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/thingmaster/StravaActivityAPI-to-CSV/pkg/config"
	"github.com/thingmaster/StravaActivityAPI-to-CSV/pkg/export"
	"github.com/thingmaster/StravaActivityAPI-to-CSV/pkg/format"
	"github.com/thingmaster/StravaActivityAPI-to-CSV/pkg/logger"
	"github.com/thingmaster/StravaActivityAPI-to-CSV/pkg/metrics"
	"github.com/thingmaster/StravaActivityAPI-to-CSV/pkg/storage"
)

var ExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all activities to a CSV file",
	Long: `Authenticate, then download every activity of the athlete together with its
laps, segment efforts, splits, kudos and comments and write them as one CSV file.

The file is named strava-YYYY-MM-DD-HH-MM-SS.csv after the local start time and is
written to the configured storage (a directory by default, or an S3 bucket).

Examples:
  # Paste the app code when prompted
  strava2csv export --client-id 12345 --client-secret s3cr3t

  # Reuse a code obtained earlier and write metric units to ./exports
  strava2csv export --code 0a1b2c --units metric --output-dir ./exports

  # Capture the redirect on a local listener and keep going past failures
  strava2csv export --grant-mode loopback --failure-policy skip`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		exitOnError(err)

		ctx, cancel := signalContext()
		defer cancel()

		_, err = runExport(ctx, cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		exitOnError(err)
	},
}

func init() {
	addConfigFlags(ExportCmd)
	addGrantFlags(ExportCmd)
	addClientFlags(ExportCmd)

	ExportCmd.Flags().String("units", string(format.Imperial), "Units for distances and speeds (imperial or metric)")
	ExportCmd.Flags().String("failure-policy", string(export.Abort), "What to do when an activity cannot be fetched (abort or skip)")
	ExportCmd.Flags().StringP("output", "o", "file", "Where to store the export (file, s3 or memory)")
	ExportCmd.Flags().String("output-dir", ".", "Directory for file output")
	ExportCmd.Flags().String("s3-bucket", "", "Bucket for s3 output")
	ExportCmd.Flags().String("s3-region", "", "Region of the bucket")
	ExportCmd.Flags().String("s3-prefix", "", "Key prefix for s3 output (default exports/)")
	ExportCmd.Flags().String("s3-endpoint", "", "Endpoint of an S3 compatible service")
	ExportCmd.Flags().String("metrics-file", "", "Write run metrics in the Prometheus text format to this file")
}

// exportResult is what a finished export command reports
type exportResult struct {
	Summary  export.Summary
	Location string
	Requests int
}

// runExport performs one complete export run with cfg. Prompts are read from
// in and status lines are written to out.
func runExport(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) (*exportResult, error) {
	units, err := format.ParseUnits(cfg.Export.Units)
	if err != nil {
		return nil, err
	}
	policy, err := export.ParseFailurePolicy(cfg.Export.FailurePolicy)
	if err != nil {
		return nil, err
	}

	// Open storage before authenticating so a bad bucket fails fast
	store, err := storage.NewStorage(ctx, &cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		_ = store.Close()
	}()

	token, err := obtainToken(ctx, cfg, in, out)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	api, err := newAPIClient(cfg, token, m)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	name := export.FileName(started)
	location := store.Location(name)

	runLogger := logger.NewLogger()
	runID := logger.NewRunID()
	if err := runLogger.LogRunStart(runID, location); err != nil {
		log.Printf("[EXPORT] Failed to write run log: %v", err)
	}

	exporter := export.NewExporter(api, format.NewFormatter(units))
	exporter.Policy = policy

	var buf bytes.Buffer
	summary, runErr := exporter.Run(ctx, &buf)

	// A stopped run still leaves everything fetched so far on disk
	if runErr == nil || summary.Exported > 0 {
		if err := store.Save(ctx, name, buf.Bytes()); err != nil {
			if runErr == nil {
				runErr = err
			} else {
				log.Printf("[EXPORT] Failed to save partial export: %v", err)
			}
		}
	}

	result := &exportResult{
		Summary:  summary,
		Location: location,
		Requests: api.Budget().Total,
	}

	skipped := make([]int64, len(summary.Skipped))
	for i, id := range summary.Skipped {
		skipped[i] = int64(id)
	}
	if err := runLogger.LogRunEnd(runID, logger.RunResult{
		Activities: summary.Activities,
		Exported:   summary.Exported,
		Skipped:    skipped,
		Rows:       summary.Rows,
		Requests:   result.Requests,
		Err:        runErr,
	}); err != nil {
		log.Printf("[EXPORT] Failed to write run log: %v", err)
	}

	m.ObserveExport(summary.Exported, len(summary.Skipped), summary.Rows, time.Since(started))
	if cfg.MetricsFile != "" {
		if err := m.WriteFile(cfg.MetricsFile); err != nil {
			log.Printf("[EXPORT] %v", err)
		}
	}

	printSummary(out, result, runErr)
	return result, runErr
}

func printSummary(out io.Writer, result *exportResult, runErr error) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	s := result.Summary
	if runErr != nil {
		_, _ = fmt.Fprintf(out, "%s %v\n", red("Export failed:"), runErr)
	} else {
		_, _ = fmt.Fprintf(out, "%s %s\n", green("Export written:"), result.Location)
	}
	_, _ = fmt.Fprintf(out, "  activities: %d exported of %d\n", s.Exported, s.Activities)
	if len(s.Skipped) > 0 {
		_, _ = fmt.Fprintf(out, "  %s %v\n", yellow("skipped:"), s.Skipped)
	}
	_, _ = fmt.Fprintf(out, "  rows: %d\n", s.Rows)
	_, _ = fmt.Fprintf(out, "  %s\n", gray(fmt.Sprintf("%d requests in %s", result.Requests, s.Duration.Round(time.Second))))
}
