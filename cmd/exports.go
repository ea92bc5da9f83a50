package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
	"github.com/thingmaster/StravaActivityAPI-to-CSV/pkg/config"
	"github.com/thingmaster/StravaActivityAPI-to-CSV/pkg/export"
	"github.com/thingmaster/StravaActivityAPI-to-CSV/pkg/storage"
)

var keepExports int

var ExportsCmd = &cobra.Command{
	Use:   "exports",
	Short: "List exports in the configured storage",
	Long: `List the CSV exports found in the configured storage, oldest first.
Only files named strava-YYYY-MM-DD-HH-MM-SS.csv are considered exports.

With --keep N only the newest N exports are kept and older ones are deleted.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		exitOnError(err)

		ctx, cancel := signalContext()
		defer cancel()

		exitOnError(runExports(ctx, cfg, cmd.OutOrStdout()))
	},
}

func init() {
	addConfigFlags(ExportsCmd)
	ExportsCmd.Flags().StringP("output", "o", "file", "Storage to inspect (file or s3)")
	ExportsCmd.Flags().String("output-dir", ".", "Directory for file output")
	ExportsCmd.Flags().String("s3-bucket", "", "Bucket for s3 output")
	ExportsCmd.Flags().String("s3-region", "", "Region of the bucket")
	ExportsCmd.Flags().String("s3-prefix", "", "Key prefix for s3 output (default exports/)")
	ExportsCmd.Flags().String("s3-endpoint", "", "Endpoint of an S3 compatible service")
	ExportsCmd.Flags().IntVar(&keepExports, "keep", 0, "Delete all but the newest N exports (0 keeps everything)")
}

func runExports(ctx context.Context, cfg *config.Config, out io.Writer) error {
	store, err := storage.NewStorage(ctx, &cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		_ = store.Close()
	}()

	all, err := store.List(ctx)
	if err != nil {
		return err
	}
	// The directory may hold other CSV files; only our own exports count
	var names []string
	for _, name := range all {
		if _, ok := export.ParseFileName(name); ok {
			names = append(names, name)
		}
	}
	// Export names embed the start time, so lexical order is chronological
	sort.Strings(names)

	if keepExports > 0 && len(names) > keepExports {
		stale := names[:len(names)-keepExports]
		for _, name := range stale {
			if err := store.Delete(ctx, name); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "deleted %s\n", store.Location(name))
		}
		names = names[len(stale):]
	}

	for _, name := range names {
		_, _ = fmt.Fprintln(out, store.Location(name))
	}
	return nil
}
