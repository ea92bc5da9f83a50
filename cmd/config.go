package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/thingmaster/StravaActivityAPI-to-CSV/pkg/config"
)

var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long:  "Print the configuration after defaults, the config file, environment variables and flags are merged. Secrets are masked.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		exitOnError(err)
		exitOnError(runConfig(cfg, cmd.OutOrStdout()))
	},
}

func init() {
	addConfigFlags(ConfigCmd)
	addGrantFlags(ConfigCmd)
	addClientFlags(ConfigCmd)
}

func runConfig(cfg *config.Config, out io.Writer) error {
	data, err := cfg.YAML()
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(out, string(data))
	return err
}
