package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "forkpoold",
	Short:         "forkpoold -- a forking job-pool supervisor",
	Long:          "forkpoold supervises a bounded pool of forked worker processes, dispatching one job per worker.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/forkpool/forkpoold.toml", "path to the TOML config file")
	rootCmd.AddCommand(runCmd, stopCmd, reloadCmd, statusCmd, logsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
