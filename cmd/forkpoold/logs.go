package main

import (
	"fmt"

	"github.com/relaypath/forkpool/internal/config"
	"github.com/relaypath/forkpool/internal/journal"
	"github.com/spf13/cobra"
)

var logsLines int

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show the most recent lines from the supervisor's log file",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if file.Supervisor.LogPath == "" {
			return fmt.Errorf("cmd/forkpoold: supervisor.log_path is not set")
		}

		entries, err := journal.TailFile(file.Supervisor.LogPath, logsLines)
		if err != nil {
			return err
		}

		for i := len(entries) - 1; i >= 0; i-- {
			e := entries[i]
			msg := e.Msg
			if msg == "" && e.Event != nil {
				msg = e.Event.Type()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s [%s] %s\n", e.Time, e.Level, msg)
		}
		return nil
	},
}

func init() {
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 50, "number of most recent lines to show")
}
