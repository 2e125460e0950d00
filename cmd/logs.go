package cmd

import (
	"github.com/spf13/cobra"

	"github.com/dimasma0305/opsrelay/internal/log"
	"github.com/dimasma0305/opsrelay/internal/opsrelay/daemon"
)

var (
	logsFile   string
	logsFollow bool
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show relay daemon logs",
	Long:  `Display the relay daemon log file, optionally following it in real-time (like tail -f).`,
	Example: `  # Show recent log lines
  opsrelay logs

  # Follow the log in real-time
  opsrelay logs -f

  # Follow a custom log file
  opsrelay logs -f --log-file /custom/path/opsrelay.log`,
	Run: func(_ *cobra.Command, _ []string) {
		logFile := logsFile
		if logFile == "" {
			logFile = daemon.DefaultLogFile
		}

		if !logsFollow {
			daemon.ShowRecentLogs(logFile)
			return
		}

		log.Info("Following relay logs: %s", logFile)
		log.Info("Press Ctrl+C to stop following logs")
		log.Info("==========================================")

		if err := daemon.FollowLogs(logFile); err != nil {
			log.Fatal("Failed to follow logs: ", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().StringVar(&logsFile, "log-file", "", "Custom log file location")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow the log file in real-time")
}
