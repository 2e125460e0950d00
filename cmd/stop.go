package cmd

import (
	"github.com/spf13/cobra"

	"github.com/dimasma0305/opsrelay/internal/log"
	"github.com/dimasma0305/opsrelay/internal/opsrelay/control"
	"github.com/dimasma0305/opsrelay/internal/opsrelay/daemon"
)

var (
	stopPidFile    string
	stopSocketPath string
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the relay daemon",
	Long: `Stop the running relay daemon.

The daemon is asked to shut down over its control socket first; if it does
not answer, the process from the PID file is terminated directly.`,
	Example: `  # Stop the daemon
  opsrelay stop

  # Stop with a custom PID file
  opsrelay stop --pid-file /custom/path/opsrelay.pid`,
	Run: func(_ *cobra.Command, _ []string) {
		log.Info("Stopping relay daemon...")

		client := control.NewClient(stopSocketPath)
		if response, err := client.Stop(); err == nil && response.Success {
			log.Info("Relay daemon is shutting down")
			return
		}
		log.InfoH3("Control socket unreachable, falling back to PID file")

		pidFile := stopPidFile
		if pidFile == "" {
			pidFile = daemon.DefaultPIDFile
		}
		if err := daemon.Stop(pidFile); err != nil {
			log.Fatal("Failed to stop daemon: ", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(stopCmd)

	stopCmd.Flags().StringVar(&stopPidFile, "pid-file", "", "Custom PID file location")
	stopCmd.Flags().StringVar(&stopSocketPath, "socket", "", "Custom control socket location")
}
