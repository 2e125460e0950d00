// Package cmd provides the command-line interface for opsrelay
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dimasma0305/opsrelay/internal/log"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "opsrelay",
	Short: "Chat-driven remote operations relay",
	Long: `opsrelay - run operational scripts on a host from a Telegram chat

The relay executes administrator-defined scripts on demand, streams their
output back to the requester, runs scheduled scripts on a timer and
broadcasts the results to subscribed chats, and reports host health.

Features:
  • One-shot and line-streamed script execution
  • Interval and daily scheduled scripts with subscriber broadcasts
  • Hot configuration reload on file change
  • Daemon mode with a unix-socket control channel`,
	Example: `  # Run the relay in the foreground
  opsrelay serve

  # Run as a background daemon
  opsrelay serve --daemon

  # Inspect a running daemon
  opsrelay status

  # Run a configured script locally without the relay
  opsrelay run backup`,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		// Enable debug mode if flag is set
		if debug, _ := cmd.Flags().GetBool("debug"); debug {
			log.SetDebugMode(true)
			log.Debug("Debug mode enabled")
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Add debug flag to root command
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
}
