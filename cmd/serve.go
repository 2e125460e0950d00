package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dimasma0305/opsrelay/internal/log"
	"github.com/dimasma0305/opsrelay/internal/opsrelay"
	"github.com/dimasma0305/opsrelay/internal/opsrelay/config"
)

var (
	serveDaemon     bool
	serveConfigFile string
	servePidFile    string
	serveLogFile    string
	serveSocketPath string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay",
	Long: `Start the relay: connect to Telegram, arm the scheduler and begin
handling commands.

The relay runs in the foreground by default. Use --daemon to fork it into
the background; a running daemon is managed with the stop, status and logs
commands over its control socket.`,
	Example: `  # Run in the foreground (Ctrl+C to stop)
  opsrelay serve

  # Run as a daemon
  opsrelay serve --daemon

  # Use an alternate config file
  opsrelay serve --config /etc/opsrelay/relay.yaml`,
	Run: func(_ *cobra.Command, _ []string) {
		settings := config.SettingsFromEnv()
		if serveConfigFile != "" {
			settings.ConfigPath = serveConfigFile
		}

		bot := opsrelay.New(settings)
		options := opsrelay.Options{
			DaemonMode: serveDaemon,
			PIDFile:    servePidFile,
			LogFile:    serveLogFile,
			SocketPath: serveSocketPath,
		}

		if serveDaemon {
			log.Info("Starting relay as daemon...")
		} else {
			log.Info("Starting relay in foreground...")
		}

		if err := bot.Start(options); err != nil {
			log.Fatal("Failed to start relay: ", err)
		}

		if !serveDaemon {
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			log.Info("Relay running in foreground. Press Ctrl+C to stop.")
			select {
			case <-sigChan:
			case <-bot.Done():
				// Shut down via the control socket
			}
			bot.Stop()
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveDaemon, "daemon", false, "Run in the background as a daemon")
	serveCmd.Flags().StringVarP(&serveConfigFile, "config", "c", "", "Config file location (default: $CONFIG_FILE or relay.yaml)")
	serveCmd.Flags().StringVar(&servePidFile, "pid-file", "", "Custom PID file location (default: /tmp/opsrelay.pid)")
	serveCmd.Flags().StringVar(&serveLogFile, "log-file", "", "Custom log file location (default: /tmp/opsrelay.log)")
	serveCmd.Flags().StringVar(&serveSocketPath, "socket", "", "Custom control socket location (default: /tmp/opsrelay.sock)")
}
