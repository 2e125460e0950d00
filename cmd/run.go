package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dimasma0305/opsrelay/internal/log"
	"github.com/dimasma0305/opsrelay/internal/opsrelay/config"
	"github.com/dimasma0305/opsrelay/internal/opsrelay/runner"
)

var runConfigFile string

var runCmd = &cobra.Command{
	Use:   "run <name>",
	Short: "Run a configured script locally",
	Long: `Run a script from the relay configuration on this host, without going
through the chat transport.

The name is resolved against the one-time scripts first, then the
long-running ones. Output is streamed to stdout as it arrives. Like the
relay itself, a script's non-zero exit status is reported as a warning,
not a failure.`,
	Example: `  # Run the 'backup' script
  opsrelay run backup

  # Run against an alternate config file
  opsrelay run backup --config /etc/opsrelay/relay.yaml`,
	Args: cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		name := args[0]

		settings := config.SettingsFromEnv()
		if runConfigFile != "" {
			settings.ConfigPath = runConfigFile
		}

		conf, err := config.Load(settings.ConfigPath)
		if err != nil {
			log.Fatal("Failed to load config: ", err)
		}

		script := conf.OneTimeScript(name)
		if script == nil {
			script = conf.LongRunningScript(name)
		}
		if script == nil {
			available := append(conf.OneTimeNames(), conf.LongRunningNames()...)
			log.Fatal("Unknown script %q. Available: %v", name, available)
		}

		log.Info("Running script: %s", name)
		stream, err := runner.RunStreaming(*script)
		if err != nil {
			log.Fatal("Script execution failed: ", err)
		}
		for line := range stream.Lines() {
			fmt.Println(line)
		}
		if err := stream.Wait(); err != nil {
			log.Fatal("Script execution failed: ", err)
		}

		log.Info("Script '%s' finished", name)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigFile, "config", "c", "", "Config file location (default: $CONFIG_FILE or relay.yaml)")

	// Register completion for the script name argument
	runCmd.ValidArgsFunction = validScriptNames
}
