package cmd

import (
	"os"
	"path/filepath"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/dimasma0305/opsrelay/internal/log"
)

var (
	initDir   string
	initToken string
)

var initCmd = &cobra.Command{
	Use:     "init",
	Aliases: []string{"i"},
	Short:   "Initialize a new relay project",
	Long: `Initialize a relay project in a directory.

This command creates:
  - relay.yaml with a sample script and device monitor
  - .env.example documenting the environment surface
  - scripts/uptime.sh as a first runnable script

You can provide values via flags or be prompted for input interactively.`,
	Example: `  # Initialize in the current directory with prompts
  opsrelay init

  # Initialize a specific directory
  opsrelay init --dir /opt/opsrelay

  # Provide the bot token up front
  opsrelay init --token 123456:ABC...`,
	Run: func(_ *cobra.Command, _ []string) {
		token := initToken
		if token == "" {
			prompt := &survey.Input{
				Message: "Telegram bot token (from @BotFather, blank to fill in later):",
			}
			if err := survey.AskOne(prompt, &token); err != nil {
				log.Fatal("Initialization canceled: ", err)
			}
		}

		if err := writeProject(initDir, token); err != nil {
			log.Fatal("Failed to initialize project: ", err)
		}

		log.Info("Relay project initialized in %s", initDir)
		log.InfoH3("Edit relay.yaml, then start with: opsrelay serve")
	},
}

func writeProject(dir, token string) error {
	scriptsDir := filepath.Join(dir, "scripts")
	if err := os.MkdirAll(scriptsDir, 0750); err != nil {
		return err
	}

	files := []struct {
		path    string
		content string
		mode    os.FileMode
	}{
		{filepath.Join(dir, "relay.yaml"), relayYaml(token), 0600},
		{filepath.Join(dir, ".env.example"), envExample, 0644},
		{filepath.Join(scriptsDir, "uptime.sh"), uptimeScript, 0755},
	}
	for _, f := range files {
		if _, err := os.Stat(f.path); err == nil {
			log.Warn("Keeping existing %s", f.path)
			continue
		}
		if err := os.WriteFile(f.path, []byte(f.content), f.mode); err != nil {
			return err
		}
		log.InfoH3("Created %s", f.path)
	}
	return nil
}

func relayYaml(token string) string {
	return `token: "` + token + `"

one_time_scripts:
  - name: uptime
    path: scripts/uptime.sh

long_running_scripts: []

device_monitors:
  - name: root
    path: /
    alert_threshold: 80

periodic_scripts: []

# notifications:
#   discord_webhook: "https://discord.com/api/webhooks/..."
#   email:
#     host: smtp.example.com
#     port: 587
#     username: ops@example.com
#     password: "..."
#     from: ops@example.com
#     to: [oncall@example.com]
`
}

const envExample = `# Overrides the token field of relay.yaml
TELEGRAM_TOKEN=

# Comma-separated numeric chat ids; when set, only these may run admin commands
ADMIN_USERS=

# Config file location (default: relay.yaml)
CONFIG_FILE=

# Subscriber store location (default: subscribers.json)
SUBSCRIBERS_FILE=

# Broadcast chunk size in characters (default: 4000)
CHUNK_SIZE=

# Self-hosted Bot API server, if any
TELEGRAM_API_URL=
`

const uptimeScript = `#!/bin/sh
uptime
`

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVar(&initDir, "dir", ".", "Directory to initialize")
	initCmd.Flags().StringVar(&initToken, "token", "", "Telegram bot token")
}
