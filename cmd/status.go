package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dimasma0305/opsrelay/internal/log"
	"github.com/dimasma0305/opsrelay/internal/opsrelay/control"
	"github.com/dimasma0305/opsrelay/internal/opsrelay/daemon"
)

var (
	statusPidFile    string
	statusSocketPath string
	statusJSON       bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show relay daemon status",
	Long: `Display the current status of the relay daemon: whether the process is
alive, and the runtime state reported over the control socket (uptime,
subscriber count and armed scheduled jobs).`,
	Example: `  # Show status
  opsrelay status

  # Show status in JSON format
  opsrelay status --json`,
	Run: func(_ *cobra.Command, _ []string) {
		pidFile := statusPidFile
		if pidFile == "" {
			pidFile = daemon.DefaultPIDFile
		}

		process := daemon.Probe(pidFile)

		var runtime map[string]interface{}
		if process.Running {
			client := control.NewClient(statusSocketPath)
			if response, err := client.Status(); err == nil && response.Success {
				runtime = response.Data
			}
		}

		if statusJSON {
			payload := map[string]interface{}{"process": process}
			if runtime != nil {
				payload["runtime"] = runtime
			}
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(payload); err != nil {
				log.Fatal("Failed to encode status: ", err)
			}
			return
		}

		if !process.Running {
			log.Info("Relay daemon is not running (%s)", process.Message)
			return
		}
		log.Info("Relay daemon is running (PID: %d)", process.PID)
		if runtime == nil {
			log.Warn("Daemon did not answer on the control socket")
			return
		}
		log.InfoH2("Uptime: %v", runtime["uptime"])
		log.InfoH2("Subscribers: %v", runtime["subscribers"])
		log.InfoH2("Config: %v", runtime["config_path"])
		if last, ok := runtime["last_reload"]; ok {
			log.InfoH2("Last reload: %v", last)
		}
		if jobs, ok := runtime["jobs"].([]interface{}); ok {
			log.InfoH2("Scheduled jobs: %d", len(jobs))
			for _, entry := range jobs {
				if job, ok := entry.(map[string]interface{}); ok {
					log.InfoH3("%v (%v), next run %v", job["name"], job["trigger"], job["next"])
				}
			}
		}
	},
}

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Ask the relay daemon to re-check its configuration now",
	Long: `Trigger an immediate configuration change check in the running daemon
instead of waiting for the next poll cycle.`,
	Run: func(_ *cobra.Command, _ []string) {
		client := control.NewClient(statusSocketPath)
		response, err := client.Reload()
		if err != nil {
			log.Fatal("Failed to reach the relay daemon: ", err)
		}
		if !response.Success {
			log.Fatal("Reload refused: ", response.Error)
		}
		fmt.Println(response.Message)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(reloadCmd)

	statusCmd.Flags().StringVar(&statusPidFile, "pid-file", "", "Custom PID file location")
	statusCmd.Flags().StringVar(&statusSocketPath, "socket", "", "Custom control socket location")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output status in JSON format")
	reloadCmd.Flags().StringVar(&statusSocketPath, "socket", "", "Custom control socket location")
}
