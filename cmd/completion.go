package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dimasma0305/opsrelay/internal/opsrelay/config"
)

// validScriptNames returns the runnable script names for shell completion.
// It is used by cobra to suggest arguments for commands that take a script name.
func validScriptNames(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	settings := config.SettingsFromEnv()
	conf, err := config.Load(settings.ConfigPath)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	names := append(conf.OneTimeNames(), conf.LongRunningNames()...)
	return names, cobra.ShellCompDirectiveNoFileComp
}

// completionCmd represents the completion command
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script for opsrelay.

To load completions:

Bash:

  $ source <(opsrelay completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ opsrelay completion bash > /etc/bash_completion.d/opsrelay
  # macOS:
  $ opsrelay completion bash > $(brew --prefix)/etc/bash_completion.d/opsrelay

Zsh:

  # If shell completion is not already enabled in your environment,
  # you will need to enable it.  You can execute the following once:

  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ opsrelay completion zsh > "${fpath[1]}/_opsrelay"

  # You will need to start a new shell for this setup to take effect.

Fish:

  $ opsrelay completion fish | source

  # To load completions for each session, execute once:
  $ opsrelay completion fish > ~/.config/fish/completions/opsrelay.fish

PowerShell:

  PS> opsrelay completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> opsrelay completion powershell > opsrelay.ps1
  # and source this file from your PowerShell profile.
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	Run: func(cmd *cobra.Command, args []string) {
		var err error
		switch args[0] {
		case "bash":
			err = cmd.Root().GenBashCompletion(os.Stdout)
		case "zsh":
			err = cmd.Root().GenZshCompletion(os.Stdout)
		case "fish":
			err = cmd.Root().GenFishCompletion(os.Stdout, true)
		case "powershell":
			err = cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
		}
		if err != nil {
			// Error is logged but not fatal for completion generation
			cmd.PrintErrf("Error generating completion: %v\n", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
