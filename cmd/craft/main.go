// Package main provides the entry point for the craft CLI.
//
// craft serves a local dev console for Claude command and agent definitions:
// a WebSocket chat that dispatches slash commands against the project, user
// and shared toolkit stores, plus terminal and MCP front ends.
package main

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/whichguy/claude-craft/internal/ui"
)

// Version information set at build time via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "craft",
	Short: "Local dev console for Claude commands and agents",
	Long: `craft resolves slash commands and agents across three stores:

  project   <project>/.claude
  user      ~/.claude
  shared    ~/claude-craft

The first store holding a name wins. Run 'craft serve' to start the console,
then 'craft attach' (or a browser) to chat with it.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		if debug {
			log.SetLevel(log.DebugLevel)
			log.Debug("Debug logging enabled")
		}

		quiet, _ := cmd.Flags().GetBool("quiet")
		ui.SetQuietMode(quiet)
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().String("config", "", "Config file (default <project>/.claude/craft.yaml)")
	rootCmd.PersistentFlags().StringP("project", "C", "", "Project root (default current directory)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(attachCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(commandsCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(mcpCmd)
}

// versionCmd shows version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		ui.PrintBanner(version)
		ui.PrintInfo("Version: %s", version)
		ui.PrintInfo("Commit: %s", commit)
		ui.PrintInfo("Built: %s", date)
	},
}

func main() {
	Execute()
}
