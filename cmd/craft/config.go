package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/whichguy/claude-craft/internal/config"
	"github.com/whichguy/claude-craft/internal/ui"
)

// configCmd is the parent command for configuration management.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the craft configuration file",
	Long: `Manage .claude/craft.yaml in the project.

Precedence, lowest first: defaults, the config file, environment
(` + config.EnvPrefix + `_PORT, ` + config.EnvPrefix + `_HOST, ` + config.EnvPrefix + `_LOG_LEVEL, PORT, HOST, ...),
then command-line flags.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the effective configuration to .claude/craft.yaml",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

func init() {
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file without asking")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

// runConfigInit writes the config file, asking before overwriting.
//
// Parameters:
//   - cmd: The cobra command being executed
//   - args: Command line arguments (unused)
//
// Returns:
//   - error: Config or write errors
func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		ui.PrintError("%v", err)
		return err
	}

	path := config.ProjectFile(cfg.ProjectRoot)
	force, _ := cmd.Flags().GetBool("force")
	err = config.WriteFile(path, cfg, force)
	if errors.Is(err, config.ErrExists) {
		ok, promptErr := ui.PromptConfirm(path+" exists. Overwrite?", false)
		if promptErr != nil || !ok {
			ui.PrintWarning("Left %s unchanged", path)
			return nil
		}
		err = config.WriteFile(path, cfg, true)
	}
	if err != nil {
		ui.PrintError("%v", err)
		return err
	}

	ui.PrintSuccess("Wrote %s", path)
	return nil
}

// runConfigShow prints the effective configuration as YAML.
func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		ui.PrintError("%v", err)
		return err
	}

	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	if cfg.File != "" {
		ui.PrintDim("# from %s", cfg.File)
	} else {
		ui.PrintDim("# defaults (no config file)")
	}
	ui.PrintPlain(string(data))
	return nil
}
