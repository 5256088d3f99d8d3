package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/whichguy/claude-craft/internal/agentsync"
	"github.com/whichguy/claude-craft/internal/config"
	"github.com/whichguy/claude-craft/internal/definitions"
	"github.com/whichguy/claude-craft/internal/dispatch"
	"github.com/whichguy/claude-craft/internal/watcher"
)

// loadConfig builds the effective configuration for a command.
//
// The persistent --project flag is always bound. bindings maps further config
// keys to flag names; flags the command does not define are skipped. The log
// level is applied from the result unless --debug is set.
//
// Parameters:
//   - cmd: The cobra command being executed
//   - bindings: Config key to flag name
//
// Returns:
//   - *config.Config: The effective configuration
//   - error: Any lookup, read or validation error
func loadConfig(cmd *cobra.Command, bindings map[string]string) (*config.Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to find home directory: %w", err)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	v := config.New(home, wd)
	all := map[string]string{config.KeyProjectRoot: "project"}
	for key, name := range bindings {
		all[key] = name
	}
	for key, name := range all {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return nil, fmt.Errorf("failed to bind --%s: %w", name, err)
		}
	}

	file, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(v, file)
	if err != nil {
		return nil, err
	}

	if debug, _ := cmd.Flags().GetBool("debug"); !debug {
		level, _ := log.ParseLevel(cfg.LogLevel)
		log.SetLevel(level)
	}
	log.Debug("config loaded", "file", cfg.File, "project", cfg.ProjectRoot)
	return cfg, nil
}

// newDispatcher wires the resolver, template paths and agent sync for cfg.
func newDispatcher(cfg *config.Config) *dispatch.Dispatcher {
	home, _ := os.UserHomeDir()
	return dispatch.New(dispatch.Options{
		Resolver:    definitions.NewLayeredResolver(cfg.ProjectRoot, cfg.UserDir, cfg.ToolkitDir),
		Templates:   definitions.DefaultTemplatePaths(cfg.ProjectRoot, cfg.UserDir, home),
		Syncer:      agentsync.New(cfg.UserDir, cfg.ToolkitDir),
		ProjectRoot: cfg.ProjectRoot,
	})
}

// watchRoots returns the store directories that exist now.
func watchRoots(cfg *config.Config) []string {
	return watcher.ExistingRoots(
		filepath.Join(cfg.ProjectRoot, config.DirName),
		cfg.UserDir,
		cfg.ToolkitDir,
	)
}
