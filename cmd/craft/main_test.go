// Package main provides tests for craft command wiring.
package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/whichguy/claude-craft/internal/ui"
)

// TestRootCommandInitialization verifies that every subcommand is registered.
func TestRootCommandInitialization(t *testing.T) {
	expected := []string{"version", "serve", "attach", "run", "commands", "agents", "doctor", "config", "mcp"}

	for _, name := range expected {
		found := false
		for _, cmd := range rootCmd.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected command %q not found", name)
		}
	}
}

// TestGlobalFlagsExist verifies the persistent flags on the root command.
func TestGlobalFlagsExist(t *testing.T) {
	for _, name := range []string{"debug", "quiet", "config", "project"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("expected global flag %q not found", name)
		}
	}
}

// TestSubcommandsHaveShortDescription verifies help output has something to show.
func TestSubcommandsHaveShortDescription(t *testing.T) {
	var walk func(*cobra.Command)
	walk = func(c *cobra.Command) {
		for _, sub := range c.Commands() {
			if sub.Short == "" {
				t.Errorf("command %q is missing Short description", sub.CommandPath())
			}
			walk(sub)
		}
	}
	walk(rootCmd)
}

// testWorkspace is a fake home with a project, a user store and a toolkit.
type testWorkspace struct {
	home    string
	project string
}

// newWorkspace points HOME at a temp dir and writes files relative to it.
func newWorkspace(t *testing.T, files map[string]string) testWorkspace {
	t.Helper()
	for _, k := range []string{"HOST", "PORT", "CLAUDE_CRAFT_HOST", "CLAUDE_CRAFT_PORT", "CLAUDE_CRAFT_LOG_LEVEL", "CLAUDE_CRAFT_PROJECT_ROOT", "CLAUDE_CRAFT_USER_DIR", "CLAUDE_CRAFT_TOOLKIT_DIR"} {
		t.Setenv(k, "")
	}
	home := t.TempDir()
	t.Setenv("HOME", home)

	ws := testWorkspace{home: home, project: filepath.Join(home, "proj")}
	if err := os.MkdirAll(ws.project, 0o755); err != nil {
		t.Fatal(err)
	}
	for rel, body := range files {
		path := filepath.Join(home, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return ws
}

// execute runs the root command with args and returns everything printed
// through the ui package.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	ui.SetOutput(&buf)
	t.Cleanup(func() {
		ui.SetOutput(nil)
		ui.SetQuietMode(false)
	})

	resetFlags(rootCmd)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags restores defaults; cobra keeps flag values between executions.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}
