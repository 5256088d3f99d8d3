package main

import (
	"io"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/whichguy/claude-craft/internal/client"
	"github.com/whichguy/claude-craft/internal/tui"
	"github.com/whichguy/claude-craft/internal/ui"
)

// attachCmd connects a terminal chat client to a running server.
var attachCmd = &cobra.Command{
	Use:   "attach",
	Short: "Chat with a running dev console",
	Long: `Connect to a running 'craft serve' and chat from the terminal.

The client reconnects on its own when the server goes away; history and the
input line survive reconnects. Lines starting with / are sent as commands.
Type /quit to leave.

A full-screen UI is used on a terminal; --plain (or piped stdin/stdout)
switches to one line per message.

EXAMPLES:
  craft attach
  craft attach --url http://localhost:4000
  echo "/status" | craft attach --plain`,
	Args: cobra.NoArgs,
	RunE: runAttach,
}

func init() {
	attachCmd.Flags().String("url", "", "Server URL (default from host and port config)")
	attachCmd.Flags().Bool("plain", false, "Line-oriented output without the full-screen UI")
}

// runAttach starts the TUI or plain client.
//
// Parameters:
//   - cmd: The cobra command being executed
//   - args: Command line arguments (unused)
//
// Returns:
//   - error: Config, URL or terminal errors
func runAttach(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		ui.PrintError("%v", err)
		return err
	}

	url, _ := cmd.Flags().GetString("url")
	if url == "" {
		url = cfg.ServerURL()
	}
	plain, _ := cmd.Flags().GetBool("plain")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	opts := client.Options{
		URL:            url,
		ReconnectDelay: cfg.ReconnectDelay,
		Logger:         log.Default(),
	}

	if tui.ShouldRunTUI(plain) {
		// Log lines would tear the alternate screen.
		opts.Logger = log.New(io.Discard)
		return tui.Attach(ctx, opts)
	}
	return tui.AttachPlain(ctx, opts, cmd.InOrStdin(), cmd.OutOrStdout())
}
