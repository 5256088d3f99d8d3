package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/whichguy/claude-craft/internal/client"
	"github.com/whichguy/claude-craft/internal/config"
	"github.com/whichguy/claude-craft/internal/hub"
	"github.com/whichguy/claude-craft/internal/server"
	"github.com/whichguy/claude-craft/internal/ui"
	"github.com/whichguy/claude-craft/internal/watcher"
)

// serveCmd runs the dev console server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dev console server",
	Long: `Run the dev console: a WebSocket chat at /ws plus a small JSON API.

ENDPOINTS:
  /ws             chat, command and project messages
  /api/status     project scan
  /api/commands   resolved commands with their source store
  /api/agents     resolved agents with their source store
  /health         liveness

Changes under the project, user and shared stores are pushed to every
connected client unless --no-watch is set.

EXAMPLES:
  craft serve
  craft serve --port 4000 --static ./public
  PORT=4000 craft serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("host", "localhost", "Interface to bind")
	serveCmd.Flags().Int("port", 3000, "Port to listen on")
	serveCmd.Flags().Bool("no-watch", false, "Disable file-change notifications")
	serveCmd.Flags().String("static", "", "Directory served at /")
}

// runServe starts the hub, the watcher and the HTTP server and blocks until
// interrupted or one of them fails.
//
// Parameters:
//   - cmd: The cobra command being executed
//   - args: Command line arguments (unused)
//
// Returns:
//   - error: Listen, watcher or config errors
func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, map[string]string{
		config.KeyHost:      "host",
		config.KeyPort:      "port",
		config.KeyStaticDir: "static",
	})
	if err != nil {
		ui.PrintError("%v", err)
		return err
	}
	if noWatch, _ := cmd.Flags().GetBool("no-watch"); noWatch {
		cfg.Watch.Enabled = false
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.Default()
	h := hub.New(logger)
	srv := server.New(h, newDispatcher(cfg), server.Options{
		ProjectRoot: cfg.ProjectRoot,
		StaticDir:   cfg.StaticDir,
		Logger:      logger,
	})

	g, gctx := errgroup.WithContext(ctx)

	var w *watcher.Watcher
	if cfg.Watch.Enabled {
		w, err = watcher.New(watcher.Config{
			Roots:         watchRoots(cfg),
			DebounceDelay: cfg.Watch.Debounce,
			OnEvent:       func(ev watcher.Event) { srv.HandleWatchEvent(gctx, ev) },
			Logger:        logger,
		})
		if err != nil {
			return err
		}
	}

	ui.PrintBanner(version)
	ui.PrintLink("Console", cfg.ServerURL())
	if wsURL, err := client.WebSocketURL(cfg.ServerURL()); err == nil {
		ui.PrintLink("WebSocket", wsURL)
	}
	ui.PrintDim("Project: %s", cfg.ProjectRoot)
	if w == nil {
		ui.PrintDim("File watching disabled")
	}
	ui.Println()

	g.Go(func() error { return h.Run(gctx) })
	if w != nil {
		g.Go(func() error { return w.Start(gctx) })
	}
	g.Go(func() error { return srv.Serve(gctx, cfg.Addr()) })

	if err := g.Wait(); err != nil {
		ui.PrintError("%v", err)
		return err
	}
	return nil
}
