package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/whichguy/claude-craft/internal/agentsync"
	"github.com/whichguy/claude-craft/internal/config"
	"github.com/whichguy/claude-craft/internal/definitions"
	"github.com/whichguy/claude-craft/internal/project"
	"github.com/whichguy/claude-craft/internal/ui"
)

// Check statuses.
const (
	statusOK      = "ok"
	statusWarning = "warning"
	statusError   = "error"
)

// DoctorCheck represents a single diagnostic check result.
type DoctorCheck struct {
	// Name is the check name (e.g., "Project store", "Port").
	Name string `json:"name"`

	// Status is the check status: "ok", "warning", "error".
	Status string `json:"status"`

	// Message is the human-readable result message.
	Message string `json:"message"`

	// Details contains additional information (optional).
	Details string `json:"details,omitempty"`
}

// DoctorResult contains all diagnostic check results.
type DoctorResult struct {
	// Checks contains all individual check results.
	Checks []DoctorCheck `json:"checks"`

	// Issues is the count of checks with status "error" or "warning".
	Issues int `json:"issues"`

	// Healthy is true if no errors were found.
	Healthy bool `json:"healthy"`
}

// add records a check and updates the totals.
func (r *DoctorResult) add(check DoctorCheck) {
	r.Checks = append(r.Checks, check)
	switch check.Status {
	case statusError:
		r.Healthy = false
		r.Issues++
	case statusWarning:
		r.Issues++
	}
}

// doctorCmd runs diagnostic checks on the local setup.
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check stores, config and port",
	Long: `Run diagnostic checks on the local setup.

CHECKS PERFORMED:
  - Configuration (file found and valid?)
  - Project store (<project>/.claude present? how many commands and agents?)
  - User store (~/.claude present?)
  - Shared toolkit (~/claude-craft present?)
  - Agent sync (user store entries linked to the toolkit?)
  - Port (free, already serving craft, or taken?)

EXAMPLES:
  craft doctor
  craft doctor --json`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().Bool("json", false, "Output results as JSON")
	doctorCmd.Flags().String("host", "localhost", "Interface to check")
	doctorCmd.Flags().Int("port", 3000, "Port to check")
}

// runDoctor executes all diagnostic checks.
//
// Parameters:
//   - cmd: The cobra command being executed
//   - args: Command line arguments (unused)
//
// Returns:
//   - error: Non-nil when any check failed
func runDoctor(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	result := DoctorResult{Checks: make([]DoctorCheck, 0), Healthy: true}

	if !jsonOutput {
		ui.PrintBanner(version)
		ui.PrintInfo("Running diagnostic checks...")
		ui.Println()
	}

	cfg, err := loadConfig(cmd, map[string]string{config.KeyHost: "host", config.KeyPort: "port"})
	if err != nil {
		result.add(DoctorCheck{Name: "Configuration", Status: statusError, Message: "Invalid configuration", Details: err.Error()})
	} else {
		result.add(checkConfig(cfg))
		result.add(checkProjectStore(cfg))
		result.add(checkDir("User store", cfg.UserDir, "User-level commands and agents are unavailable"))
		result.add(checkDir("Shared toolkit", cfg.ToolkitDir, "Shared commands and /agent-sync are unavailable"))
		result.add(checkAgentSync(agentsync.New(cfg.UserDir, cfg.ToolkitDir)))
		result.add(checkPort(cmd.Context(), cfg))
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(result, "", "  ")
		ui.PrintPlain(string(data))
	} else {
		printDoctorResults(result)
	}

	if !result.Healthy {
		return fmt.Errorf("health check failed")
	}
	return nil
}

func checkConfig(cfg *config.Config) DoctorCheck {
	check := DoctorCheck{Name: "Configuration", Status: statusOK}
	if cfg.File == "" {
		check.Message = "Defaults (no config file)"
		check.Details = "Run 'craft config init' to write " + config.ProjectFile(cfg.ProjectRoot)
		return check
	}
	check.Message = cfg.File
	return check
}

// checkProjectStore reports the project tier and its definition counts.
func checkProjectStore(cfg *config.Config) DoctorCheck {
	check := DoctorCheck{Name: "Project store"}
	dir := filepath.Join(cfg.ProjectRoot, config.DirName)
	if !project.Exists(dir) {
		check.Status = statusWarning
		check.Message = "No " + config.DirName + " directory"
		check.Details = "Project commands go in " + filepath.Join(dir, "commands")
		return check
	}

	resolver := definitions.NewLayeredResolver(cfg.ProjectRoot, cfg.UserDir, cfg.ToolkitDir)
	check.Status = statusOK
	check.Message = fmt.Sprintf("%d commands, %d agents",
		resolver.Count(definitions.KindCommand, definitions.TierProject),
		resolver.Count(definitions.KindAgent, definitions.TierProject))
	check.Details = dir
	return check
}

func checkDir(name, dir, missing string) DoctorCheck {
	if project.Exists(dir) {
		return DoctorCheck{Name: name, Status: statusOK, Message: dir}
	}
	return DoctorCheck{Name: name, Status: statusWarning, Message: "Not found: " + dir, Details: missing}
}

// checkAgentSync warns when the toolkit has entries the user store lacks.
func checkAgentSync(s *agentsync.Syncer) DoctorCheck {
	check := DoctorCheck{Name: "Agent sync", Status: statusOK}
	st := s.Status()
	if !st.ToolkitExists {
		check.Message = "Skipped (no toolkit)"
		return check
	}

	var linked, missing []string
	for _, l := range st.Links {
		switch {
		case l.Linked:
			linked = append(linked, l.Name)
		case l.ToolkitExists && !l.UserExists:
			missing = append(missing, l.Name)
		}
	}
	if len(missing) > 0 {
		check.Status = statusWarning
		check.Message = "Not linked: " + strings.Join(missing, ", ")
		check.Details = "Run 'craft run /agent-sync' to link them"
		return check
	}
	if len(linked) == 0 {
		check.Message = "Nothing linked; user store entries are local"
		return check
	}
	check.Message = "Linked: " + strings.Join(linked, ", ")
	return check
}

// checkPort reports whether the configured address is free. A taken port
// that answers /health is reported as a running console.
func checkPort(ctx context.Context, cfg *config.Config) DoctorCheck {
	check := DoctorCheck{Name: "Port", Status: statusOK}
	ln, err := net.Listen("tcp", cfg.Addr())
	if err == nil {
		ln.Close()
		check.Message = cfg.Addr() + " is free"
		return check
	}

	if serverRunning(ctx, cfg.ServerURL()+"/health") {
		check.Message = "craft is already serving " + cfg.ServerURL()
		return check
	}
	check.Status = statusError
	check.Message = cfg.Addr() + " is in use"
	check.Details = "Pick another port with --port or " + config.EnvPrefix + "_PORT"
	return check
}

func serverRunning(ctx context.Context, url string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// printDoctorResults prints the diagnostic results in human-readable format.
func printDoctorResults(result DoctorResult) {
	for _, check := range result.Checks {
		var icon string
		switch check.Status {
		case statusOK:
			icon = ui.SuccessStyle.Render("✓")
		case statusWarning:
			icon = ui.WarningStyle.Render("⚠")
		case statusError:
			icon = ui.ErrorStyle.Render("✗")
		}

		ui.PrintPlain(fmt.Sprintf("  %s %-16s %s", icon, check.Name+":", check.Message))
		if check.Details != "" {
			ui.PrintPlain("    " + ui.DimStyle.Render(check.Details))
		}
	}

	ui.Println()

	if result.Issues > 0 {
		ui.PrintWarning("%d issue(s) found", result.Issues)
	} else {
		ui.PrintSuccess("All checks passed")
	}
}
