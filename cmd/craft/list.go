package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/whichguy/claude-craft/internal/definitions"
	"github.com/whichguy/claude-craft/internal/ui"
)

// listEntry is one row of a commands or agents listing.
type listEntry struct {
	Name        string `json:"name"`
	Source      string `json:"source"`
	Path        string `json:"path"`
	Description string `json:"description,omitempty"`
	Shadowed    bool   `json:"shadowed"`
}

var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "List slash commands across all stores",
	Long: `List every command file in the project, user and shared stores.

Entries hidden by a same-named command in a higher-precedence store are
marked as shadowed.

EXAMPLES:
  craft commands
  craft commands --source project
  craft commands --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList(cmd, definitions.KindCommand)
	},
}

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List agents across all stores",
	Long: `List every agent file (.md or .json) in the project, user and shared stores.

EXAMPLES:
  craft agents
  craft agents --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList(cmd, definitions.KindAgent)
	},
}

func init() {
	for _, c := range []*cobra.Command{commandsCmd, agentsCmd} {
		c.Flags().Bool("json", false, "Output as JSON")
		c.Flags().String("source", "", "Only show one store: project, user or shared")
	}
}

// runList prints the definitions of one kind.
//
// Parameters:
//   - cmd: The cobra command being executed
//   - kind: Commands or agents
//
// Returns:
//   - error: Config errors or an invalid --source
func runList(cmd *cobra.Command, kind definitions.Kind) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		ui.PrintError("%v", err)
		return err
	}

	source, _ := cmd.Flags().GetString("source")
	switch definitions.Tier(source) {
	case "", definitions.TierProject, definitions.TierUser, definitions.TierShared:
	default:
		return fmt.Errorf("unknown source %q: want project, user or shared", source)
	}

	resolver := definitions.NewLayeredResolver(cfg.ProjectRoot, cfg.UserDir, cfg.ToolkitDir)
	refs, listErr := resolver.ListAll(kind)
	entries := listEntries(refs, definitions.Tier(source))

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		key := kind.Dir()
		data, err := json.MarshalIndent(map[string][]listEntry{key: entries}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode listing: %w", err)
		}
		ui.PrintPlain(string(data))
		return nil
	}

	if listErr != nil {
		ui.PrintWarning("Some stores could not be read: %v", listErr)
	}
	if len(entries) == 0 {
		ui.PrintInfo("No %s found. Searched:", kind.Dir())
		for _, dir := range resolver.SearchDirs(kind) {
			ui.PrintDim("  %s", dir)
		}
		return nil
	}

	prefix := "/"
	if kind == definitions.KindAgent {
		prefix = "@"
	}
	table := ui.NewTable("NAME", "SOURCE", "DESCRIPTION")
	table.SetMaxWidth(2, 60)
	for _, e := range entries {
		name := prefix + e.Name
		if e.Shadowed {
			name += " (shadowed)"
		}
		table.AddRow(name, e.Source, e.Description)
	}
	table.Render()
	return nil
}

// listEntries converts refs in precedence order into rows, keeping only
// source when it is set. A ref is shadowed when an earlier ref shares its name.
func listEntries(refs []definitions.Ref, source definitions.Tier) []listEntry {
	entries := []listEntry{}
	seen := make(map[string]bool)
	for _, ref := range refs {
		shadowed := seen[ref.Name]
		seen[ref.Name] = true
		if source != "" && ref.Tier != source {
			continue
		}
		entries = append(entries, listEntry{
			Name:        ref.Name,
			Source:      string(ref.Tier),
			Path:        ref.Path,
			Description: definitions.Describe(ref),
			Shadowed:    shadowed,
		})
	}
	return entries
}
