// Package project inspects the working project for the status and scan views.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/whichguy/claude-craft/internal/definitions"
)

// MaxListedFiles caps the number of root entries returned by Scan.
const MaxListedFiles = 20

// Info is the result of a project scan.
type Info struct {
	// Root is the project directory.
	Root string `json:"root"`

	// HasGit reports whether Root contains a .git entry.
	HasGit bool `json:"hasGit"`

	// HasClaudeDir reports whether Root contains a .claude entry.
	HasClaudeDir bool `json:"hasClaudeDir"`

	// Commands counts command definitions in the project and user tiers.
	Commands int `json:"commands"`

	// Agents counts agent definitions in the project and user tiers.
	Agents int `json:"agents"`

	// Files holds the first MaxListedFiles entry names of Root, in directory order.
	Files []string `json:"files"`
}

// Analysis breaks definition counts down by tier.
type Analysis struct {
	// Root is the project directory.
	Root string `json:"root"`

	// Commands maps tier to command count.
	Commands map[definitions.Tier]int `json:"commands"`

	// Agents maps tier to agent count.
	Agents map[definitions.Tier]int `json:"agents"`

	// ShadowedCommands lists command names defined in more than one tier.
	ShadowedCommands []string `json:"shadowedCommands"`

	// ShadowedAgents lists agent names defined in more than one tier.
	ShadowedAgents []string `json:"shadowedAgents"`

	// Params echoes the caller-supplied parameters.
	Params map[string]any `json:"params,omitempty"`
}

// Scan inspects root and counts definitions visible to the resolver.
//
// Only the project and user tiers are counted; the shared toolkit is reported
// separately by the status view.
//
// Parameters:
//   - root: The project directory
//   - resolver: The layered definition resolver
//
// Returns:
//   - Info: The scan result (Files is empty, never nil, when root is unreadable)
func Scan(root string, resolver *definitions.Resolver) Info {
	info := Info{
		Root:         root,
		HasGit:       Exists(filepath.Join(root, ".git")),
		HasClaudeDir: Exists(filepath.Join(root, ".claude")),
		Commands:     resolver.Count(definitions.KindCommand, definitions.TierProject, definitions.TierUser),
		Agents:       resolver.Count(definitions.KindAgent, definitions.TierProject, definitions.TierUser),
		Files:        []string{},
	}

	f, err := os.Open(root)
	if err != nil {
		return info
	}
	defer f.Close()

	names, _ := f.Readdirnames(MaxListedFiles)
	info.Files = append(info.Files, names...)
	return info
}

// Analyze computes per-tier counts and shadowed names.
//
// Parameters:
//   - root: The project directory
//   - resolver: The layered definition resolver
//   - params: Opaque caller parameters echoed into the result
//
// Returns:
//   - Analysis: The breakdown
//   - error: Joined directory read failures, if any
func Analyze(root string, resolver *definitions.Resolver, params map[string]any) (Analysis, error) {
	a := Analysis{
		Root:     root,
		Commands: make(map[definitions.Tier]int),
		Agents:   make(map[definitions.Tier]int),
		Params:   params,
	}

	commands, cerr := resolver.ListAll(definitions.KindCommand)
	agents, aerr := resolver.ListAll(definitions.KindAgent)

	for _, ref := range commands {
		a.Commands[ref.Tier]++
	}
	for _, ref := range agents {
		a.Agents[ref.Tier]++
	}
	a.ShadowedCommands = orEmpty(definitions.Shadowed(commands))
	a.ShadowedAgents = orEmpty(definitions.Shadowed(agents))

	if err := errors.Join(cerr, aerr); err != nil {
		return a, fmt.Errorf("analyze %s: %w", root, err)
	}
	return a, nil
}

// Exists reports whether path can be stat'ed.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
