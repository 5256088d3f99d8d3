// Package agentsync links the shared toolkit's definition directories into the
// per-user store.
package agentsync

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Entries are the toolkit directories linked into the user store.
var Entries = []string{"commands", "agents", "hooks"}

// ErrNoToolkit is returned by Run when the toolkit directory is missing.
var ErrNoToolkit = errors.New("toolkit directory not found")

// LinkStatus describes one toolkit entry.
type LinkStatus struct {
	// Name is the entry name (commands, agents or hooks).
	Name string `json:"name"`

	// UserPath is the location inside the user store.
	UserPath string `json:"userPath"`

	// ToolkitPath is the location inside the toolkit.
	ToolkitPath string `json:"toolkitPath"`

	// UserExists reports whether UserPath exists (following symlinks).
	UserExists bool `json:"userExists"`

	// ToolkitExists reports whether ToolkitPath exists.
	ToolkitExists bool `json:"toolkitExists"`

	// Linked reports whether UserPath is a symlink resolving to ToolkitPath.
	Linked bool `json:"linked"`
}

// Status is the sync state of the user store against the toolkit.
type Status struct {
	UserDir       string       `json:"userDir"`
	ToolkitDir    string       `json:"toolkitDir"`
	UserExists    bool         `json:"userExists"`
	ToolkitExists bool         `json:"toolkitExists"`
	Links         []LinkStatus `json:"links"`
}

// Action records what Run did for one entry.
type Action struct {
	// Name is the entry name.
	Name string `json:"name"`

	// Outcome is one of "linked", "kept" or "skipped".
	Outcome string `json:"outcome"`

	// Reason explains kept and skipped outcomes.
	Reason string `json:"reason,omitempty"`
}

// Syncer links toolkit entries into the user store.
type Syncer struct {
	userDir    string
	toolkitDir string
}

// New creates a syncer.
//
// Parameters:
//   - userDir: The per-user store (usually ~/.claude)
//   - toolkitDir: The shared toolkit checkout (usually ~/claude-craft)
//
// Returns:
//   - *Syncer: A new syncer
func New(userDir, toolkitDir string) *Syncer {
	return &Syncer{userDir: userDir, toolkitDir: toolkitDir}
}

// UserDir returns the user store path.
func (s *Syncer) UserDir() string { return s.userDir }

// ToolkitDir returns the toolkit path.
func (s *Syncer) ToolkitDir() string { return s.toolkitDir }

// Status reports the current link state. It never modifies the filesystem.
func (s *Syncer) Status() Status {
	st := Status{
		UserDir:       s.userDir,
		ToolkitDir:    s.toolkitDir,
		UserExists:    exists(s.userDir),
		ToolkitExists: exists(s.toolkitDir),
	}

	for _, name := range Entries {
		ls := LinkStatus{
			Name:        name,
			UserPath:    filepath.Join(s.userDir, name),
			ToolkitPath: filepath.Join(s.toolkitDir, name),
		}
		ls.UserExists = exists(ls.UserPath)
		ls.ToolkitExists = exists(ls.ToolkitPath)
		ls.Linked = pointsTo(ls.UserPath, ls.ToolkitPath)
		st.Links = append(st.Links, ls)
	}
	return st
}

// Run creates missing user-store symlinks to toolkit entries.
//
// An entry is linked only when the toolkit has it and the user store does not.
// Existing user entries are never replaced.
//
// Returns:
//   - []Action: One action per entry, in Entries order
//   - error: ErrNoToolkit, or a wrapped filesystem error
func (s *Syncer) Run() ([]Action, error) {
	if !exists(s.toolkitDir) {
		return nil, fmt.Errorf("%w: %s", ErrNoToolkit, s.toolkitDir)
	}
	if err := os.MkdirAll(s.userDir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", s.userDir, err)
	}

	actions := make([]Action, 0, len(Entries))
	for _, name := range Entries {
		src := filepath.Join(s.toolkitDir, name)
		dst := filepath.Join(s.userDir, name)

		switch {
		case !exists(src):
			actions = append(actions, Action{Name: name, Outcome: "skipped", Reason: "not in toolkit"})
		case pointsTo(dst, src):
			actions = append(actions, Action{Name: name, Outcome: "kept", Reason: "already linked"})
		case lexists(dst):
			actions = append(actions, Action{Name: name, Outcome: "kept", Reason: "user entry exists"})
		default:
			if err := os.Symlink(src, dst); err != nil {
				return actions, fmt.Errorf("link %s: %w", dst, err)
			}
			actions = append(actions, Action{Name: name, Outcome: "linked"})
		}
	}
	return actions, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func lexists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// pointsTo reports whether link is a symlink whose target is target.
func pointsTo(link, target string) bool {
	dest, err := os.Readlink(link)
	if err != nil {
		return false
	}
	if !filepath.IsAbs(dest) {
		dest = filepath.Join(filepath.Dir(link), dest)
	}
	return filepath.Clean(dest) == filepath.Clean(target)
}
