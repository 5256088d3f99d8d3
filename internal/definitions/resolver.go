// Package definitions resolves command, agent and prompt-template definition files
// across the layered project, user and shared-toolkit stores.
//
// Lookups are never cached: every call rescans the directories, so edits on disk
// are picked up without a restart.
package definitions

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Kind identifies what sort of definition is being looked up.
type Kind string

const (
	// KindCommand is a slash command stored under commands/ as <name>.md.
	KindCommand Kind = "command"

	// KindAgent is an agent stored under agents/ as <name>.md or <name>.json.
	KindAgent Kind = "agent"

	// KindTemplate is a prompt template looked up by TemplatePaths.
	KindTemplate Kind = "template"
)

// Dir returns the per-tier subdirectory holding definitions of this kind.
func (k Kind) Dir() string {
	switch k {
	case KindCommand:
		return "commands"
	case KindAgent:
		return "agents"
	default:
		return ""
	}
}

// Extensions returns the accepted file extensions for this kind, in tie-break order.
func (k Kind) Extensions() []string {
	switch k {
	case KindAgent:
		return []string{".json", ".md"}
	default:
		return []string{".md"}
	}
}

// accepts reports whether ext is one of the kind's extensions.
func (k Kind) accepts(ext string) bool {
	for _, e := range k.Extensions() {
		if e == ext {
			return true
		}
	}
	return false
}

// Tier is a precedence level. Lower-numbered tiers shadow higher ones.
type Tier string

const (
	// TierProject is the project-local store (<project>/.claude).
	TierProject Tier = "project"

	// TierUser is the per-user store (~/.claude).
	TierUser Tier = "user"

	// TierShared is the shared toolkit checkout (~/claude-craft).
	TierShared Tier = "shared"
)

// Root is one store directory searched at a given tier.
type Root struct {
	// Tier is the provenance assigned to hits in this root.
	Tier Tier

	// Dir is the store directory; kind subdirectories live directly beneath it.
	Dir string
}

// Ref identifies a resolved definition file. Identity is Name plus Tier.
type Ref struct {
	// Name is the logical name (base name without extension).
	Name string `json:"name"`

	// Tier is the first tier, in precedence order, that held a match.
	Tier Tier `json:"source"`

	// Path is the absolute path of the definition file.
	Path string `json:"path"`
}

// ErrNotFound is matched by every LookupError.
var ErrNotFound = errors.New("definition not found")

// ErrInvalidName is returned for empty names and names containing path elements.
var ErrInvalidName = errors.New("invalid definition name")

// LookupError describes a resolution miss, including every location that was tried.
type LookupError struct {
	// Kind is the kind that was looked up.
	Kind Kind

	// Name is the requested logical name.
	Name string

	// Tried lists searched locations in precedence order.
	Tried []string

	// Causes holds I/O failures other than a missing directory or file.
	Causes []error
}

// Error implements error.
func (e *LookupError) Error() string {
	msg := fmt.Sprintf("%s %q not found in %d locations", e.Kind, e.Name, len(e.Tried))
	if len(e.Causes) > 0 {
		msg += fmt.Sprintf(" (%d unreadable)", len(e.Causes))
	}
	return msg
}

// Is makes errors.Is(err, ErrNotFound) true for lookup misses.
func (e *LookupError) Is(target error) bool {
	return target == ErrNotFound
}

// Unwrap exposes the underlying I/O failures.
func (e *LookupError) Unwrap() []error {
	return e.Causes
}

// Resolver looks up definitions across an ordered list of roots.
type Resolver struct {
	roots []Root
}

// NewResolver creates a resolver that searches roots in the given order.
//
// Parameters:
//   - roots: Store directories, highest precedence first
//
// Returns:
//   - *Resolver: A new resolver
func NewResolver(roots ...Root) *Resolver {
	cp := make([]Root, len(roots))
	copy(cp, roots)
	return &Resolver{roots: cp}
}

// NewLayeredResolver creates the standard three-tier resolver.
//
// Parameters:
//   - projectRoot: The project directory; its .claude directory is the project tier
//   - userDir: The per-user store (usually ~/.claude)
//   - toolkitDir: The shared toolkit checkout (usually ~/claude-craft)
//
// Returns:
//   - *Resolver: A resolver searching project, user, then shared
func NewLayeredResolver(projectRoot, userDir, toolkitDir string) *Resolver {
	return NewResolver(
		Root{Tier: TierProject, Dir: filepath.Join(projectRoot, ".claude")},
		Root{Tier: TierUser, Dir: userDir},
		Root{Tier: TierShared, Dir: toolkitDir},
	)
}

// Roots returns a copy of the configured roots in precedence order.
func (r *Resolver) Roots() []Root {
	cp := make([]Root, len(r.roots))
	copy(cp, r.roots)
	return cp
}

// SearchDirs returns the kind directory of every root, in precedence order.
func (r *Resolver) SearchDirs(kind Kind) []string {
	dirs := make([]string, 0, len(r.roots))
	for _, root := range r.roots {
		dirs = append(dirs, filepath.Join(root.Dir, kind.Dir()))
	}
	return dirs
}

// Resolve returns the first definition named name, scanning tiers in order and
// stopping at the first hit.
//
// A tier whose directory does not exist is skipped. Within a tier, directory
// entries are visited in lexicographic file-name order, so when one tier holds
// both name.json and name.md for an agent, name.json is returned.
//
// Parameters:
//   - kind: KindCommand or KindAgent
//   - name: Logical name with no path separators or extension
//
// Returns:
//   - Ref: The resolved definition
//   - error: ErrInvalidName, or a *LookupError matching ErrNotFound on a miss
func (r *Resolver) Resolve(kind Kind, name string) (Ref, error) {
	if err := ValidateName(name); err != nil {
		return Ref{}, err
	}

	miss := &LookupError{Kind: kind, Name: name}
	for _, root := range r.roots {
		dir := filepath.Join(root.Dir, kind.Dir())
		miss.Tried = append(miss.Tried, dir)

		entries, err := os.ReadDir(dir)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				miss.Causes = append(miss.Causes, fmt.Errorf("read %s: %w", dir, err))
			}
			continue
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			file := entry.Name()
			ext := filepath.Ext(file)
			if !kind.accepts(ext) || strings.TrimSuffix(file, ext) != name {
				continue
			}
			return Ref{Name: name, Tier: root.Tier, Path: filepath.Join(dir, file)}, nil
		}
	}

	return Ref{}, miss
}

// ListAll returns every definition of kind across all tiers without
// short-circuiting, so names shadowed by a higher tier are included.
//
// Refs are ordered by tier precedence, then by file name within a tier. A
// tier contributes at most one ref per name: the file Resolve would pick
// (x.json over x.md for agents).
// Unreadable directories are skipped and reported in the joined error; the
// returned refs are still valid in that case.
//
// Parameters:
//   - kind: KindCommand or KindAgent
//
// Returns:
//   - []Ref: All definitions found
//   - error: Joined read failures other than missing directories, or nil
func (r *Resolver) ListAll(kind Kind) ([]Ref, error) {
	var refs []Ref
	var errs []error

	for _, root := range r.roots {
		dir := filepath.Join(root.Dir, kind.Dir())
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, fmt.Errorf("read %s: %w", dir, err))
			}
			continue
		}

		seen := make(map[string]bool)
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			file := entry.Name()
			ext := filepath.Ext(file)
			if !kind.accepts(ext) {
				continue
			}
			name := strings.TrimSuffix(file, ext)
			if seen[name] {
				continue
			}
			seen[name] = true
			refs = append(refs, Ref{
				Name: name,
				Tier: root.Tier,
				Path: filepath.Join(dir, file),
			})
		}
	}

	return refs, errors.Join(errs...)
}

// Count returns the number of definitions of kind in the given tiers.
// Missing and unreadable directories count as empty.
func (r *Resolver) Count(kind Kind, tiers ...Tier) int {
	want := make(map[Tier]bool, len(tiers))
	for _, t := range tiers {
		want[t] = true
	}

	refs, _ := r.ListAll(kind)
	n := 0
	for _, ref := range refs {
		if len(tiers) == 0 || want[ref.Tier] {
			n++
		}
	}
	return n
}

// GroupByTier groups refs by tier, preserving the input order inside each group.
// The returned tier slice lists tiers in order of first appearance.
func GroupByTier(refs []Ref) ([]Tier, map[Tier][]Ref) {
	var order []Tier
	groups := make(map[Tier][]Ref)
	for _, ref := range refs {
		if _, ok := groups[ref.Tier]; !ok {
			order = append(order, ref.Tier)
		}
		groups[ref.Tier] = append(groups[ref.Tier], ref)
	}
	return order, groups
}

// Shadowed returns logical names that appear in more than one tier, in order of
// first appearance.
func Shadowed(refs []Ref) []string {
	tiers := make(map[string]map[Tier]bool)
	var order []string
	for _, ref := range refs {
		if tiers[ref.Name] == nil {
			tiers[ref.Name] = make(map[Tier]bool)
			order = append(order, ref.Name)
		}
		tiers[ref.Name][ref.Tier] = true
	}

	var out []string
	for _, name := range order {
		if len(tiers[name]) > 1 {
			out = append(out, name)
		}
	}
	return out
}

// ValidateName rejects names that could escape a store directory.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// TemplatePaths is the ordered directory list searched by the prompt-template
// lookup. Templates are not tiered, so hits carry no Tier.
type TemplatePaths struct {
	// Dirs are searched in order; the first <dir>/<name>.md that exists wins.
	Dirs []string
}

// DefaultTemplatePaths returns the standard template search list:
// the working directory, its prompts/ subdirectory, the user store's prompts/
// subdirectory and ~/prompts.
//
// Parameters:
//   - workDir: The current working directory
//   - userDir: The per-user store (usually ~/.claude)
//   - homeDir: The user's home directory
//
// Returns:
//   - TemplatePaths: The search list
func DefaultTemplatePaths(workDir, userDir, homeDir string) TemplatePaths {
	return TemplatePaths{Dirs: []string{
		workDir,
		filepath.Join(workDir, "prompts"),
		filepath.Join(userDir, "prompts"),
		filepath.Join(homeDir, "prompts"),
	}}
}

// Find returns the first existing <dir>/<name>.md in search order.
//
// Parameters:
//   - name: Template name without extension
//
// Returns:
//   - Ref: The template file (Tier is empty)
//   - error: ErrInvalidName, or a *LookupError matching ErrNotFound
func (p TemplatePaths) Find(name string) (Ref, error) {
	if err := ValidateName(name); err != nil {
		return Ref{}, err
	}

	miss := &LookupError{Kind: KindTemplate, Name: name}
	for _, dir := range p.Dirs {
		path := filepath.Join(dir, name+".md")
		miss.Tried = append(miss.Tried, path)

		info, err := os.Stat(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				miss.Causes = append(miss.Causes, fmt.Errorf("stat %s: %w", path, err))
			}
			continue
		}
		if info.IsDir() {
			continue
		}
		return Ref{Name: name, Path: path}, nil
	}

	return Ref{}, miss
}
