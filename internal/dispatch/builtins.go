package dispatch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/whichguy/claude-craft/internal/agentsync"
	"github.com/whichguy/claude-craft/internal/definitions"
	"github.com/whichguy/claude-craft/internal/project"
	"github.com/whichguy/claude-craft/internal/template"
)

// builtinFunc renders the output of a built-in verb.
type builtinFunc func(d *Dispatcher, ctx context.Context, inv Invocation) string

// builtins is matched by exact verb string.
var builtins = map[string]builtinFunc{
	"/help":       (*Dispatcher).help,
	"/status":     (*Dispatcher).status,
	"/commands":   (*Dispatcher).listCommands,
	"/agents":     (*Dispatcher).listAgents,
	"/prompt":     (*Dispatcher).prompt,
	"/agent-sync": (*Dispatcher).agentSync,
}

// Builtins returns the built-in verbs in sorted order.
func Builtins() []string {
	verbs := make([]string, 0, len(builtins))
	for v := range builtins {
		verbs = append(verbs, v)
	}
	sort.Strings(verbs)
	return verbs
}

// IsBuiltin reports whether verb is handled without a resolver lookup.
func IsBuiltin(verb string) bool {
	_, ok := builtins[verb]
	return ok
}

const helpText = `**Claude Craft Help**

Available commands:
- ` + "`/help`" + ` - Show this help message
- ` + "`/status`" + ` - Show project status
- ` + "`/commands`" + ` - List available slash commands
- ` + "`/agents`" + ` - List available agents
- ` + "`/prompt <name> [context...]`" + ` - Render a prompt template
- ` + "`/agent-sync [status|sync]`" + ` - Link the shared toolkit into the user store

Any other ` + "`/name`" + ` runs the command file of that name. Plain text is answered as chat.`

func (d *Dispatcher) help(context.Context, Invocation) string {
	return helpText
}

func (d *Dispatcher) status(context.Context, Invocation) string {
	info := project.Scan(d.projectRoot, d.resolver)

	toolkit := false
	for _, root := range d.resolver.Roots() {
		if root.Tier == definitions.TierShared {
			toolkit = project.Exists(root.Dir)
		}
	}

	var b strings.Builder
	b.WriteString("**Project Status**\n\n")
	fmt.Fprintf(&b, "- **Current Directory**: `%s`\n", info.Root)
	fmt.Fprintf(&b, "- **Git Repository**: %s\n", mark(info.HasGit, "Yes", "No"))
	fmt.Fprintf(&b, "- **Claude Directory**: %s\n", mark(info.HasClaudeDir, "Found", "Not found"))
	fmt.Fprintf(&b, "- **Available Commands**: %d\n", info.Commands)
	fmt.Fprintf(&b, "- **Available Agents**: %d\n", info.Agents)
	fmt.Fprintf(&b, "- **Toolkit Directory**: %s\n", mark(toolkit, "Found", "Not found"))
	b.WriteString("\nReady for development workflow!")
	return b.String()
}

func (d *Dispatcher) listCommands(context.Context, Invocation) string {
	return d.listing(definitions.KindCommand, "Available Commands", "/",
		"No custom commands found. Commands should be in `.claude/commands/` or `~/.claude/commands/`")
}

func (d *Dispatcher) listAgents(context.Context, Invocation) string {
	return d.listing(definitions.KindAgent, "Available Agents", "@",
		"No agents found. Agents should be in `.claude/agents/` or `~/.claude/agents/`")
}

// listing renders every definition of kind grouped by tier, shadowed names included.
func (d *Dispatcher) listing(kind definitions.Kind, title, sigil, empty string) string {
	refs, err := d.resolver.ListAll(kind)
	if err != nil {
		d.logger.Warn("listing incomplete", "kind", kind, "err", err)
	}
	if len(refs) == 0 {
		if err != nil {
			return fmt.Sprintf("%s\n\nSome directories could not be read: %v", empty, err)
		}
		return empty
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%s:**\n\n", title)
	order, groups := definitions.GroupByTier(refs)
	for _, tier := range order {
		fmt.Fprintf(&b, "**%s:**\n", tier)
		for _, ref := range groups[tier] {
			fmt.Fprintf(&b, "- `%s%s`", sigil, ref.Name)
			if desc := definitions.Describe(ref); desc != "" {
				fmt.Fprintf(&b, " - %s", desc)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	if err != nil {
		fmt.Fprintf(&b, "Some directories could not be read: %v\n", err)
	}
	return strings.TrimSpace(b.String())
}

const promptUsage = "Usage: `/prompt <template-name> [context...]`\n\n" +
	"Example: `/prompt api-design Create REST endpoints for user management`"

// prompt renders a template found on the template search list.
func (d *Dispatcher) prompt(_ context.Context, inv Invocation) string {
	if len(inv.Args) == 0 {
		return promptUsage
	}

	name := inv.Args[0]
	rest := inv.Args[1:]

	ref, err := d.templates.Find(name)
	if err != nil {
		if errors.Is(err, definitions.ErrInvalidName) {
			return fmt.Sprintf("Invalid template name '%s'.\n\n%s", name, promptUsage)
		}
		return describeTemplateMiss(name, err)
	}

	def, err := definitions.Load(ref)
	if err != nil {
		return fmt.Sprintf("Failed to read template '%s': %v", ref.Path, err)
	}

	return fmt.Sprintf("**Template: %s**\n\n**Context:** %s\n\n**Template Content:**\n\n%s",
		name, joinedOrNone(rest, "None provided"), template.Render(def.Body, rest))
}

func describeTemplateMiss(name string, err error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Template '%s.md' not found in any of the standard locations:\n", name)

	var lookup *definitions.LookupError
	if errors.As(err, &lookup) {
		for _, path := range lookup.Tried {
			fmt.Fprintf(&b, "- %s\n", filepath.Dir(path))
		}
		for _, cause := range lookup.Causes {
			fmt.Fprintf(&b, "- unreadable: %v\n", cause)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// agentSync handles /agent-sync [status|sync].
func (d *Dispatcher) agentSync(_ context.Context, inv Invocation) string {
	action := "sync"
	if len(inv.Args) > 0 {
		action = inv.Args[0]
	}

	if d.syncer == nil {
		return "Agent-sync is not configured for this server."
	}

	switch action {
	case "status":
		return formatSyncStatus(d.syncer.Status())
	case "sync":
		actions, err := d.syncer.Run()
		if errors.Is(err, agentsync.ErrNoToolkit) {
			return fmt.Sprintf("Toolkit directory not found at %s. Please run the setup first.", d.syncer.ToolkitDir())
		}
		if err != nil {
			d.logger.Error("agent-sync failed", "err", err)
			return fmt.Sprintf("Error running agent-sync: %v", err)
		}
		return formatSyncRun(actions)
	default:
		return fmt.Sprintf("Unknown agent-sync action: %s\n\nAvailable actions: status, sync", action)
	}
}

func formatSyncStatus(st agentsync.Status) string {
	var b strings.Builder
	b.WriteString("**Agent-Sync Status**\n\n")
	fmt.Fprintf(&b, "- **Toolkit Directory**: %s (%s)\n", mark(st.ToolkitExists, "Found", "Not found"), st.ToolkitDir)
	fmt.Fprintf(&b, "- **User Directory**: %s (%s)\n", mark(st.UserExists, "Found", "Not found"), st.UserDir)

	if st.ToolkitExists {
		b.WriteString("\n**Symlinks:**\n")
		for _, l := range st.Links {
			state := mark(l.UserExists, "Active", "Missing")
			if l.UserExists && !l.Linked {
				state += " (not linked to toolkit)"
			}
			fmt.Fprintf(&b, "- %s: %s\n", l.UserPath, state)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatSyncRun(actions []agentsync.Action) string {
	var b strings.Builder
	b.WriteString("Agent-sync completed.\n\n")
	for _, a := range actions {
		fmt.Fprintf(&b, "- %s: %s", a.Name, a.Outcome)
		if a.Reason != "" {
			fmt.Fprintf(&b, " (%s)", a.Reason)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func mark(ok bool, yes, no string) string {
	if ok {
		return "✅ " + yes
	}
	return "❌ " + no
}
