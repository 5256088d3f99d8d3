package project

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/whichguy/claude-craft/internal/definitions"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestScan(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "proj")
	user := filepath.Join(base, "user")
	shared := filepath.Join(base, "shared")

	touch(t, filepath.Join(root, ".git", "HEAD"))
	touch(t, filepath.Join(root, ".claude", "commands", "deploy.md"))
	touch(t, filepath.Join(root, ".claude", "agents", "a.json"))
	touch(t, filepath.Join(user, "commands", "lint.md"))
	touch(t, filepath.Join(user, "agents", "b.md"))
	touch(t, filepath.Join(shared, "commands", "only-shared.md"))
	for i := 0; i < 30; i++ {
		touch(t, filepath.Join(root, fmt.Sprintf("file%02d.txt", i)))
	}

	r := definitions.NewLayeredResolver(root, user, shared)
	info := Scan(root, r)

	if !info.HasGit || !info.HasClaudeDir {
		t.Errorf("Scan() HasGit=%v HasClaudeDir=%v, want both true", info.HasGit, info.HasClaudeDir)
	}
	if info.Commands != 2 {
		t.Errorf("Scan().Commands = %d, want 2 (shared tier excluded)", info.Commands)
	}
	if info.Agents != 2 {
		t.Errorf("Scan().Agents = %d, want 2", info.Agents)
	}
	if len(info.Files) != MaxListedFiles {
		t.Errorf("len(Scan().Files) = %d, want %d", len(info.Files), MaxListedFiles)
	}
}

func TestScan_MissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "gone")
	info := Scan(root, definitions.NewLayeredResolver(root, root, root))
	if info.HasGit || info.HasClaudeDir || info.Commands != 0 {
		t.Errorf("Scan() = %+v, want empty", info)
	}
	if info.Files == nil {
		t.Error("Scan().Files = nil, want empty slice")
	}
}

func TestAnalyze(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "proj")
	user := filepath.Join(base, "user")
	shared := filepath.Join(base, "shared")

	touch(t, filepath.Join(root, ".claude", "commands", "deploy.md"))
	touch(t, filepath.Join(shared, "commands", "deploy.md"))
	touch(t, filepath.Join(shared, "commands", "review.md"))
	touch(t, filepath.Join(user, "agents", "helper.md"))

	a, err := Analyze(root, definitions.NewLayeredResolver(root, user, shared), map[string]any{"depth": 1})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	wantCommands := map[definitions.Tier]int{definitions.TierProject: 1, definitions.TierShared: 2}
	if diff := cmp.Diff(wantCommands, a.Commands); diff != "" {
		t.Errorf("Analyze().Commands mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"deploy"}, a.ShadowedCommands); diff != "" {
		t.Errorf("Analyze().ShadowedCommands mismatch (-want +got):\n%s", diff)
	}
	if len(a.ShadowedAgents) != 0 {
		t.Errorf("Analyze().ShadowedAgents = %v, want none", a.ShadowedAgents)
	}
	if a.Params["depth"] != 1 {
		t.Errorf("Analyze().Params = %v, want echoed params", a.Params)
	}
}
