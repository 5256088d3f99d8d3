package ui

import (
	"bytes"
	"strings"
	"testing"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(nil)
		SetQuietMode(false)
	})
	return &buf
}

func TestTable_String(t *testing.T) {
	table := NewTable("NAME", "SOURCE")
	table.AddRow("deploy", "project")
	table.AddRow("a-very-long-command-name", "shared")
	table.SetMaxWidth(0, 10)

	lines := strings.Split(strings.TrimRight(table.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("String() has %d lines, want 4:\n%s", len(lines), table.String())
	}
	if !strings.HasPrefix(lines[0], "NAME") || !strings.Contains(lines[0], "SOURCE") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[3], "a-very-...") {
		t.Errorf("row = %q, want truncated name", lines[3])
	}
}

func TestQuietMode(t *testing.T) {
	buf := capture(t)
	SetQuietMode(true)

	PrintInfo("hidden")
	PrintSuccess("hidden")
	PrintError("shown %d", 1)
	PrintPlain("output")

	got := buf.String()
	if strings.Contains(got, "hidden") {
		t.Errorf("quiet output contains info lines: %q", got)
	}
	if !strings.Contains(got, "shown 1") || !strings.Contains(got, "output") {
		t.Errorf("quiet output = %q, want errors and plain output", got)
	}
}

func TestPromptConfirm(t *testing.T) {
	tests := []struct {
		input      string
		defaultYes bool
		want       bool
	}{
		{"\n", true, true},
		{"\n", false, false},
		{"y\n", false, true},
		{"YES\n", false, true},
		{"no\n", true, false},
		{"y", false, true},
	}
	for _, tt := range tests {
		capture(t)
		SetInput(strings.NewReader(tt.input))
		got, err := PromptConfirm("Overwrite?", tt.defaultYes)
		if err != nil {
			t.Fatalf("PromptConfirm(%q) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("PromptConfirm(%q, %v) = %v, want %v", tt.input, tt.defaultYes, got, tt.want)
		}
	}
}
