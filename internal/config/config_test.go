package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

// clearEnv blanks variables that would leak into defaults; viper ignores
// empty values.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"HOST", "PORT", "CLAUDE_CRAFT_HOST", "CLAUDE_CRAFT_PORT", "CLAUDE_CRAFT_LOG_LEVEL", "CLAUDE_CRAFT_WATCH_ENABLED"} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	home, work := t.TempDir(), t.TempDir()

	cfg, err := Load(New(home, work), "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Addr() != "localhost:3000" {
		t.Errorf("Addr() = %q, want localhost:3000", cfg.Addr())
	}
	if cfg.ProjectRoot != work {
		t.Errorf("ProjectRoot = %q, want %q", cfg.ProjectRoot, work)
	}
	if cfg.UserDir != filepath.Join(home, ".claude") || cfg.ToolkitDir != filepath.Join(home, "claude-craft") {
		t.Errorf("UserDir, ToolkitDir = %q, %q", cfg.UserDir, cfg.ToolkitDir)
	}
	if cfg.ReconnectDelay != 3*time.Second || !cfg.Watch.Enabled || cfg.Watch.Debounce != 100*time.Millisecond {
		t.Errorf("timing defaults = %s, %v, %s", cfg.ReconnectDelay, cfg.Watch.Enabled, cfg.Watch.Debounce)
	}
	if cfg.File != "" {
		t.Errorf("File = %q, want none", cfg.File)
	}
}

func TestLoad_Precedence(t *testing.T) {
	clearEnv(t)
	home, work := t.TempDir(), t.TempDir()
	path := ProjectFile(work)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	body := "host: 0.0.0.0\nport: 4000\nlog_level: debug\nwatch:\n  debounce: 250ms\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PORT", "5000")
	t.Setenv("CLAUDE_CRAFT_LOG_LEVEL", "warn")

	v := New(home, work)
	flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	flags.String("host", "localhost", "")
	if err := flags.Parse([]string{"--host", "127.0.0.1"}); err != nil {
		t.Fatal(err)
	}
	if err := v.BindPFlag(KeyHost, flags.Lookup("host")); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(v, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"flag beats file", cfg.Host, "127.0.0.1"},
		{"env beats file", cfg.Port, 5000},
		{"prefixed env", cfg.LogLevel, "warn"},
		{"file beats default", cfg.Watch.Debounce, 250 * time.Millisecond},
		{"default kept", cfg.Watch.Enabled, true},
		{"file recorded", cfg.File, path},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestLoad_PrefixedEnvBeatsPlain(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "5000")
	t.Setenv("CLAUDE_CRAFT_PORT", "6000")

	cfg, err := Load(New(t.TempDir(), t.TempDir()), "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 6000 {
		t.Errorf("Port = %d, want 6000", cfg.Port)
	}
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("port: [1, 2"), 0o644); err != nil {
		t.Fatal(err)
	}
	outOfRange := filepath.Join(dir, "range.yaml")
	if err := os.WriteFile(outOfRange, []byte("port: 70000\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	level := filepath.Join(dir, "level.yaml")
	if err := os.WriteFile(level, []byte("log_level: loud\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		file string
		want string
	}{
		{"missing explicit file", filepath.Join(dir, "nope.yaml"), "failed to read config file"},
		{"malformed yaml", bad, "failed to read config file"},
		{"port range", outOfRange, "invalid port 70000"},
		{"log level", level, "invalid log_level"},
	}
	for _, tt := range tests {
		_, err := Load(New(dir, dir), tt.file)
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: Load() error = %v, want %q", tt.name, err, tt.want)
		}
	}
}

func TestWriteFile_RoundTrip(t *testing.T) {
	clearEnv(t)
	home, work := t.TempDir(), t.TempDir()

	cfg, err := Load(New(home, work), "")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Port = 4321
	cfg.Watch.Debounce = time.Second

	path := ProjectFile(work)
	if err := WriteFile(path, cfg, false); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := WriteFile(path, cfg, false); !errors.Is(err, ErrExists) {
		t.Errorf("second WriteFile() error = %v, want ErrExists", err)
	}
	if err := WriteFile(path, cfg, true); err != nil {
		t.Errorf("forced WriteFile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# claude-craft configuration") || !strings.Contains(string(data), "debounce: 1s") {
		t.Errorf("file content:\n%s", data)
	}

	loaded, err := Load(New(home, work), "")
	if err != nil {
		t.Fatalf("Load() after write error = %v", err)
	}
	if loaded.Port != 4321 || loaded.Watch.Debounce != time.Second || loaded.File != path {
		t.Errorf("reloaded = %+v", loaded)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	tests := map[string]string{
		"~":           home,
		"~/x/y":       filepath.Join(home, "x", "y"),
		"/abs/~/path": "/abs/~/path",
		"rel":         "rel",
	}
	for in, want := range tests {
		if got := expandHome(in); got != want {
			t.Errorf("expandHome(%q) = %q, want %q", in, got, want)
		}
	}
}
