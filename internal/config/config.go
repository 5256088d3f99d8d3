// Package config provides configuration loading for the craft CLI.
//
// Settings are layered, lowest precedence first: built-in defaults, the YAML
// file (.claude/craft.yaml in the project, or --config), environment
// variables, then command-line flags bound by the caller.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// DirName is the per-project and per-user Claude directory name.
	DirName = ".claude"

	// FileName is the config file name inside the project's DirName.
	FileName = "craft.yaml"

	// EnvPrefix prefixes every environment override, e.g. CLAUDE_CRAFT_PORT.
	EnvPrefix = "CLAUDE_CRAFT"
)

// Keys.
const (
	KeyHost           = "host"
	KeyPort           = "port"
	KeyProjectRoot    = "project_root"
	KeyUserDir        = "user_dir"
	KeyToolkitDir     = "toolkit_dir"
	KeyStaticDir      = "static_dir"
	KeyReconnectDelay = "reconnect_delay"
	KeyWatchEnabled   = "watch.enabled"
	KeyWatchDebounce  = "watch.debounce"
	KeyLogLevel       = "log_level"
)

// ErrExists is returned by WriteFile when the target exists and force is not set.
var ErrExists = errors.New("config file already exists")

// Config is the effective configuration.
type Config struct {
	// Host is the interface the server binds.
	Host string `yaml:"host" mapstructure:"host"`

	// Port is the server port.
	Port int `yaml:"port" mapstructure:"port"`

	// ProjectRoot is the project directory; its .claude dir is the project tier.
	ProjectRoot string `yaml:"project_root" mapstructure:"project_root"`

	// UserDir is the per-user store (~/.claude).
	UserDir string `yaml:"user_dir" mapstructure:"user_dir"`

	// ToolkitDir is the shared toolkit checkout.
	ToolkitDir string `yaml:"toolkit_dir" mapstructure:"toolkit_dir"`

	// StaticDir, when set, is served at "/".
	StaticDir string `yaml:"static_dir,omitempty" mapstructure:"static_dir"`

	// ReconnectDelay is the client's fixed retry delay.
	ReconnectDelay time.Duration `yaml:"reconnect_delay" mapstructure:"reconnect_delay"`

	// Watch configures file-change notifications.
	Watch WatchConfig `yaml:"watch" mapstructure:"watch"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`

	// File is the config file that was read, empty when none was.
	File string `yaml:"-" mapstructure:"-"`
}

// WatchConfig configures the file watcher.
type WatchConfig struct {
	// Enabled turns file-change broadcasts on.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Debounce coalesces bursts of events on one path.
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce"`
}

// Addr returns host:port.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ServerURL returns the HTTP base URL of a local server.
func (c *Config) ServerURL() string {
	return "http://" + c.Addr()
}

// New creates a viper instance with defaults and environment bindings.
//
// Parameters:
//   - homeDir: The user's home directory
//   - workDir: The working directory, used as the default project root
//
// Returns:
//   - *viper.Viper: A configured instance; flags may be bound before Load
func New(homeDir, workDir string) *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault(KeyHost, "localhost")
	v.SetDefault(KeyPort, 3000)
	v.SetDefault(KeyProjectRoot, workDir)
	v.SetDefault(KeyUserDir, filepath.Join(homeDir, DirName))
	v.SetDefault(KeyToolkitDir, filepath.Join(homeDir, "claude-craft"))
	v.SetDefault(KeyStaticDir, "")
	v.SetDefault(KeyReconnectDelay, 3*time.Second)
	v.SetDefault(KeyWatchEnabled, true)
	v.SetDefault(KeyWatchDebounce, 100*time.Millisecond)
	v.SetDefault(KeyLogLevel, "info")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Plain HOST and PORT are honoured after the prefixed names.
	_ = v.BindEnv(KeyHost, EnvPrefix+"_HOST", "HOST")
	_ = v.BindEnv(KeyPort, EnvPrefix+"_PORT", "PORT")
	return v
}

// ProjectFile returns the project config path for a project root.
func ProjectFile(projectRoot string) string {
	return filepath.Join(projectRoot, DirName, FileName)
}

// Load reads the config file and returns the effective configuration.
//
// Parameters:
//   - v: Instance from New, with any flags already bound
//   - explicitFile: --config value; must exist when set
//
// Returns:
//   - *Config: The effective configuration with absolute paths
//   - error: Read, parse or validation errors
func Load(v *viper.Viper, explicitFile string) (*Config, error) {
	file := explicitFile
	if file == "" {
		candidate := ProjectFile(expandHome(v.GetString(KeyProjectRoot)))
		if _, err := os.Stat(candidate); err == nil {
			file = candidate
		}
	}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	for _, p := range []*string{&cfg.ProjectRoot, &cfg.UserDir, &cfg.ToolkitDir, &cfg.StaticDir} {
		if *p == "" {
			continue
		}
		abs, err := filepath.Abs(expandHome(*p))
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", *p, err)
		}
		*p = abs
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 1-65535", c.Port)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("invalid reconnect_delay %s: must be positive", c.ReconnectDelay)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("invalid watch.debounce %s", c.Watch.Debounce)
	}
	return nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// WriteFile writes cfg to path with a header comment, creating parent
// directories.
//
// Parameters:
//   - path: Destination file
//   - cfg: The configuration to write
//   - force: Overwrite an existing file
//
// Returns:
//   - error: ErrExists, or any write error
func WriteFile(path string, cfg *Config, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
	}

	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	content := "# claude-craft configuration\n# Generated by: craft config init\n\n" + string(data)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
