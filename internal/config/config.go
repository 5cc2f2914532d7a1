// Package config loads td's settings from the YAML config file, TD_*
// environment variables and command-line overrides, in increasing order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/mschirtzinger/td/internal/conflict"
	"github.com/mschirtzinger/td/internal/vcs"
)

// AppName names the config, data and state directories.
const AppName = "td"

// EnvPrefix prefixes environment overrides: TD_GIT_REMOTE, TD_SYNC_AUTO...
const EnvPrefix = "TD"

// Config keys.
const (
	KeyDataDir            = "data-dir"
	KeyStoreFile          = "store-file"
	KeyGitRemote          = "git.remote"
	KeyGitAuthorName      = "git.author-name"
	KeyGitAuthorEmail     = "git.author-email"
	KeySyncAuto           = "sync.auto"
	KeySyncNetworkTimeout = "sync.network-timeout"
	KeySyncLockTimeout    = "sync.lock-timeout"
	KeyConflictStrategy   = "conflict.strategy"
	KeyConflictMaxPrompts = "conflict.max-prompts"
	KeyLogFile            = "log.file"
	KeyLogLevel           = "log.level"
)

// Config is the effective configuration.
type Config struct {
	DataDir   string         `mapstructure:"data-dir" yaml:"data-dir"`
	StoreFile string         `mapstructure:"store-file" yaml:"store-file"`
	Git       GitConfig      `mapstructure:"git" yaml:"git"`
	Sync      SyncConfig     `mapstructure:"sync" yaml:"sync"`
	Conflict  ConflictConfig `mapstructure:"conflict" yaml:"conflict"`
	Log       LogConfig      `mapstructure:"log" yaml:"log"`

	// Path is the config file that was read, "" if there was none.
	Path string `mapstructure:"-" yaml:"-"`

	// Warnings lists settings that were ignored.
	Warnings []string `mapstructure:"-" yaml:"-"`
}

// GitConfig holds the repository binding settings.
type GitConfig struct {
	// Remote is the origin URL used by "td init" when none is given
	Remote      string `mapstructure:"remote" yaml:"remote"`
	AuthorName  string `mapstructure:"author-name" yaml:"author-name"`
	AuthorEmail string `mapstructure:"author-email" yaml:"author-email"`
}

// SyncConfig holds the sync orchestrator settings.
type SyncConfig struct {
	Auto           bool          `mapstructure:"auto" yaml:"auto"`
	NetworkTimeout time.Duration `mapstructure:"network-timeout" yaml:"network-timeout"`
	LockTimeout    time.Duration `mapstructure:"lock-timeout" yaml:"lock-timeout"`
}

// ConflictConfig holds the resolver settings.
type ConflictConfig struct {
	Strategy   conflict.Strategy `mapstructure:"strategy" yaml:"strategy"`
	MaxPrompts int               `mapstructure:"max-prompts" yaml:"max-prompts"`
}

// LogConfig holds the log file settings.
type LogConfig struct {
	File  string `mapstructure:"file" yaml:"file"`
	Level string `mapstructure:"level" yaml:"level"`
}

// Dir returns the directory holding config.yaml.
func Dir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// defaults returns every key with its default value.
func defaults() map[string]any {
	return map[string]any{
		KeyDataDir:            filepath.Join(xdg.DataHome, AppName),
		KeyStoreFile:          "todos.json",
		KeyGitRemote:          "",
		KeyGitAuthorName:      "",
		KeyGitAuthorEmail:     "",
		KeySyncAuto:           false,
		KeySyncNetworkTimeout: vcs.DefaultNetworkTimeout,
		KeySyncLockTimeout:    5 * time.Second,
		KeyConflictStrategy:   string(conflict.StrategyManual),
		KeyConflictMaxPrompts: conflict.DefaultMaxPrompts,
		KeyLogFile:            filepath.Join(xdg.StateHome, AppName, AppName+".log"),
		KeyLogLevel:           "info",
	}
}

// Keys returns every supported key, sorted.
func Keys() []string {
	keys := make([]string, 0, len(defaults()))
	for k := range defaults() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsKey reports whether key is supported.
func IsKey(key string) bool {
	_, ok := defaults()[key]
	return ok
}

// LoadOptions configures Load.
type LoadOptions struct {
	// Path overrides DefaultPath
	Path string

	// Overrides are applied last, typically from command-line flags.
	Overrides map[string]any
}

// Load builds the effective configuration. A missing config file is not an
// error. An unknown conflict strategy falls back to manual with a warning.
func Load(opts LoadOptions) (*Config, error) {
	path := opts.Path
	if path == "" {
		path = DefaultPath()
	}

	v := viper.New()
	for k, val := range defaults() {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	cfg := &Config{}
	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		cfg.Path = path
	}

	for k, val := range opts.Overrides {
		if !IsKey(k) {
			return nil, fmt.Errorf("unknown config key %q", k)
		}
		v.Set(k, val)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.normalize()
	return cfg, nil
}

func (c *Config) warn(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}

func (c *Config) normalize() {
	c.DataDir = expandHome(c.DataDir)
	c.Log.File = expandHome(c.Log.File)

	strategy, err := conflict.ParseStrategy(string(c.Conflict.Strategy))
	if err != nil {
		c.warn("%s: %v; using %s", KeyConflictStrategy, err, conflict.StrategyManual)
		strategy = conflict.StrategyManual
	}
	c.Conflict.Strategy = strategy

	if c.Conflict.MaxPrompts <= 0 {
		c.warn("%s must be positive; using %d", KeyConflictMaxPrompts, conflict.DefaultMaxPrompts)
		c.Conflict.MaxPrompts = conflict.DefaultMaxPrompts
	}
	if c.Sync.NetworkTimeout <= 0 {
		c.warn("%s must be positive; using %s", KeySyncNetworkTimeout, vcs.DefaultNetworkTimeout)
		c.Sync.NetworkTimeout = vcs.DefaultNetworkTimeout
	}
	if c.StoreFile == "" || filepath.Base(c.StoreFile) != c.StoreFile {
		c.warn("%s must be a plain file name; using todos.json", KeyStoreFile)
		c.StoreFile = "todos.json"
	}
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// StorePath returns the store file inside the data directory.
func (c *Config) StorePath() string {
	return filepath.Join(c.DataDir, c.StoreFile)
}

// Identity returns the configured commit author.
func (c *Config) Identity() vcs.Identity {
	return vcs.Identity{Name: c.Git.AuthorName, Email: c.Git.AuthorEmail}
}

// Values returns every key with its effective value, formatted for display.
func (c *Config) Values() [][2]string {
	values := map[string]string{
		KeyDataDir:            c.DataDir,
		KeyStoreFile:          c.StoreFile,
		KeyGitRemote:          c.Git.Remote,
		KeyGitAuthorName:      c.Git.AuthorName,
		KeyGitAuthorEmail:     c.Git.AuthorEmail,
		KeySyncAuto:           fmt.Sprint(c.Sync.Auto),
		KeySyncNetworkTimeout: c.Sync.NetworkTimeout.String(),
		KeySyncLockTimeout:    c.Sync.LockTimeout.String(),
		KeyConflictStrategy:   string(c.Conflict.Strategy),
		KeyConflictMaxPrompts: fmt.Sprint(c.Conflict.MaxPrompts),
		KeyLogFile:            c.Log.File,
		KeyLogLevel:           c.Log.Level,
	}

	out := make([][2]string, 0, len(values))
	for _, k := range Keys() {
		out = append(out, [2]string{k, values[k]})
	}
	return out
}
