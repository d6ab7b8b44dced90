package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. SMN_LOG_LEVEL.
const EnvPrefix = "SMN"

// Config holds application configuration.
type Config struct {
	// AllowedPaths is an allowlist of directories for import/export operations.
	// Paths outside ~/.smn/exports require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for import/export.
	// When true, any directory is allowed (but symlink and extension checks still apply).
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// If set to 1, all database access is serialized (reduces "database is locked" errors).
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	// 0 means use sql.DB default. Typically set equal to DBMaxOpenConns.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// ExportPrefix names generated archives: <prefix>-export-YYYY-MM-DD.zip.
	ExportPrefix string `json:"export_prefix,omitempty"`

	// ErrorPreview is how many per-entry import errors are shown before
	// the rest are collapsed into "... and N more".
	ErrorPreview int `json:"error_preview,omitempty"`

	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string `json:"log_level,omitempty"`

	// LogFormat is "console" or "json".
	LogFormat string `json:"log_format,omitempty"`
}

var (
	logLevels  = []string{"trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled"}
	logFormats = []string{"console", "json"}
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ExportPrefix: "somanynotes.com",
		ErrorPreview: 5,
		LogLevel:     "info",
		LogFormat:    "console",
	}
}

// Load loads configuration from baseDir/config.json, then applies SMN_*
// environment overrides. Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.smn.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	return finish(cfg)
}

// LoadWithRepo loads configuration from both global (~/.smn) and repo (.smn) directories.
// Repo config is found by walking upward from startDir to find the nearest .smn/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Environment overrides are applied last. Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return finish(Merge(Merge(DefaultConfig(), global), repo))
}

func finish(cfg *Config) (*Config, error) {
	cfg = ApplyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FindRepoConfig walks upward from startDir to find the nearest .smn/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".smn", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", configPath, err)
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// ApplyEnv returns a copy of cfg with SMN_* environment variables applied.
// List values are comma separated.
func ApplyEnv(cfg *Config) *Config {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	out := *cfg
	if v.IsSet("allowed_paths") {
		out.AllowedPaths = mergeStringSlice(out.AllowedPaths, splitList(v.GetString("allowed_paths")))
	}
	if v.IsSet("allow_unsafe_paths") {
		out.AllowUnsafePaths = v.GetBool("allow_unsafe_paths")
	}
	if v.IsSet("db_max_open_conns") {
		out.DBMaxOpenConns = v.GetInt("db_max_open_conns")
	}
	if v.IsSet("db_max_idle_conns") {
		out.DBMaxIdleConns = v.GetInt("db_max_idle_conns")
	}
	if v.IsSet("disabled_tools") {
		out.DisabledTools = mergeStringSlice(out.DisabledTools, splitList(v.GetString("disabled_tools")))
	}
	if v.IsSet("export_prefix") {
		out.ExportPrefix = v.GetString("export_prefix")
	}
	if v.IsSet("error_preview") {
		out.ErrorPreview = v.GetInt("error_preview")
	}
	if v.IsSet("log_level") {
		out.LogLevel = strings.ToLower(v.GetString("log_level"))
	}
	if v.IsSet("log_format") {
		out.LogFormat = strings.ToLower(v.GetString("log_format"))
	}
	return &out
}

func splitList(s string) []string {
	return strings.Split(s, ",")
}

// Validate checks that enumerated and numeric settings are usable.
func (c *Config) Validate() error {
	if c.LogLevel != "" && !slices.Contains(logLevels, c.LogLevel) {
		return fmt.Errorf("log_level must be one of %s", strings.Join(logLevels, ", "))
	}
	if c.LogFormat != "" && !slices.Contains(logFormats, c.LogFormat) {
		return fmt.Errorf("log_format must be one of %s", strings.Join(logFormats, ", "))
	}
	if c.ErrorPreview < 0 {
		return errors.New("error_preview must not be negative")
	}
	if c.DBMaxOpenConns < 0 || c.DBMaxIdleConns < 0 {
		return errors.New("db connection limits must not be negative")
	}
	if strings.ContainsAny(c.ExportPrefix, `/\`) {
		return errors.New("export_prefix must not contain path separators")
	}
	return nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.DBMaxOpenConns = overlay.DBMaxOpenConns
	if result.DBMaxOpenConns == 0 {
		result.DBMaxOpenConns = base.DBMaxOpenConns
	}

	result.DBMaxIdleConns = overlay.DBMaxIdleConns
	if result.DBMaxIdleConns == 0 {
		result.DBMaxIdleConns = base.DBMaxIdleConns
	}

	result.ErrorPreview = overlay.ErrorPreview
	if result.ErrorPreview == 0 {
		result.ErrorPreview = base.ErrorPreview
	}

	result.ExportPrefix = firstNonEmpty(overlay.ExportPrefix, base.ExportPrefix)
	result.LogLevel = firstNonEmpty(overlay.LogLevel, base.LogLevel)
	result.LogFormat = firstNonEmpty(overlay.LogFormat, base.LogFormat)

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	// Arrays: merge and deduplicate
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range slices.Concat(a, b) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
