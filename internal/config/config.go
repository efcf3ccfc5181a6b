package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// ID formats.
const (
	IDFormatULID = "ulid"
	IDFormatUUID = "uuid"
)

// Config holds application configuration.
type Config struct {
	// Backend selects the persistence backend: "sqlite" (default) or "badger".
	Backend string `json:"backend,omitempty"`

	// StorageKey is the namespaced key the collection is stored under.
	// Matches the browser-extension key so dumps are interchangeable.
	StorageKey string `json:"storage_key,omitempty"`

	// IDFormat selects how new lead ids are generated: "ulid" (default) or "uuid".
	IDFormat string `json:"id_format,omitempty"`

	// CaptureDisabled turns off page fetching for the capture action.
	CaptureDisabled bool `json:"capture_disabled,omitempty"`

	// CaptureTimeoutSeconds bounds a capture fetch. 0 means the default.
	CaptureTimeoutSeconds int `json:"capture_timeout_seconds,omitempty"`

	// AllowedPaths is an allowlist of directories for import/export operations.
	// Paths outside ~/.leadvault/exports require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for import/export.
	// Symlink and extension checks still apply.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open sqlite connections.
	// 0 means use sql.DB default.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle sqlite connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// WebBind is the interface the web UI listens on.
	WebBind string `json:"web_bind,omitempty"`

	// WebPort is the port the web UI listens on.
	WebPort int `json:"web_port,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Backend:               BackendSQLite,
		StorageKey:            "myLeads",
		IDFormat:              IDFormatULID,
		CaptureTimeoutSeconds: 10,
		WebBind:               "127.0.0.1",
		WebPort:               8484,
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.leadvault.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.leadvault) and repo (.leadvault) directories.
// Repo config is found by walking upward from startDir to find the nearest .leadvault/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .leadvault/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".leadvault", "config.json")
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

// HomeDir returns the leadvault base directory: $LEADVAULT_HOME, else ~/.leadvault.
func HomeDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv("LEADVAULT_HOME")); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".leadvault"), nil
}

// LoadDotEnv loads a .env file from the working directory when one exists.
// Variables already set in the environment win.
func LoadDotEnv() error {
	if _, err := os.Stat(".env"); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return godotenv.Load()
}

// ApplyEnv overlays LEADVAULT_* environment variables onto cfg.
func ApplyEnv(cfg *Config) *Config {
	overlay := &Config{
		Backend:    strings.TrimSpace(os.Getenv("LEADVAULT_BACKEND")),
		StorageKey: strings.TrimSpace(os.Getenv("LEADVAULT_STORAGE_KEY")),
		IDFormat:   strings.TrimSpace(os.Getenv("LEADVAULT_ID_FORMAT")),
		WebBind:    strings.TrimSpace(os.Getenv("LEADVAULT_WEB_BIND")),
	}
	if port, err := strconv.Atoi(os.Getenv("LEADVAULT_WEB_PORT")); err == nil && port > 0 {
		overlay.WebPort = port
	}
	if v, err := strconv.ParseBool(os.Getenv("LEADVAULT_CAPTURE_DISABLED")); err == nil {
		overlay.CaptureDisabled = v
	}
	return Merge(cfg, overlay)
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
		return nil, err
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

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.Backend = firstString(overlay.Backend, base.Backend)
	result.StorageKey = firstString(overlay.StorageKey, base.StorageKey)
	result.IDFormat = firstString(overlay.IDFormat, base.IDFormat)
	result.WebBind = firstString(overlay.WebBind, base.WebBind)
	result.CaptureTimeoutSeconds = firstInt(overlay.CaptureTimeoutSeconds, base.CaptureTimeoutSeconds)
	result.DBMaxOpenConns = firstInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = firstInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)
	result.WebPort = firstInt(overlay.WebPort, base.WebPort)

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths
	result.CaptureDisabled = base.CaptureDisabled || overlay.CaptureDisabled

	// Arrays: merge and deduplicate
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func firstString(overlay, base string) string {
	if s := strings.TrimSpace(overlay); s != "" {
		return s
	}
	return base
}

func firstInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string(nil), a...), b...) {
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
