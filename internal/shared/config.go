package shared

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Sync     SyncConfig     `toml:"sync"`
	Cache    CacheConfig    `toml:"cache"`
	Database DatabaseConfig `toml:"database"`
}

// SyncConfig contains matching and sync defaults.
type SyncConfig struct {
	Threshold float64 `toml:"threshold"`
	FolderID  int     `toml:"folder_id"`
}

// CacheConfig contains cache location and TTL settings. TTLs are hours and
// may be fractional (e.g. 0.5 for 30 minutes).
type CacheConfig struct {
	Dir                 string  `toml:"dir"`
	ListTTLHours        float64 `toml:"list_ttl_hours"`
	MarketplaceTTLHours float64 `toml:"marketplace_ttl_hours"`
}

// DatabaseConfig contains the resolution database location.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// ConfigDir returns the directory holding config, credentials, cache and
// database files (~/.discosync).
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".discosync"
	}
	return filepath.Join(home, ".discosync")
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config file: %v", ErrMissingConfig, err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Credentials holds the persisted Discogs personal access token.
type Credentials struct {
	Token    string `json:"token"`
	Username string `json:"username,omitempty"`
}

// CredentialsPath returns the location of the stored credentials file.
func CredentialsPath() string {
	return filepath.Join(ConfigDir(), "credentials.json")
}

// LoadCredentials reads stored credentials from path. A missing file returns
// ErrNotAuthenticated so callers can prompt for auth.
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: run 'discosync auth login' first", ErrNotAuthenticated)
		}
		return nil, fmt.Errorf("%w: %v", ErrMissingCredentials, err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("%w: malformed credentials file: %v", ErrMissingCredentials, err)
	}
	if creds.Token == "" {
		return nil, fmt.Errorf("%w: credentials file has no token", ErrNotAuthenticated)
	}
	return &creds, nil
}

// SaveCredentials writes credentials to path with owner-only permissions.
func SaveCredentials(path string, creds *Credentials) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to restrict credentials permissions: %w", err)
		}
	}
	return nil
}
