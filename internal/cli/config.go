package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/evcraddock/nfc-timecontrol/internal/db"
	"github.com/evcraddock/nfc-timecontrol/internal/tag"
)

// CLIConfig holds CLI configuration persisted to disk.
type CLIConfig struct {
	ServerURL   string `yaml:"server_url,omitempty"`
	APIKey      string `yaml:"api_key,omitempty"`
	DBPath      string `yaml:"db_path,omitempty"`
	Package     string `yaml:"package,omitempty"`
	MIMEType    string `yaml:"mime_type,omitempty"`
	TagCapacity int    `yaml:"tag_capacity,omitempty"`
}

// configPath returns the path to the CLI config file.
func configPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "ntc", "config.yaml"), nil
}

// loadConfig reads the CLI config from disk.
// Returns a zero-value config if the file doesn't exist.
func loadConfig() (CLIConfig, error) {
	path, err := configPath()
	if err != nil {
		return CLIConfig{}, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return CLIConfig{}, nil
	}
	if err != nil {
		return CLIConfig{}, fmt.Errorf("reading config: %w", err)
	}

	var cfg CLIConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return CLIConfig{}, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// saveConfig writes the CLI config to disk.
func saveConfig(cfg CLIConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// getServerURL returns the server URL from the --server flag, env var, or
// config. Empty means commands work on the local database.
func getServerURL() string {
	if flagServer != "" {
		return flagServer
	}
	if v := os.Getenv("NTC_SERVER_URL"); v != "" {
		return v
	}
	cfg, err := loadConfig()
	if err == nil {
		return cfg.ServerURL
	}
	return ""
}

// getAPIKey returns the API key from env var or config.
func getAPIKey() string {
	if v := os.Getenv("NTC_API_KEY"); v != "" {
		return v
	}
	cfg, err := loadConfig()
	if err == nil {
		return cfg.APIKey
	}
	return ""
}

// getDBPath returns the database path from the --db flag, env var, config,
// or the default location.
func getDBPath() (string, error) {
	if flagDB != "" {
		return flagDB, nil
	}
	if v := os.Getenv("NTC_DB"); v != "" {
		return v, nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	if cfg.DBPath != "" {
		return cfg.DBPath, nil
	}
	return db.DefaultPath()
}

// getCodec returns the tag codec for the configured application identity.
func getCodec() tag.Codec {
	cfg, err := loadConfig()
	if err != nil {
		cfg = CLIConfig{}
	}
	pkg := cfg.Package
	if v := os.Getenv("NTC_PACKAGE"); v != "" {
		pkg = v
	}
	return tag.NewCodec(pkg, cfg.MIMEType)
}

// getTagCapacity returns the capacity for new tag images: the flag value
// when positive, then NTC_TAG_CAPACITY, then the config, then the default.
func getTagCapacity(flagValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	if v, err := strconv.Atoi(os.Getenv("NTC_TAG_CAPACITY")); err == nil && v > 0 {
		return v
	}
	cfg, err := loadConfig()
	if err == nil && cfg.TagCapacity > 0 {
		return cfg.TagCapacity
	}
	return tag.DefaultCapacity
}
