package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/syncforge/themesync/internal/utils"
)

var (
	home, _           = os.UserHomeDir()
	DefaultConfigPath = filepath.Join(home, ".themesync", "config.json")
	DefaultLogPath    = filepath.Join(home, ".themesync", "logs", "themesync.log")
	DefaultSyncRoot   = filepath.Join(home, "ThemeSync")
	DefaultBoardURL   = "http://localhost:8080"
	DefaultControl    = "localhost:7938"
)

// Config holds the daemon's settings. It is persisted as JSON and can be
// overridden through flags and THEMESYNC_* environment variables.
type Config struct {
	SyncRoot    string `json:"sync_root"`
	BoardDB     string `json:"board_db"`
	BoardURL    string `json:"board_url"`
	ControlAddr string `json:"control_addr"`
	Path        string `json:"-"`
}

// Validate checks the config and resolves the sync root to an absolute path.
func (c *Config) Validate() error {
	if c.SyncRoot == "" {
		return fmt.Errorf("sync_root is required")
	}
	if c.BoardDB == "" {
		return fmt.Errorf("board_db is required")
	}

	root, err := utils.ResolvePath(c.SyncRoot)
	if err != nil {
		return fmt.Errorf("resolve sync_root: %w", err)
	}
	c.SyncRoot = root

	if c.BoardURL == "" {
		c.BoardURL = DefaultBoardURL
	}
	if c.ControlAddr == "" {
		c.ControlAddr = DefaultControl
	}
	return nil
}

// Save writes the config to the given path, creating parent directories.
func (c *Config) Save(path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// Load reads a config file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.Path = path
	return &cfg, nil
}
