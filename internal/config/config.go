package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

var (
	home, _           = os.UserHomeDir()
	DefaultDataDir    = filepath.Join(home, "fabsync")
	DefaultConfigPath = filepath.Join(home, ".fabsync", "config.yaml")
	DefaultCatalog    = "common"
)

const DefaultPollInterval = 10 * time.Second

var (
	ErrNoServerURL  = errors.New("config: server url is required")
	ErrNoDataDir    = errors.New("config: data dir is required")
	ErrNoSelection  = errors.New("config: at least one of products or datasets is required")
	ErrBadDirection = errors.New("config: direction must be upload or download")
)

// Config is the full configuration surface of the sync daemon.
type Config struct {
	ServerURL string `mapstructure:"server_url"`
	AuthToken string `mapstructure:"auth_token"`
	DataDir   string `mapstructure:"data_dir"`

	Catalog  string   `mapstructure:"catalog"`
	Datasets []string `mapstructure:"datasets"`
	Products []string `mapstructure:"products"`

	Direction    string        `mapstructure:"direction"`
	Flatten      bool          `mapstructure:"flatten"`
	Format       string        `mapstructure:"format"`
	Parallelism  int           `mapstructure:"parallel"`
	ShowProgress bool          `mapstructure:"progress"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// Validate applies the startup preconditions. It is the only place errors are
// allowed to stop the process; everything past here is retried by the loop.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return ErrNoServerURL
	}
	if c.DataDir == "" {
		return ErrNoDataDir
	}
	if len(c.Products) == 0 && len(c.Datasets) == 0 {
		return ErrNoSelection
	}
	if c.Direction != "upload" && c.Direction != "download" {
		return fmt.Errorf("%w: got %q", ErrBadDirection, c.Direction)
	}

	if c.Catalog == "" {
		c.Catalog = DefaultCatalog
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	return nil
}
