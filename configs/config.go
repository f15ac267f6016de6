// Package configs loads orbitald's YAML configuration, following the
// teacher's configs/config.go: a single Config struct mirroring the YAML
// shape plus ToX() translator methods that build the concrete structs
// each subsystem constructor wants.
package configs

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/orbital-labs/intents-core/internal/auction"
	"github.com/orbital-labs/intents-core/internal/executor"
)

// Config is the entire orbitald.yml configuration structure.
type Config struct {
	Chains   map[string]ChainYAMLData `yaml:"chains"`
	Database DatabaseYAMLData         `yaml:"database"`
	Auction  AuctionYAMLData          `yaml:"auction"`
	Executor ExecutorYAMLData         `yaml:"executor"`
}

// ChainYAMLData is one entry under the chains map, keyed by chain name
// (e.g. "ethereum", "optimism").
type ChainYAMLData struct {
	ChainID uint64 `yaml:"chainId"`
	RPC     string `yaml:"rpc"`
}

// DatabaseYAMLData configures the MySQL persistence port.
type DatabaseYAMLData struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// DSN formats the standard GORM MySQL DSN from the configured fields.
func (d DatabaseYAMLData) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// AuctionYAMLData configures the Auction Matcher.
type AuctionYAMLData struct {
	WindowSec int `yaml:"windowSec"`
	MinQuotes int `yaml:"minQuotes"`
}

// ExecutorYAMLData configures the Intent Executor.
type ExecutorYAMLData struct {
	MaxConcurrent   int `yaml:"maxConcurrent"`
	TimeoutSec      int `yaml:"timeoutSec"`
	MaxRetries      int `yaml:"maxRetries"`
	MevDelayMinSec  int `yaml:"mevDelayMinSec"`
	MevDelayMaxSec  int `yaml:"mevDelayMaxSec"`
}

// LoadConfig reads and parses path (a YAML file) into a Config.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return &config, nil
}

// LoadEnv loads a .env-style file (private keys, DB password overrides)
// into the process environment, tolerating a missing file the way
// local development runs without one.
func LoadEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// ToAuctionWindow converts the configured auction window to a
// time.Duration, defaulting to the Matcher's built-in default when
// unset.
func (c *Config) ToAuctionWindow() time.Duration {
	if c.Auction.WindowSec <= 0 {
		return auction.DefaultAuctionWindow
	}
	return time.Duration(c.Auction.WindowSec) * time.Second
}

// ToMinQuotes converts the configured minimum-quotes threshold,
// defaulting to the Matcher's built-in default when unset.
func (c *Config) ToMinQuotes() int {
	if c.Auction.MinQuotes <= 0 {
		return auction.DefaultMinQuotes
	}
	return c.Auction.MinQuotes
}

// ExecutorTuning bundles the configured Executor parameters. The
// Executor itself uses its package constants; main.go only logs these
// values.
type ExecutorTuning struct {
	MaxConcurrent int
	Timeout       time.Duration
	MaxRetries    int
	MevDelayMin   time.Duration
	MevDelayMax   time.Duration
}

// ToExecutorTuning converts the YAML executor block, falling back to
// the package defaults for any zero field.
func (c *Config) ToExecutorTuning() ExecutorTuning {
	t := ExecutorTuning{
		MaxConcurrent: executor.MaxConcurrentExecutions,
		Timeout:       executor.ExecutionTimeout,
		MaxRetries:    executor.MaxRetries,
		MevDelayMin:   executor.MEVDelayMin,
		MevDelayMax:   executor.MEVDelayMax,
	}
	if c.Executor.MaxConcurrent > 0 {
		t.MaxConcurrent = c.Executor.MaxConcurrent
	}
	if c.Executor.TimeoutSec > 0 {
		t.Timeout = time.Duration(c.Executor.TimeoutSec) * time.Second
	}
	if c.Executor.MaxRetries > 0 {
		t.MaxRetries = c.Executor.MaxRetries
	}
	if c.Executor.MevDelayMinSec > 0 {
		t.MevDelayMin = time.Duration(c.Executor.MevDelayMinSec) * time.Second
	}
	if c.Executor.MevDelayMaxSec > 0 {
		t.MevDelayMax = time.Duration(c.Executor.MevDelayMaxSec) * time.Second
	}
	return t
}
