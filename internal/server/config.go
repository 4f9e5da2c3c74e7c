package server

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/lox/blackjack/internal/blackjack"
)

const (
	defaultAddress  = ":8080"
	defaultLogLevel = "info"
)

// Config represents the complete server configuration file
type Config struct {
	Server *ServerSettings `hcl:"server,block"`
	Game   *GameSettings   `hcl:"game,block"`
}

// ServerSettings contains listener and logging configuration
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	LogLevel string `hcl:"log_level,optional"`
}

// GameSettings configures the engine behind every session
type GameSettings struct {
	DealerDelay string `hcl:"dealer_delay,optional"`
	Seed        *int64 `hcl:"seed,optional"`
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		Server: &ServerSettings{
			Address:  defaultAddress,
			LogLevel: defaultLogLevel,
		},
		Game: &GameSettings{
			DealerDelay: blackjack.DefaultDealerDelay.String(),
		},
	}
}

// LoadConfig loads configuration from an HCL file. A missing file yields the
// defaults.
func LoadConfig(filename string) (*Config, error) {
	src, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return ParseConfig(src, filename)
}

// ParseConfig decodes HCL source and fills in defaults for anything omitted
func ParseConfig(src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	defaults := DefaultConfig()
	if config.Server == nil {
		config.Server = defaults.Server
	}
	if config.Game == nil {
		config.Game = defaults.Game
	}
	if config.Server.Address == "" {
		config.Server.Address = defaultAddress
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = defaultLogLevel
	}
	if config.Game.DealerDelay == "" {
		config.Game.DealerDelay = defaults.Game.DealerDelay
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server address must not be empty")
	}
	if _, err := log.ParseLevel(c.Server.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q", c.Server.LogLevel)
	}
	if _, err := c.DealerDelay(); err != nil {
		return err
	}
	return nil
}

// DealerDelay returns the parsed pause before each dealer draw
func (c *Config) DealerDelay() (time.Duration, error) {
	d, err := time.ParseDuration(c.Game.DealerDelay)
	if err != nil {
		return 0, fmt.Errorf("invalid dealer_delay %q: %w", c.Game.DealerDelay, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("dealer_delay must not be negative, got %s", d)
	}
	return d, nil
}

// Level returns the configured log level, defaulting to info
func (c *Config) Level() log.Level {
	level, err := log.ParseLevel(c.Server.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return level
}
