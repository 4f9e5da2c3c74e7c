package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lox/blackjack/cmd/blackjack/shared"
	"github.com/lox/blackjack/internal/randutil"
	"github.com/lox/blackjack/internal/server"
)

// ServeCmd runs the web server. Flags override the config file.
type ServeCmd struct {
	Config      string `kong:"default='blackjack.hcl',help='HCL config file (ignored if missing)'"`
	Addr        string `kong:"help='Server address'"`
	Port        int    `kong:"env='PORT',help='Listen on this port on all interfaces'"`
	LogLevel    string `kong:"help='Log level: debug, info, warn, error'"`
	DealerDelay string `kong:"help='Pause before each dealer draw, e.g. 1s or 0'"`
	Seed        *int64 `kong:"help='Deterministic RNG seed for the server (optional)'"`
}

func (c *ServeCmd) Run() error {
	cfg, err := server.LoadConfig(c.Config)
	if err != nil {
		return err
	}
	c.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := shared.SetupLogger(cfg.Level())

	delay, err := cfg.DealerDelay()
	if err != nil {
		return err
	}

	_, seed := randutil.Resolve(cfg.Game.Seed)
	if cfg.Game.Seed != nil {
		logger.Info("Using deterministic seed", "seed", seed)
	} else {
		logger.Info("Using random seed", "seed", seed)
	}

	s := server.NewServer(logger, seed, server.WithDealerDelay(delay))

	logger.Info("Starting blackjack server",
		"address", cfg.Server.Address,
		"dealer_delay", delay)

	ctx := shared.SetupSignalHandler(logger)

	serverErr := make(chan error, 1)
	go func() {
		if err := s.Start(cfg.Server.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}

// apply copies explicitly set flags over the loaded config
func (c *ServeCmd) apply(cfg *server.Config) {
	if c.Port != 0 {
		cfg.Server.Address = fmt.Sprintf(":%d", c.Port)
	}
	if c.Addr != "" {
		cfg.Server.Address = c.Addr
	}
	if c.LogLevel != "" {
		cfg.Server.LogLevel = c.LogLevel
	}
	if c.DealerDelay != "" {
		cfg.Game.DealerDelay = c.DealerDelay
	}
	if c.Seed != nil {
		cfg.Game.Seed = c.Seed
	}
}
