package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lox/blackjack/cmd/blackjack/shared"
	"github.com/lox/blackjack/internal/blackjack"
	"github.com/lox/blackjack/internal/randutil"
	"github.com/lox/blackjack/internal/tui"
)

// PlayCmd runs a local game in the terminal
type PlayCmd struct {
	DealerDelay time.Duration `kong:"default='1s',help='Pause before each dealer draw'"`
	Seed        *int64        `kong:"help='Deterministic RNG seed (optional)'"`
	Debug       bool          `kong:"help='Write debug logs to blackjack-play.log'"`
}

func (c *PlayCmd) Run() error {
	// The TUI owns the terminal, so logs go to a file or nowhere
	logger := shared.DiscardLogger()
	if c.Debug {
		fileLogger, closer, err := shared.SetupFileLogger("blackjack-play.log", log.DebugLevel)
		if err != nil {
			return err
		}
		defer func() { _ = closer.Close() }()
		logger = fileLogger
	}

	rng, seed := randutil.Resolve(c.Seed)
	logger.Info("Starting terminal game", "seed", seed, "dealer_delay", c.DealerDelay)

	engine := blackjack.NewEngine(rng,
		blackjack.WithDealerDelay(c.DealerDelay),
		blackjack.WithLogger(logger),
	)

	ctx := shared.SetupSignalHandler(logger)
	if err := tui.Run(ctx, engine, logger); err != nil {
		return fmt.Errorf("terminal UI: %w", err)
	}
	return nil
}
