package main

import (
	"fmt"
	"runtime"

	"github.com/charmbracelet/log"
	"github.com/lox/blackjack/cmd/blackjack/shared"
	"github.com/lox/blackjack/internal/blackjack"
	"github.com/lox/blackjack/internal/fileutil"
	"github.com/lox/blackjack/internal/randutil"
	"github.com/lox/blackjack/internal/simulator"
)

// SimulateCmd plays rounds headless and reports outcome rates
type SimulateCmd struct {
	Rounds  int    `kong:"default='10000',help='Number of rounds to play'"`
	Workers int    `kong:"default='0',help='Parallel workers (0 uses every CPU)'"`
	StandOn int    `kong:"default='17',help='Player hits while below this total'"`
	Seed    *int64 `kong:"help='Deterministic RNG seed (optional)'"`
	Output  string `kong:"short='o',help='Write the JSON report to this file'"`
	Verbose bool   `kong:"help='Enable debug logging'"`
}

func (c *SimulateCmd) Run() error {
	level := log.WarnLevel
	if c.Verbose {
		level = log.DebugLevel
	}
	logger := shared.SetupLogger(level)

	if c.StandOn < 1 || c.StandOn > blackjack.BlackjackValue {
		return fmt.Errorf("stand-on must be between 1 and %d", blackjack.BlackjackValue)
	}
	workers := c.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	_, seed := randutil.Resolve(c.Seed)
	ctx := shared.SetupSignalHandler(logger)

	sim := simulator.New(simulator.Config{
		Rounds:  c.Rounds,
		Workers: workers,
		StandOn: c.StandOn,
		Seed:    seed,
		Logger:  logger,
	})

	report, err := sim.Run(ctx)
	if err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}

	fmt.Println(report)
	for _, outcome := range []blackjack.Outcome{
		blackjack.OutcomePlayerBlackjack,
		blackjack.OutcomePlayerWin,
		blackjack.OutcomeDealerBust,
		blackjack.OutcomePush,
		blackjack.OutcomePushBlackjack,
		blackjack.OutcomeDealerWin,
		blackjack.OutcomePlayerBust,
	} {
		fmt.Printf("  %-16s %d\n", outcome, report.Outcomes[outcome.String()])
	}

	if c.Output != "" {
		if err := fileutil.WriteJSON(c.Output, report); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		logger.Info("Report written", "path", c.Output)
	}
	return nil
}
