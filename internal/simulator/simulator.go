package simulator

import (
	"context"
	"errors"
	"fmt"
	"io"
	rand "math/rand/v2"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lox/blackjack/internal/blackjack"
	"github.com/lox/blackjack/internal/deck"
	"github.com/lox/blackjack/internal/randutil"
	"golang.org/x/sync/errgroup"
)

// Config holds configuration for running simulations
type Config struct {
	Rounds  int
	Workers int
	StandOn int // the player hits while below this total
	Seed    int64
	Logger  *log.Logger
}

// Report summarises a batch of simulated rounds
type Report struct {
	Rounds   int            `json:"rounds"`
	Workers  int            `json:"workers"`
	StandOn  int            `json:"stand_on"`
	Seed     int64          `json:"seed"`
	Outcomes map[string]int `json:"outcomes"`
	Wins     int            `json:"wins"`
	Losses   int            `json:"losses"`
	Pushes   int            `json:"pushes"`
	WinRate  float64        `json:"win_rate"`
	LossRate float64        `json:"loss_rate"`
	PushRate float64        `json:"push_rate"`
	Duration string         `json:"duration"`
}

// Simulator plays blackjack rounds headless with a fixed policy
type Simulator struct {
	config Config
}

// New creates a new simulator with the given configuration
func New(config Config) *Simulator {
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	if config.StandOn <= 0 {
		config.StandOn = blackjack.DealerStandsOn
	}
	if config.Logger == nil {
		config.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Simulator{config: config}
}

type tally map[blackjack.Outcome]int

// Run plays every round and returns the aggregated report. Round i is always
// dealt from a deck seeded by (Seed, i), so the report does not depend on the
// number of workers.
func (s *Simulator) Run(ctx context.Context) (*Report, error) {
	if s.config.Rounds <= 0 {
		return nil, errors.New("rounds must be positive")
	}

	start := time.Now()
	workers := min(s.config.Workers, s.config.Rounds)
	perWorker := s.config.Rounds / workers
	remainder := s.config.Rounds % workers

	logger := s.config.Logger.WithPrefix("simulator")
	logger.Info("Starting simulation",
		"rounds", s.config.Rounds,
		"workers", workers,
		"stand_on", s.config.StandOn,
		"seed", s.config.Seed)

	g, ctx := errgroup.WithContext(ctx)
	results := make(chan tally, workers)

	first := 0
	for w := range workers {
		count := perWorker
		if w < remainder {
			count++
		}
		from, to := first, first+count
		first = to

		g.Go(func() error {
			t, err := s.runWorker(ctx, from, to)
			if err != nil {
				return fmt.Errorf("worker %d: %w", w, err)
			}
			select {
			case results <- t:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}

	go func() {
		defer close(results)
		_ = g.Wait()
	}()

	total := tally{}
	for t := range results {
		for outcome, n := range t {
			total[outcome] += n
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := s.report(total, workers, time.Since(start))
	logger.Info("Simulation complete",
		"wins", report.Wins,
		"losses", report.Losses,
		"pushes", report.Pushes,
		"duration", report.Duration)
	return report, nil
}

// runWorker plays rounds [from, to) on its own engine
func (s *Simulator) runWorker(ctx context.Context, from, to int) (tally, error) {
	var roundRng *rand.Rand
	engine := blackjack.NewEngine(randutil.New(s.config.Seed),
		blackjack.WithDealerDelay(0),
		blackjack.WithDeckSource(func() *deck.Deck { return deck.NewDeck(roundRng) }),
		blackjack.WithIDGenerator(func() string { return "" }),
	)
	defer engine.Close()

	t := tally{}
	for i := from; i < to; i++ {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		roundRng = randutil.New(randutil.Derive(s.config.Seed, i))
		outcome, err := s.playRound(engine)
		if err != nil {
			return nil, fmt.Errorf("round %d: %w", i, err)
		}
		t[outcome]++
	}
	return t, nil
}

// playRound hits below the stand-on total and stands otherwise
func (s *Simulator) playRound(engine *blackjack.Engine) (blackjack.Outcome, error) {
	if err := engine.NewGame(); err != nil {
		return blackjack.OutcomeNone, err
	}

	for {
		snap := engine.Snapshot()
		if snap.State != blackjack.PlayerTurn {
			return snap.Outcome, nil
		}
		if snap.PlayerScore < s.config.StandOn {
			if err := engine.Hit(); err != nil {
				return blackjack.OutcomeNone, err
			}
			continue
		}
		engine.Stand()
	}
}

func (s *Simulator) report(total tally, workers int, elapsed time.Duration) *Report {
	r := &Report{
		Rounds:   s.config.Rounds,
		Workers:  workers,
		StandOn:  s.config.StandOn,
		Seed:     s.config.Seed,
		Outcomes: make(map[string]int, len(total)),
		Duration: elapsed.Round(time.Millisecond).String(),
	}
	for outcome, n := range total {
		r.Outcomes[outcome.String()] = n
		switch outcome.Result() {
		case blackjack.ResultWin:
			r.Wins += n
		case blackjack.ResultLoss:
			r.Losses += n
		case blackjack.ResultPush:
			r.Pushes += n
		}
	}

	rounds := float64(r.Rounds)
	r.WinRate = float64(r.Wins) / rounds
	r.LossRate = float64(r.Losses) / rounds
	r.PushRate = float64(r.Pushes) / rounds
	return r
}

// String renders the report for the terminal
func (r *Report) String() string {
	return fmt.Sprintf("%d rounds (stand on %d, seed %d): win %.2f%%  loss %.2f%%  push %.2f%%  in %s",
		r.Rounds, r.StandOn, r.Seed,
		r.WinRate*100, r.LossRate*100, r.PushRate*100, r.Duration)
}
