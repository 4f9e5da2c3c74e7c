package blackjack

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/lox/blackjack/internal/deck"
)

// DefaultDealerDelay is the pause before each dealer draw
const DefaultDealerDelay = time.Second

// Option configures an Engine during creation.
type Option func(*engineConfig)

type engineConfig struct {
	clock       quartz.Clock
	dealerDelay time.Duration
	logger      *log.Logger
	deckSource  func() *deck.Deck // nil means a fresh shuffled deck from the engine RNG
	newID       func() string
	bus         EventBus
}

func defaultConfig() *engineConfig {
	return &engineConfig{
		clock:       quartz.NewReal(),
		dealerDelay: DefaultDealerDelay,
		logger:      log.NewWithOptions(io.Discard, log.Options{}),
		newID:       newRoundID,
	}
}

// WithClock sets the clock used to pace dealer draws
func WithClock(clock quartz.Clock) Option {
	return func(c *engineConfig) { c.clock = clock }
}

// WithDealerDelay sets the pause before each dealer draw. Zero plays the
// dealer's hand out synchronously inside Stand.
func WithDealerDelay(d time.Duration) Option {
	return func(c *engineConfig) {
		if d < 0 {
			d = 0
		}
		c.dealerDelay = d
	}
}

// WithLogger sets the engine logger
func WithLogger(logger *log.Logger) Option {
	return func(c *engineConfig) { c.logger = logger }
}

// WithDeckSource overrides how each round's deck is built. Tests use it with
// deck.NewStacked to fix the deal.
func WithDeckSource(source func() *deck.Deck) Option {
	return func(c *engineConfig) { c.deckSource = source }
}

// WithIDGenerator overrides round ID generation
func WithIDGenerator(gen func() string) Option {
	return func(c *engineConfig) { c.newID = gen }
}

// WithEventBus shares an event bus with the engine
func WithEventBus(bus EventBus) Option {
	return func(c *engineConfig) { c.bus = bus }
}

func newRoundID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
