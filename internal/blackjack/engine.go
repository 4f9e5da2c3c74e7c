package blackjack

import (
	"errors"
	"fmt"
	rand "math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/blackjack/internal/deck"
)

// ErrDeckExhausted is returned when a draw finds the deck empty. The round is
// ended as OutcomeDeckExhausted when this happens.
var ErrDeckExhausted = errors.New("deck exhausted")

// Snapshot is a read-only copy of the current round. Scores are derived from
// the hands when the snapshot is taken.
type Snapshot struct {
	RoundID       string
	State         State
	Outcome       Outcome
	Message       string
	PlayerHand    Hand
	DealerHand    Hand
	PlayerScore   int
	DealerScore   int
	DeckRemaining int
}

// HoleCardHidden reports whether the dealer's first card is face down
func (s Snapshot) HoleCardHidden() bool {
	return s.State == PlayerTurn
}

// round is the state of one deal, replaced wholesale by NewGame
type round struct {
	id      string
	deck    *deck.Deck
	player  Hand
	dealer  Hand
	state   State
	outcome Outcome
}

// Engine drives a single-player round: dealing, player actions and the
// dealer's automatic play.
type Engine struct {
	mu    sync.Mutex
	pubMu sync.Mutex // keeps publish order equal to mutation order

	rng         *rand.Rand
	clock       quartz.Clock
	dealerDelay time.Duration
	logger      *log.Logger
	deckSource  func() *deck.Deck
	newID       func() string
	bus         EventBus

	round   round
	epoch   uint64 // bumped on every NewGame so stale dealer timers can tell
	pending *quartz.Timer
	closed  bool
}

// NewEngine creates an idle engine in RoundOver. The RNG is required so that
// dealing is always explicit and reproducible under test.
func NewEngine(rng *rand.Rand, opts ...Option) *Engine {
	if rng == nil {
		panic("rng is required for engine creation")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	e := &Engine{
		rng:         rng,
		clock:       cfg.clock,
		dealerDelay: cfg.dealerDelay,
		logger:      cfg.logger.WithPrefix("engine"),
		deckSource:  cfg.deckSource,
		newID:       cfg.newID,
		bus:         cfg.bus,
	}
	if e.deckSource == nil {
		e.deckSource = func() *deck.Deck { return deck.NewDeck(e.rng) }
	}
	if e.bus == nil {
		e.bus = NewEventBus()
	}
	e.round.deck = deck.NewStacked()
	return e
}

// Subscribe registers a subscriber for engine events
func (e *Engine) Subscribe(s EventSubscriber) { e.bus.Subscribe(s) }

// Unsubscribe removes a subscriber
func (e *Engine) Unsubscribe(s EventSubscriber) { e.bus.Unsubscribe(s) }

// Snapshot returns the current round
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// NewGame discards the current round, cancelling any pending dealer draw, and
// deals a new one. It is legal in every state.
func (e *Engine) NewGame() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}

	e.cancelPendingLocked()
	e.epoch++
	e.round = round{
		id:     e.newID(),
		deck:   e.deckSource(),
		player: Hand{},
		dealer: Hand{},
		state:  PlayerTurn,
	}

	var err error
	for _, party := range []Party{PartyPlayer, PartyPlayer, PartyDealer, PartyDealer} {
		if err = e.dealLocked(party); err != nil {
			break
		}
	}

	var events []GameEvent
	switch {
	case err != nil:
		events = append(events, e.finishLocked(OutcomeDeckExhausted))
		err = fmt.Errorf("dealing round %s: %w", e.round.id, err)
	case e.round.player.Value() == BlackjackValue:
		events = append(events, RoundStartEvent{e.baseLocked()})
		if e.round.dealer.Value() == BlackjackValue {
			events = append(events, e.finishLocked(OutcomePushBlackjack))
		} else {
			events = append(events, e.finishLocked(OutcomePlayerBlackjack))
		}
	default:
		events = append(events, RoundStartEvent{e.baseLocked()})
	}

	e.logger.Debug("Round dealt",
		"round", e.round.id,
		"player", e.round.player,
		"dealer", e.round.dealer,
		"state", e.round.state)

	e.publishAndUnlock(events)
	return err
}

// Hit deals one card to the player. Outside PlayerTurn it does nothing.
func (e *Engine) Hit() error {
	e.mu.Lock()
	if e.closed || e.round.state != PlayerTurn {
		e.mu.Unlock()
		return nil
	}

	if err := e.dealLocked(PartyPlayer); err != nil {
		ev := e.finishLocked(OutcomeDeckExhausted)
		e.logger.Warn("Deck exhausted on hit", "round", e.round.id)
		e.publishAndUnlock([]GameEvent{ev})
		return fmt.Errorf("hit: %w", err)
	}

	card := e.round.player[len(e.round.player)-1]
	events := []GameEvent{CardDealtEvent{baseEvent: e.baseLocked(), Party: PartyPlayer, Card: card}}
	if e.round.player.IsBust() {
		events = append(events, e.finishLocked(OutcomePlayerBust))
	}

	e.publishAndUnlock(events)
	return nil
}

// Stand hands play to the dealer. Outside PlayerTurn it does nothing.
func (e *Engine) Stand() {
	e.mu.Lock()
	if e.closed || e.round.state != PlayerTurn {
		e.mu.Unlock()
		return
	}

	e.round.state = DealerTurn
	events := []GameEvent{StateChangeEvent{baseEvent: e.baseLocked(), From: PlayerTurn, To: DealerTurn}}
	events = append(events, e.playDealerLocked()...)
	e.publishAndUnlock(events)
}

// Close tears the engine down. A pending dealer draw is cancelled and every
// later action is a no-op.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelPendingLocked()
	e.closed = true
}

// playDealerLocked runs the dealer rule until the round ends or a paced draw
// has been scheduled.
func (e *Engine) playDealerLocked() []GameEvent {
	var events []GameEvent
	for e.round.state == DealerTurn {
		score := e.round.dealer.Value()
		switch {
		case score > BlackjackValue:
			events = append(events, e.finishLocked(OutcomeDealerBust))
		case score >= DealerStandsOn:
			events = append(events, e.finishLocked(compare(e.round.player.Value(), score)))
		case e.dealerDelay > 0:
			epoch := e.epoch
			e.pending = e.clock.AfterFunc(e.dealerDelay, func() { e.dealerStep(epoch) }, "dealer", "draw")
			return events
		default:
			ev, ok := e.dealerDrawLocked()
			events = append(events, ev)
			if !ok {
				return events
			}
		}
	}
	return events
}

// dealerStep is the paced dealer draw fired by the clock
func (e *Engine) dealerStep(epoch uint64) {
	e.mu.Lock()
	if e.closed || epoch != e.epoch || e.round.state != DealerTurn {
		e.mu.Unlock()
		return
	}
	e.pending = nil

	ev, ok := e.dealerDrawLocked()
	events := []GameEvent{ev}
	if ok {
		events = append(events, e.playDealerLocked()...)
	}
	e.publishAndUnlock(events)
}

// dealerDrawLocked draws one card for the dealer. ok is false when the deck
// ran out and the round was ended.
func (e *Engine) dealerDrawLocked() (GameEvent, bool) {
	if err := e.dealLocked(PartyDealer); err != nil {
		e.logger.Warn("Deck exhausted on dealer draw", "round", e.round.id)
		return e.finishLocked(OutcomeDeckExhausted), false
	}
	card := e.round.dealer[len(e.round.dealer)-1]
	return CardDealtEvent{baseEvent: e.baseLocked(), Party: PartyDealer, Card: card}, true
}

func (e *Engine) dealLocked(party Party) error {
	card, err := e.round.deck.Draw()
	if err != nil {
		if errors.Is(err, deck.ErrEmpty) {
			return fmt.Errorf("%w: %w", ErrDeckExhausted, err)
		}
		return err
	}
	if party == PartyDealer {
		e.round.dealer = append(e.round.dealer, card)
	} else {
		e.round.player = append(e.round.player, card)
	}
	return nil
}

func (e *Engine) finishLocked(outcome Outcome) GameEvent {
	e.round.state = RoundOver
	e.round.outcome = outcome
	e.logger.Debug("Round over",
		"round", e.round.id,
		"outcome", outcome,
		"player", e.round.player.Value(),
		"dealer", e.round.dealer.Value())
	return RoundEndEvent{baseEvent: e.baseLocked(), Outcome: outcome}
}

func (e *Engine) cancelPendingLocked() {
	if e.pending != nil {
		e.pending.Stop()
		e.pending = nil
	}
}

func (e *Engine) baseLocked() baseEvent {
	return baseEvent{snapshot: e.snapshotLocked(), timestamp: e.clock.Now()}
}

func (e *Engine) snapshotLocked() Snapshot {
	r := e.round
	return Snapshot{
		RoundID:       r.id,
		State:         r.state,
		Outcome:       r.outcome,
		Message:       message(r.state, r.outcome),
		PlayerHand:    r.player.Clone(),
		DealerHand:    r.dealer.Clone(),
		PlayerScore:   r.player.Value(),
		DealerScore:   r.dealer.Value(),
		DeckRemaining: r.deck.Remaining(),
	}
}

// publishAndUnlock releases the state lock and delivers events in order.
// The publish lock is taken before the state lock is dropped so that a
// concurrent dealer step cannot overtake these events.
func (e *Engine) publishAndUnlock(events []GameEvent) {
	e.pubMu.Lock()
	e.mu.Unlock()
	defer e.pubMu.Unlock()
	for _, ev := range events {
		e.bus.Publish(ev)
	}
}
