package blackjack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/blackjack/internal/deck"
	"github.com/lox/blackjack/internal/randutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

// stackedEngine builds an engine whose every round deals cards in the given
// order: player, player, dealer, dealer, then hits and dealer draws.
func stackedEngine(t *testing.T, cards string, opts ...Option) *Engine {
	t.Helper()
	stack := deck.MustParseCards(cards)
	base := []Option{
		WithLogger(testLogger()),
		WithDealerDelay(0),
		WithDeckSource(func() *deck.Deck { return deck.NewStacked(stack...) }),
		WithIDGenerator(sequentialIDs()),
	}
	e := NewEngine(randutil.New(1), append(base, opts...)...)
	t.Cleanup(e.Close)
	return e
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("round-%d", n)
	}
}

// eventRecorder captures events for assertions
type eventRecorder struct {
	mu     sync.Mutex
	events []GameEvent
}

func (r *eventRecorder) OnEvent(event GameEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.EventType()
	}
	return out
}

func TestNewEngineRequiresRNG(t *testing.T) {
	assert.Panics(t, func() { NewEngine(nil) })
}

func TestInitialState(t *testing.T) {
	e := NewEngine(randutil.New(1), WithLogger(testLogger()))
	s := e.Snapshot()

	assert.Equal(t, RoundOver, s.State)
	assert.Equal(t, OutcomeNone, s.Outcome)
	assert.Equal(t, `Click "New Game" to start!`, s.Message)
	assert.Empty(t, s.PlayerHand)
	assert.Empty(t, s.DealerHand)
	assert.Zero(t, s.PlayerScore)
	assert.Zero(t, s.DealerScore)
}

func TestNewGameDealsFromShuffledDeck(t *testing.T) {
	e := NewEngine(randutil.New(42), WithLogger(testLogger()), WithDealerDelay(0))
	require.NoError(t, e.NewGame())

	s := e.Snapshot()
	assert.Len(t, s.PlayerHand, 2)
	assert.Len(t, s.DealerHand, 2)
	assert.Equal(t, deck.Size-4, s.DeckRemaining)
	assert.NotEmpty(t, s.RoundID)
	assert.Equal(t, s.PlayerHand.Value(), s.PlayerScore)
	assert.Equal(t, s.DealerHand.Value(), s.DealerScore)

	seen := map[deck.Card]bool{}
	for _, c := range append(s.PlayerHand.Clone(), s.DealerHand...) {
		assert.False(t, seen[c], "card %s dealt twice", c)
		seen[c] = true
	}
}

func TestNewGameScenarios(t *testing.T) {
	tests := []struct {
		name    string
		cards   string
		state   State
		outcome Outcome
		message string
	}{
		{
			name:    "player natural beats dealer seventeen",
			cards:   "AhKs9d8c",
			state:   RoundOver,
			outcome: OutcomePlayerBlackjack,
			message: "Blackjack! You win!",
		},
		{
			name:    "both naturals push",
			cards:   "AhKsAdQc",
			state:   RoundOver,
			outcome: OutcomePushBlackjack,
			message: "Push! Both have Blackjack.",
		},
		{
			name:    "dealer natural alone does not end the round",
			cards:   "9h8sAdQc",
			state:   PlayerTurn,
			outcome: OutcomeNone,
			message: "Your turn. Hit or Stand?",
		},
		{
			name:    "ordinary deal",
			cards:   "Th5s9d7c",
			state:   PlayerTurn,
			outcome: OutcomeNone,
			message: "Your turn. Hit or Stand?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := stackedEngine(t, tt.cards)
			require.NoError(t, e.NewGame())

			s := e.Snapshot()
			assert.Equal(t, tt.state, s.State)
			assert.Equal(t, tt.outcome, s.Outcome)
			assert.Equal(t, tt.message, s.Message)
		})
	}
}

func TestBlackjackScenarioScores(t *testing.T) {
	e := stackedEngine(t, "AhKs9d8c")
	require.NoError(t, e.NewGame())

	s := e.Snapshot()
	assert.Equal(t, 21, s.PlayerScore)
	assert.Equal(t, 17, s.DealerScore)
	assert.Equal(t, deck.MustParseCards("AhKs"), []deck.Card(s.PlayerHand))
	assert.Equal(t, deck.MustParseCards("9d8c"), []deck.Card(s.DealerHand))
}

func TestHitBust(t *testing.T) {
	e := stackedEngine(t, "9h6sTd7c9c")
	require.NoError(t, e.NewGame())
	require.Equal(t, 15, e.Snapshot().PlayerScore)

	require.NoError(t, e.Hit())

	s := e.Snapshot()
	assert.Equal(t, 24, s.PlayerScore)
	assert.Equal(t, RoundOver, s.State)
	assert.Equal(t, OutcomePlayerBust, s.Outcome)
	assert.Equal(t, "Bust! You lose.", s.Message)
	assert.Len(t, s.DealerHand, 2, "dealer must not draw after a player bust")
}

func TestHitWithoutBustStaysInPlayerTurn(t *testing.T) {
	e := stackedEngine(t, "2h2sTd7c2c2d3h3s3c4h")
	require.NoError(t, e.NewGame())

	want := []int{6, 8, 11, 14, 17, 21}
	for i, score := range want {
		before := len(e.Snapshot().PlayerHand)
		require.NoError(t, e.Hit())

		s := e.Snapshot()
		assert.Equal(t, PlayerTurn, s.State, "hit %d", i+1)
		assert.Equal(t, before+1, len(s.PlayerHand), "hit %d", i+1)
		assert.Equal(t, score, s.PlayerScore, "hit %d", i+1)
	}
}

func TestStandDealerOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		cards   string
		outcome Outcome
		message string
		dealer  int
	}{
		{
			name:    "dealer draws from sixteen and wins",
			cards:   "Th8sTd6c3h",
			outcome: OutcomeDealerWin,
			message: "Dealer wins!",
			dealer:  19,
		},
		{
			name:    "dealer draws from sixteen and busts",
			cards:   "Th8sTd6cKh",
			outcome: OutcomeDealerBust,
			message: "Dealer busts! You win!",
			dealer:  26,
		},
		{
			name:    "dealer draws several cards",
			cards:   "Th8s2d3c2h2c4s4d",
			outcome: OutcomePlayerWin,
			message: "You win!",
			dealer:  17,
		},
		{
			name:    "dealer stands on seventeen and ties",
			cards:   "Th7sTd7c",
			outcome: OutcomePush,
			message: "Push! It's a tie.",
			dealer:  17,
		},
		{
			name:    "dealer stands on soft seventeen",
			cards:   "Th9sAd6c",
			outcome: OutcomePlayerWin,
			message: "You win!",
			dealer:  17,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := stackedEngine(t, tt.cards)
			require.NoError(t, e.NewGame())
			e.Stand()

			s := e.Snapshot()
			assert.Equal(t, RoundOver, s.State)
			assert.Equal(t, tt.outcome, s.Outcome)
			assert.Equal(t, tt.message, s.Message)
			assert.Equal(t, tt.dealer, s.DealerScore)
		})
	}
}

func TestIllegalActionsAreNoOps(t *testing.T) {
	t.Run("before first round", func(t *testing.T) {
		e := stackedEngine(t, "Th8sTd6c3h")
		before := e.Snapshot()

		assert.NoError(t, e.Hit())
		e.Stand()

		assert.Equal(t, before, e.Snapshot())
	})

	t.Run("after round over", func(t *testing.T) {
		e := stackedEngine(t, "9h6sTd7c9c2h")
		require.NoError(t, e.NewGame())
		require.NoError(t, e.Hit())
		before := e.Snapshot()
		require.Equal(t, RoundOver, before.State)

		assert.NoError(t, e.Hit())
		e.Stand()

		assert.Equal(t, before, e.Snapshot())
	})

	t.Run("during dealer turn", func(t *testing.T) {
		mClock := quartz.NewMock(t)
		e := stackedEngine(t, "Th8sTd6c3h2c", WithClock(mClock), WithDealerDelay(time.Second))
		require.NoError(t, e.NewGame())
		e.Stand()
		before := e.Snapshot()
		require.Equal(t, DealerTurn, before.State)

		assert.NoError(t, e.Hit())
		e.Stand()

		assert.Equal(t, before, e.Snapshot())
	})
}

func TestPacedDealerPlay(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mClock := quartz.NewMock(t)
	e := stackedEngine(t, "Th8s2d3c2h2c4s4d", WithClock(mClock), WithDealerDelay(time.Second))
	require.NoError(t, e.NewGame())

	e.Stand()
	s := e.Snapshot()
	require.Equal(t, DealerTurn, s.State)
	assert.Equal(t, "Dealer's turn...", s.Message)
	assert.Len(t, s.DealerHand, 2, "no draw before the delay elapses")

	// Dealer: 5 -> 7 -> 9 -> 13 -> 17, one card per tick
	for _, want := range []int{7, 9, 13} {
		mClock.Advance(time.Second).MustWait(ctx)
		s = e.Snapshot()
		require.Equal(t, DealerTurn, s.State)
		assert.Equal(t, want, s.DealerScore)
	}

	mClock.Advance(time.Second).MustWait(ctx)
	s = e.Snapshot()
	assert.Equal(t, RoundOver, s.State)
	assert.Equal(t, 17, s.DealerScore)
	assert.Equal(t, OutcomePlayerWin, s.Outcome)
}

func TestNewGameCancelsPendingDealerDraw(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	decks := [][]deck.Card{
		deck.MustParseCards("Th8sTd6c3h"),
		deck.MustParseCards("9h6sTd7c"),
	}
	calls := 0
	source := func() *deck.Deck {
		d := deck.NewStacked(decks[calls]...)
		calls++
		return d
	}

	mClock := quartz.NewMock(t)
	e := stackedEngine(t, "", WithClock(mClock), WithDealerDelay(time.Second), WithDeckSource(source))
	require.NoError(t, e.NewGame())
	e.Stand()
	require.Equal(t, DealerTurn, e.Snapshot().State)

	require.NoError(t, e.NewGame())
	fresh := e.Snapshot()
	require.Equal(t, PlayerTurn, fresh.State)

	mClock.Advance(time.Second).MustWait(ctx)
	assert.Equal(t, fresh, e.Snapshot(), "stale dealer draw must not touch the new round")
}

func TestCloseCancelsPendingDealerDraw(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mClock := quartz.NewMock(t)
	e := stackedEngine(t, "Th8sTd6c3h", WithClock(mClock), WithDealerDelay(time.Second))
	require.NoError(t, e.NewGame())
	e.Stand()
	before := e.Snapshot()

	e.Close()
	mClock.Advance(time.Second).MustWait(ctx)
	assert.Equal(t, before, e.Snapshot())

	assert.NoError(t, e.NewGame())
	assert.Equal(t, before, e.Snapshot(), "closed engine ignores new games")
}

func TestDeckExhaustion(t *testing.T) {
	t.Run("on deal", func(t *testing.T) {
		e := stackedEngine(t, "ThTs2d")
		err := e.NewGame()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDeckExhausted))
		assert.True(t, errors.Is(err, deck.ErrEmpty))

		s := e.Snapshot()
		assert.Equal(t, RoundOver, s.State)
		assert.Equal(t, OutcomeDeckExhausted, s.Outcome)
		assert.Equal(t, "Deck exhausted. Start a new game.", s.Message)
	})

	t.Run("on hit", func(t *testing.T) {
		e := stackedEngine(t, "2h3s9d8c")
		require.NoError(t, e.NewGame())

		err := e.Hit()
		require.ErrorIs(t, err, ErrDeckExhausted)
		s := e.Snapshot()
		assert.Equal(t, RoundOver, s.State)
		assert.Equal(t, OutcomeDeckExhausted, s.Outcome)
		assert.Len(t, s.PlayerHand, 2)
	})

	t.Run("on dealer draw", func(t *testing.T) {
		e := stackedEngine(t, "Th8sTd6c")
		require.NoError(t, e.NewGame())
		e.Stand()

		s := e.Snapshot()
		assert.Equal(t, RoundOver, s.State)
		assert.Equal(t, OutcomeDeckExhausted, s.Outcome)
		assert.Equal(t, ResultNone, s.Outcome.Result())
	})
}

func TestEventsArePublishedInOrder(t *testing.T) {
	rec := &eventRecorder{}
	e := stackedEngine(t, "Th5sTd6c2h3s")
	e.Subscribe(rec)

	require.NoError(t, e.NewGame())
	require.NoError(t, e.Hit())
	e.Stand()

	assert.Equal(t, []EventType{
		EventTypeRoundStart,
		EventTypeCardDealt,
		EventTypeStateChange,
		EventTypeCardDealt,
		EventTypeRoundEnd,
	}, rec.types())

	last := rec.events[len(rec.events)-1]
	end, ok := last.(RoundEndEvent)
	require.True(t, ok)
	// Player 17, dealer 16 + 3 = 19
	assert.Equal(t, OutcomeDealerWin, end.Outcome)
	assert.Equal(t, RoundOver, end.Snapshot().State)

	dealt := rec.events[3].(CardDealtEvent)
	assert.Equal(t, PartyDealer, dealt.Party)
	assert.Equal(t, deck.NewCard(deck.Spades, deck.Three), dealt.Card)

	e.Unsubscribe(rec)
	require.NoError(t, e.NewGame())
	assert.Len(t, rec.types(), 5)
}

func TestNaturalPublishesStartThenEnd(t *testing.T) {
	rec := &eventRecorder{}
	e := stackedEngine(t, "AhKs9d8c")
	e.Subscribe(rec)

	require.NoError(t, e.NewGame())
	assert.Equal(t, []EventType{EventTypeRoundStart, EventTypeRoundEnd}, rec.types())
}

func TestEventTimestampsUseEngineClock(t *testing.T) {
	mClock := quartz.NewMock(t)
	rec := &eventRecorder{}
	e := stackedEngine(t, "Th5sTd6c", WithClock(mClock))
	e.Subscribe(rec)

	require.NoError(t, e.NewGame())
	require.Len(t, rec.events, 1)
	assert.Equal(t, mClock.Now(), rec.events[0].Timestamp())
}
