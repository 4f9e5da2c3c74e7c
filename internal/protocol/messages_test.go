package protocol

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/lox/blackjack/internal/blackjack"
	"github.com/lox/blackjack/internal/deck"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot(state blackjack.State, outcome blackjack.Outcome, player, dealer string) blackjack.Snapshot {
	p := blackjack.Hand(deck.MustParseCards(player))
	d := blackjack.Hand(deck.MustParseCards(dealer))
	return blackjack.Snapshot{
		RoundID:       "r1",
		State:         state,
		Outcome:       outcome,
		PlayerHand:    p,
		DealerHand:    d,
		PlayerScore:   p.Value(),
		DealerScore:   d.Value(),
		DeckRemaining: 48,
	}
}

func TestStateHidesHoleCardDuringPlayerTurn(t *testing.T) {
	s := StateFromSnapshot(snapshot(blackjack.PlayerTurn, blackjack.OutcomeNone, "Th5s", "AdKc"))

	require.Len(t, s.Dealer.Cards, 2)
	assert.True(t, s.Dealer.Hidden)
	assert.Equal(t, Card{Hidden: true}, s.Dealer.Cards[0])
	assert.Equal(t, Card{Rank: "K", Suit: "♣"}, s.Dealer.Cards[1])
	assert.Nil(t, s.Dealer.Score)

	require.NotNil(t, s.Player.Score)
	assert.Equal(t, 15, *s.Player.Score)
	assert.Equal(t, "player_turn", s.State)
	assert.Equal(t, "none", s.Result)

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"rank":"A"`, "hole card must not leak on the wire")
	assert.Contains(t, string(raw), `"score":null`)
}

func TestStateRevealsDealerWhenRoundOver(t *testing.T) {
	s := StateFromSnapshot(snapshot(blackjack.RoundOver, blackjack.OutcomeDealerWin, "Th8s", "AdKc"))

	assert.False(t, s.Dealer.Hidden)
	assert.Equal(t, Card{Rank: "A", Suit: "♦", Red: true}, s.Dealer.Cards[0])
	require.NotNil(t, s.Dealer.Score)
	assert.Equal(t, 21, *s.Dealer.Score)
	assert.Equal(t, "dealer_win", s.Outcome)
	assert.Equal(t, "loss", s.Result)
	assert.Equal(t, 48, s.DeckRemaining)
}

func TestMarshalUnmarshal(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	data, err := Marshal(&Action{Action: ActionHit}, now)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"action","data":{"action":"hit"},"timestamp":"2025-01-02T03:04:05Z"}`, string(data))

	payload, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, &Action{Action: ActionHit}, payload)
}

func TestUnmarshalErrors(t *testing.T) {
	_, err := Unmarshal([]byte(`not json`))
	assert.Error(t, err)

	_, err = Unmarshal([]byte(`{"type":"bogus","data":{}}`))
	assert.True(t, errors.Is(err, ErrUnknownMessageType))

	_, err = Unmarshal([]byte(`{"type":"action"}`))
	assert.Error(t, err)

	_, err = Marshal(struct{}{}, time.Now())
	assert.True(t, errors.Is(err, ErrUnknownMessageType))
}
