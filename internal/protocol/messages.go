// Package protocol defines the JSON messages exchanged between the game
// server and the browser UI over a websocket.
package protocol

import (
	"encoding/json"
	"time"

	"github.com/lox/blackjack/internal/blackjack"
	"github.com/lox/blackjack/internal/deck"
)

// MessageType identifies the type of message
type MessageType string

const (
	// Client -> Server
	TypeAction MessageType = "action"

	// Server -> Client
	TypeState MessageType = "state"
	TypeError MessageType = "error"
)

// Player intents accepted in an Action message
const (
	ActionNewGame = "new_game"
	ActionHit     = "hit"
	ActionStand   = "stand"
)

// Error codes sent in Error messages
const (
	CodeInvalidMessage = "invalid_message"
	CodeUnknownAction  = "unknown_action"
	CodeDeckExhausted  = "deck_exhausted"
)

// Message is the envelope for every websocket frame
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// Client -> Server Messages

// Action carries one user intent
type Action struct {
	Action string `json:"action"`
}

// Server -> Client Messages

// Card is a face-up card or a hidden placeholder
type Card struct {
	Rank   string `json:"rank,omitempty"`
	Suit   string `json:"suit,omitempty"`
	Red    bool   `json:"red,omitempty"`
	Hidden bool   `json:"hidden,omitempty"`
}

// Hand is one party's cards and score. Score is nil while hidden.
type Hand struct {
	Cards  []Card `json:"cards"`
	Score  *int   `json:"score"`
	Hidden bool   `json:"hidden,omitempty"`
}

// State is the full view of a round as the UI may render it
type State struct {
	RoundID       string `json:"roundId,omitempty"`
	State         string `json:"state"`
	Outcome       string `json:"outcome"`
	Result        string `json:"result"`
	Message       string `json:"message"`
	Player        Hand   `json:"player"`
	Dealer        Hand   `json:"dealer"`
	DeckRemaining int    `json:"deckRemaining"`
}

// Error reports a transport level problem with a client frame
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewCard converts a deck card to its wire form
func NewCard(c deck.Card) Card {
	return Card{Rank: c.Rank.String(), Suit: c.Suit.String(), Red: c.IsRed()}
}

// StateFromSnapshot converts a round snapshot to the wire form. During the
// player's turn the dealer's first card and score are withheld.
func StateFromSnapshot(s blackjack.Snapshot) State {
	hidden := s.HoleCardHidden()

	dealer := Hand{Cards: make([]Card, len(s.DealerHand)), Hidden: hidden}
	for i, c := range s.DealerHand {
		if hidden && i == 0 {
			dealer.Cards[i] = Card{Hidden: true}
			continue
		}
		dealer.Cards[i] = NewCard(c)
	}
	if !hidden {
		score := s.DealerScore
		dealer.Score = &score
	}

	player := Hand{Cards: make([]Card, len(s.PlayerHand))}
	for i, c := range s.PlayerHand {
		player.Cards[i] = NewCard(c)
	}
	playerScore := s.PlayerScore
	player.Score = &playerScore

	return State{
		RoundID:       s.RoundID,
		State:         s.State.String(),
		Outcome:       s.Outcome.String(),
		Result:        string(s.Outcome.Result()),
		Message:       s.Message,
		Player:        player,
		Dealer:        dealer,
		DeckRemaining: s.DeckRemaining,
	}
}
