package deck

import (
	"fmt"
	"strings"
)

// Suit represents a card suit
type Suit int

const (
	Hearts Suit = iota
	Diamonds
	Clubs
	Spades
)

// Suits lists every suit in canonical deck order
var Suits = [...]Suit{Hearts, Diamonds, Clubs, Spades}

// String returns the suit symbol
func (s Suit) String() string {
	switch s {
	case Hearts:
		return "♥"
	case Diamonds:
		return "♦"
	case Clubs:
		return "♣"
	case Spades:
		return "♠"
	default:
		return "?"
	}
}

// IsRed returns true if the suit is red (Hearts or Diamonds)
func (s Suit) IsRed() bool {
	return s == Hearts || s == Diamonds
}

// Rank represents a card rank
type Rank int

const (
	Two Rank = iota + 2
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
)

// String returns the rank symbol as printed on the card face
func (r Rank) String() string {
	switch {
	case r >= Two && r <= Ten:
		return fmt.Sprintf("%d", int(r))
	case r == Jack:
		return "J"
	case r == Queen:
		return "Q"
	case r == King:
		return "K"
	case r == Ace:
		return "A"
	default:
		return "?"
	}
}

// IsFace returns true for J, Q and K
func (r Rank) IsFace() bool {
	return r >= Jack && r <= King
}

// Card is an immutable playing card
type Card struct {
	Suit Suit `json:"suit"`
	Rank Rank `json:"rank"`
}

// NewCard creates a new card
func NewCard(suit Suit, rank Rank) Card {
	return Card{Suit: suit, Rank: rank}
}

// String returns the string representation of a card (e.g., "A♠", "10♥")
func (c Card) String() string {
	return c.Rank.String() + c.Suit.String()
}

// IsRed returns true if the card is red
func (c Card) IsRed() bool {
	return c.Suit.IsRed()
}

// IsAce returns true if the card is an Ace
func (c Card) IsAce() bool {
	return c.Rank == Ace
}

// ParseCard parses a compact card such as "Ah", "Td" or "10c".
func ParseCard(s string) (Card, error) {
	if len(s) < 2 {
		return Card{}, fmt.Errorf("invalid card %q", s)
	}
	rank, err := parseRank(s[:len(s)-1])
	if err != nil {
		return Card{}, fmt.Errorf("invalid card %q: %w", s, err)
	}
	suit, err := parseSuit(s[len(s)-1])
	if err != nil {
		return Card{}, fmt.Errorf("invalid card %q: %w", s, err)
	}
	return NewCard(suit, rank), nil
}

// ParseCards parses a run of compact cards, e.g. "AhKs9d8c" or "10h 2c".
func ParseCards(s string) ([]Card, error) {
	s = strings.ReplaceAll(s, " ", "")
	cards := []Card{}
	for len(s) > 0 {
		n := 2
		if strings.HasPrefix(s, "10") {
			n = 3
		}
		if len(s) < n {
			return nil, fmt.Errorf("truncated card %q", s)
		}
		card, err := ParseCard(s[:n])
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
		s = s[n:]
	}
	return cards, nil
}

// MustParseCards is ParseCards that panics on error. Intended for tests.
func MustParseCards(s string) []Card {
	cards, err := ParseCards(s)
	if err != nil {
		panic(err)
	}
	return cards
}

func parseRank(s string) (Rank, error) {
	switch strings.ToUpper(s) {
	case "2":
		return Two, nil
	case "3":
		return Three, nil
	case "4":
		return Four, nil
	case "5":
		return Five, nil
	case "6":
		return Six, nil
	case "7":
		return Seven, nil
	case "8":
		return Eight, nil
	case "9":
		return Nine, nil
	case "T", "10":
		return Ten, nil
	case "J":
		return Jack, nil
	case "Q":
		return Queen, nil
	case "K":
		return King, nil
	case "A":
		return Ace, nil
	}
	return 0, fmt.Errorf("unknown rank %q", s)
}

func parseSuit(b byte) (Suit, error) {
	switch b {
	case 'h', 'H':
		return Hearts, nil
	case 'd', 'D':
		return Diamonds, nil
	case 'c', 'C':
		return Clubs, nil
	case 's', 'S':
		return Spades, nil
	}
	return 0, fmt.Errorf("unknown suit %q", b)
}
