package blackjack

import (
	"strings"

	"github.com/lox/blackjack/internal/deck"
)

const (
	// BlackjackValue is the best possible hand value
	BlackjackValue = 21
	// DealerStandsOn is the dealer's stopping threshold
	DealerStandsOn = 17

	aceDowngrade = 10
)

// CardValue returns the nominal value of a rank: Ace 11, faces 10, pips their number.
func CardValue(r deck.Rank) int {
	switch {
	case r == deck.Ace:
		return 11
	case r.IsFace():
		return 10
	default:
		return int(r)
	}
}

// HandValue returns the best blackjack value of cards. Aces are recounted as
// 1 one at a time while the total exceeds 21.
func HandValue(cards []deck.Card) int {
	value, _ := handValue(cards)
	return value
}

// handValue also reports how many aces are still counted as 11
func handValue(cards []deck.Card) (value, softAces int) {
	for _, c := range cards {
		value += CardValue(c.Rank)
		if c.IsAce() {
			softAces++
		}
	}
	for value > BlackjackValue && softAces > 0 {
		value -= aceDowngrade
		softAces--
	}
	return value, softAces
}

// Hand is an ordered, append-only list of cards held by one party
type Hand []deck.Card

// Value returns the best value of the hand
func (h Hand) Value() int {
	return HandValue(h)
}

// IsBust reports whether the hand is over 21
func (h Hand) IsBust() bool {
	return h.Value() > BlackjackValue
}

// IsBlackjack reports a natural: two cards totalling 21
func (h Hand) IsBlackjack() bool {
	return len(h) == 2 && h.Value() == BlackjackValue
}

// IsSoft reports whether an ace is still being counted as 11
func (h Hand) IsSoft() bool {
	_, soft := handValue(h)
	return soft > 0
}

// Clone returns an independent copy of the hand
func (h Hand) Clone() Hand {
	if h == nil {
		return Hand{}
	}
	out := make(Hand, len(h))
	copy(out, h)
	return out
}

func (h Hand) String() string {
	parts := make([]string, len(h))
	for i, c := range h {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}
