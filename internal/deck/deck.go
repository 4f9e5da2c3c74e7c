package deck

import (
	"errors"
	rand "math/rand/v2"
)

// Size is the number of cards in a standard deck
const Size = 52

// ErrEmpty is returned when drawing from an exhausted deck
var ErrEmpty = errors.New("deck is empty")

// New returns all 52 cards in canonical order: suits Hearts, Diamonds, Clubs,
// Spades, and within each suit ranks 2 through Ace.
func New() []Card {
	cards := make([]Card, 0, Size)
	for _, suit := range Suits {
		for rank := Two; rank <= Ace; rank++ {
			cards = append(cards, NewCard(suit, rank))
		}
	}
	return cards
}

// Shuffle returns a Fisher-Yates permutation of cards. The input slice is
// left untouched.
func Shuffle(cards []Card, rng *rand.Rand) []Card {
	shuffled := make([]Card, len(cards))
	copy(shuffled, cards)
	for i := len(shuffled) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled
}

// Deck is a draw pile consumed from the front
type Deck struct {
	cards []Card
}

// NewDeck creates a freshly shuffled 52-card deck
func NewDeck(rng *rand.Rand) *Deck {
	return &Deck{cards: Shuffle(New(), rng)}
}

// NewStacked creates a deck that deals cards in exactly the given order
func NewStacked(cards ...Card) *Deck {
	d := &Deck{cards: make([]Card, len(cards))}
	copy(d.cards, cards)
	return d
}

// Draw removes and returns the top card from the deck
func (d *Deck) Draw() (Card, error) {
	if len(d.cards) == 0 {
		return Card{}, ErrEmpty
	}

	card := d.cards[0]
	d.cards = d.cards[1:]
	return card, nil
}

// Remaining returns the number of cards left in the deck
func (d *Deck) Remaining() int {
	return len(d.cards)
}

// Cards returns a copy of the undealt cards in draw order
func (d *Deck) Cards() []Card {
	out := make([]Card, len(d.cards))
	copy(out, d.cards)
	return out
}
