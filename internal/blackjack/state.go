package blackjack

// State gates which actions are legal in a round
type State int

const (
	// RoundOver is the zero value so an idle engine reports it before the first deal
	RoundOver State = iota
	PlayerTurn
	DealerTurn
)

func (s State) String() string {
	switch s {
	case RoundOver:
		return "round_over"
	case PlayerTurn:
		return "player_turn"
	case DealerTurn:
		return "dealer_turn"
	default:
		return "unknown"
	}
}

// Outcome records how a round finished
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomePlayerBlackjack
	OutcomePushBlackjack
	OutcomePlayerBust
	OutcomeDealerBust
	OutcomePlayerWin
	OutcomeDealerWin
	OutcomePush
	OutcomeDeckExhausted
)

// Result is the player's view of an outcome
type Result string

const (
	ResultNone Result = "none"
	ResultWin  Result = "win"
	ResultLoss Result = "loss"
	ResultPush Result = "push"
)

const (
	msgIdle       = `Click "New Game" to start!`
	msgPlayerTurn = "Your turn. Hit or Stand?"
	msgDealerTurn = "Dealer's turn..."
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomePlayerBlackjack:
		return "player_blackjack"
	case OutcomePushBlackjack:
		return "push_blackjack"
	case OutcomePlayerBust:
		return "player_bust"
	case OutcomeDealerBust:
		return "dealer_bust"
	case OutcomePlayerWin:
		return "player_win"
	case OutcomeDealerWin:
		return "dealer_win"
	case OutcomePush:
		return "push"
	case OutcomeDeckExhausted:
		return "deck_exhausted"
	default:
		return "unknown"
	}
}

// Message returns the text shown to the player when the round ends this way
func (o Outcome) Message() string {
	switch o {
	case OutcomePlayerBlackjack:
		return "Blackjack! You win!"
	case OutcomePushBlackjack:
		return "Push! Both have Blackjack."
	case OutcomePlayerBust:
		return "Bust! You lose."
	case OutcomeDealerBust:
		return "Dealer busts! You win!"
	case OutcomePlayerWin:
		return "You win!"
	case OutcomeDealerWin:
		return "Dealer wins!"
	case OutcomePush:
		return "Push! It's a tie."
	case OutcomeDeckExhausted:
		return "Deck exhausted. Start a new game."
	default:
		return msgIdle
	}
}

// Result maps the outcome to win, loss or push for the player.
// A natural pays the same as any other win.
func (o Outcome) Result() Result {
	switch o {
	case OutcomePlayerBlackjack, OutcomeDealerBust, OutcomePlayerWin:
		return ResultWin
	case OutcomePlayerBust, OutcomeDealerWin:
		return ResultLoss
	case OutcomePushBlackjack, OutcomePush:
		return ResultPush
	default:
		return ResultNone
	}
}

// message derives the status line from state and outcome
func message(s State, o Outcome) string {
	switch s {
	case PlayerTurn:
		return msgPlayerTurn
	case DealerTurn:
		return msgDealerTurn
	default:
		return o.Message()
	}
}

// compare settles a finished round where neither side has bust
func compare(player, dealer int) Outcome {
	switch {
	case player > dealer:
		return OutcomePlayerWin
	case dealer > player:
		return OutcomeDealerWin
	default:
		return OutcomePush
	}
}
