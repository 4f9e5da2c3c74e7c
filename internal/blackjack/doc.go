// Package blackjack implements scoring and the round state machine for a
// single-player game of Blackjack against an automated dealer.
//
// The main type is Engine, which owns exactly one Round at a time. A round is
// created by NewGame, advanced by Hit and Stand, and finished by the dealer's
// automatic play. Scores are never stored; they are derived from the hands
// whenever a Snapshot is taken.
//
// # Basic Usage
//
//	e := blackjack.NewEngine(randutil.New(42), blackjack.WithDealerDelay(0))
//	_ = e.NewGame()
//	_ = e.Hit()
//	e.Stand()
//	s := e.Snapshot()
//	fmt.Println(s.Message, s.PlayerScore, s.DealerScore)
//
// # Dealer Pacing
//
// With a non-zero dealer delay each dealer draw is scheduled on the engine's
// quartz.Clock. Starting a new round or closing the engine cancels the pending
// draw. Tests inject quartz.NewMock to step the dealer deterministically.
//
// # Illegal Actions
//
// Hit and Stand outside PlayerTurn are silent no-ops: nothing in the round
// changes and no error is returned.
package blackjack
