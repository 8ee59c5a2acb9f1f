// Package game implements the blackjack rules engine: cards, a shuffled
// shoe, hand scoring, the per-round state machine and settlement.
//
// A Round is created with a bet and the player's balance, deals two cards
// each and then accepts actions until it settles:
//
//	r, err := game.NewRound(id, 100, balance, game.WithRand(randutil.New(seed)))
//	if err != nil {
//	    return err
//	}
//	_ = r.Hit()
//	_ = r.Stand()
//	if s, ok := r.Settlement(); ok {
//	    fmt.Println(s.Delta)
//	}
//
// Round never touches money. Cost reports what an action would add to the
// stake so a caller can debit an external ledger before Apply commits it.
//
// # Deterministic Testing
//
// WithShoe accepts a NewStackedShoe so every card of a round is fixed:
//
//	shoe := game.NewStackedShoe(game.MustParseCards("As", "5h", "Kd", "9c")...)
//	r, _ := game.NewRound("t", 100, 1000, game.WithShoe(shoe))
package game
