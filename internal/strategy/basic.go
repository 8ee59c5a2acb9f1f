// Package strategy picks player actions for automated play.
package strategy

import (
	"github.com/lox/blackjack/internal/game"
)

// Strategy chooses the next action for a round waiting on the player.
type Strategy interface {
	Decide(snap game.Snapshot) game.Action
}

// chart cells
const (
	hit         = 'H'
	stand       = 'S'
	double      = 'D' // double, otherwise hit
	doubleStand = 'd' // double, otherwise stand
	split       = 'P'
	surrender   = 'R' // surrender, otherwise hit
)

// Columns are dealer upcards 2..10 then Ace.
var (
	hardChart = map[int]string{
		8:  "HHHHHHHHHH",
		9:  "HDDDDHHHHH",
		10: "DDDDDDDDHH",
		11: "DDDDDDDDDD",
		12: "HHSSSHHHHH",
		13: "SSSSSHHHHH",
		14: "SSSSSHHHHH",
		15: "SSSSSHHHRR",
		16: "SSSSSHHRRR",
		17: "SSSSSSSSSR",
	}

	// keyed by the non-Ace card's value
	softChart = map[int]string{
		2: "HHHDDHHHHH",
		3: "HHHDDHHHHH",
		4: "HHDDDHHHHH",
		5: "HHDDDHHHHH",
		6: "HDDDDHHHHH",
		7: "dddddSSHHH",
		8: "SSSSdSSSSS",
		9: "SSSSSSSSSS",
	}

	// keyed by card value, Ace = 11
	pairChart = map[int]string{
		2:  "PPPPPP----",
		3:  "PPPPPP----",
		4:  "---PP-----",
		5:  "----------",
		6:  "PPPPP-----",
		7:  "PPPPPP----",
		8:  "PPPPPPPPPP",
		9:  "PPPPP-PP--",
		10: "----------",
		11: "PPPPPPPPPP",
	}
)

// Basic is the multi-deck basic strategy for a dealer that hits soft 17
// with double after split allowed. Insurance is always declined.
type Basic struct{}

var _ Strategy = Basic{}

// Decide returns the chart action for the current hand, falling back when
// the preferred action is not available.
func (Basic) Decide(snap game.Snapshot) game.Action {
	if snap.Phase == game.PhaseAwaitingInsurance {
		return game.ActionDeclineInsurance
	}
	if snap.CurrentHandIndex < 0 || snap.CurrentHandIndex >= len(snap.Hands) || len(snap.Dealer.Cards) == 0 {
		return game.ActionStand
	}
	hand := snap.Hands[snap.CurrentHandIndex]
	col := column(snap.Dealer.Cards[0].Value)

	if hand.CanSplit && len(hand.Cards) == 2 {
		if row, ok := pairChart[hand.Cards[0].Value]; ok && row[col] == split {
			return game.ActionSplit
		}
	}

	var cell byte
	switch {
	case hand.Soft && hand.Score <= 20:
		cell = lookup(softChart, hand.Score-11, col, hit)
	case hand.Score <= 8:
		cell = hit
	case hand.Score >= 17 && !(hand.Score == 17 && hand.CanSurrender):
		cell = stand
	default:
		cell = lookup(hardChart, hand.Score, col, stand)
	}
	return resolve(cell, hand)
}

func column(upcard int) int {
	if upcard == 11 {
		return 9
	}
	return upcard - 2
}

func lookup(chart map[int]string, key, col int, fallback byte) byte {
	row, ok := chart[key]
	if !ok || col < 0 || col >= len(row) {
		return fallback
	}
	return row[col]
}

func resolve(cell byte, hand game.HandView) game.Action {
	switch cell {
	case double:
		if hand.CanDouble {
			return game.ActionDouble
		}
		return game.ActionHit
	case doubleStand:
		if hand.CanDouble {
			return game.ActionDouble
		}
		return game.ActionStand
	case surrender:
		if hand.CanSurrender {
			return game.ActionSurrender
		}
		if hand.Score >= 17 {
			return game.ActionStand
		}
		return game.ActionHit
	case hit:
		return game.ActionHit
	default:
		return game.ActionStand
	}
}

// Dealer mimics the house: hit below 17, stand otherwise, never double or
// split. Useful as a baseline.
type Dealer struct{}

var _ Strategy = Dealer{}

// Decide hits below 17
func (Dealer) Decide(snap game.Snapshot) game.Action {
	if snap.Phase == game.PhaseAwaitingInsurance {
		return game.ActionDeclineInsurance
	}
	if snap.CurrentHandIndex < 0 || snap.CurrentHandIndex >= len(snap.Hands) {
		return game.ActionStand
	}
	if snap.Hands[snap.CurrentHandIndex].Score < 17 {
		return game.ActionHit
	}
	return game.ActionStand
}

// ByName returns a strategy by its CLI name
func ByName(name string) (Strategy, bool) {
	switch name {
	case "basic", "":
		return Basic{}, true
	case "dealer":
		return Dealer{}, true
	}
	return nil, false
}
