package strategy

import (
	rand "math/rand/v2"

	"github.com/lox/blackjack/internal/randutil"
)

func randFor(seed int64) *rand.Rand {
	return randutil.New(seed)
}
