package negotiation

import (
	"errors"
	"math"
	"math/big"
	"time"

	"github.com/coophive/marketnode/internal/marketplace/market"
)

var (
	ErrNegotiationLapsed   = errors.New("negotiation lapsed")
	ErrRoundBudgetExceeded = errors.New("negotiation round budget exceeded")
)

// Context carries the local, per-call information a policy may consult.
// All negotiation state (estimates, timers) lives on the policy instance
// itself, never in process-wide variables.
type Context struct {
	Role market.Role
	Now  time.Time
}

// Policy decides how to respond to an incoming match proposal. Policies
// operate on the amounts vector of the terms; current implementations use
// index 0 (price per instruction) only.
type Policy interface {
	Decide(m *market.Match, pctx Context) (Decision, error)
}

// price extracts the scalar the current policies negotiate over
func price(m *market.Match) float64 {
	f, _ := new(big.Float).SetInt(m.Terms.PricePerInstruction).Float64()
	return f
}

// roundedAmounts builds a whole-unit (ledger-compatible) amounts vector
// from a fractional price estimate
func roundedAmounts(x float64) []*big.Int {
	v := int64(math.Round(x))
	if v < 1 {
		v = 1
	}
	return []*big.Int{big.NewInt(v)}
}

// favorable reports whether the incoming price is already at least as good
// as this side's target: buyers want prices at or below the target,
// sellers at or above.
func favorable(role market.Role, incoming, target float64) bool {
	if role == market.RoleBuyer {
		return incoming <= target
	}
	return incoming >= target
}
