package negotiation

import (
	"math"
	"math/big"

	"github.com/coophive/marketnode/internal/marketplace/market"
)

// Weights score the match terms into a scalar utility. Cost-side weights
// are negative for a buyer (lower cost, higher utility) and positive on
// price for a seller.
type Weights struct {
	Price          float64
	BuyerDeposit   float64
	Timeout        float64
	TimeoutDeposit float64
}

func BuyerWeights() Weights {
	return Weights{Price: -1, BuyerDeposit: -0.1, Timeout: -0.01, TimeoutDeposit: -0.1}
}

func SellerWeights() Weights {
	return Weights{Price: 1, BuyerDeposit: 0.1, Timeout: -0.01, TimeoutDeposit: -0.1}
}

// ThresholdPolicy accepts above TAccept, rejects below TReject and
// otherwise counters with the price shifted by a fixed concession factor
// toward this side's preference.
type ThresholdPolicy struct {
	weights    Weights
	tAccept    float64
	tReject    float64
	concession float64
}

func NewThresholdPolicy(weights Weights, tAccept, tReject, concession float64) *ThresholdPolicy {
	return &ThresholdPolicy{
		weights:    weights,
		tAccept:    tAccept,
		tReject:    tReject,
		concession: concession,
	}
}

func (p *ThresholdPolicy) Decide(m *market.Match, pctx Context) (Decision, error) {
	u := p.utility(m)
	if u >= p.tAccept {
		return Accept(), nil
	}
	if u <= p.tReject {
		return Reject(), nil
	}

	in := price(m)
	var out float64
	if pctx.Role == market.RoleBuyer {
		out = in * (1 - p.concession)
	} else {
		out = in * (1 + p.concession)
	}
	return Counter(roundedAmounts(out)), nil
}

func (p *ThresholdPolicy) utility(m *market.Match) float64 {
	deposit, _ := new(big.Float).SetInt(m.Terms.BuyerDeposit).Float64()
	timeoutDeposit, _ := new(big.Float).SetInt(m.Terms.TimeoutDeposit).Float64()

	u := p.weights.Price * price(m) * float64(m.ExpectedInstructions)
	u += p.weights.BuyerDeposit * deposit
	u += p.weights.Timeout * m.Terms.Timeout.Seconds()
	u += p.weights.TimeoutDeposit * timeoutDeposit
	if math.IsNaN(u) {
		return 0
	}
	return u
}
