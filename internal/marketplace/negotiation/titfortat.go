package negotiation

import (
	"math/big"

	"github.com/coophive/marketnode/internal/marketplace/market"
)

// TitForTatPolicy mirrors the counterpart's relative concessions: if the
// incoming price moved by some ratio, the reply moves by the same ratio,
// clamped to the floor/ceiling bounds.
type TitForTatPolicy struct {
	delta    int
	floor    *big.Int
	ceil     *big.Int
	incoming []float64
	lastOut  float64
}

func NewTitForTatPolicy(delta int, floor, ceil *big.Int) *TitForTatPolicy {
	if delta < 1 {
		delta = 1
	}
	return &TitForTatPolicy{
		delta: delta,
		floor: new(big.Int).Set(floor),
		ceil:  new(big.Int).Set(ceil),
	}
}

func (p *TitForTatPolicy) Decide(m *market.Match, pctx Context) (Decision, error) {
	in := price(m)
	p.incoming = append(p.incoming, in)

	floor, _ := new(big.Float).SetInt(p.floor).Float64()
	ceil, _ := new(big.Float).SetInt(p.ceil).Float64()

	var out float64
	if len(p.incoming) < 2 {
		// opening stance: ask for this side's best bound
		if pctx.Role == market.RoleBuyer {
			out = floor
		} else {
			out = ceil
		}
	} else {
		d := p.delta
		if d > len(p.incoming)-1 {
			d = len(p.incoming) - 1
		}
		prev := p.incoming[len(p.incoming)-d-1]
		last := p.incoming[len(p.incoming)-d]
		ratio := 1.0
		if last != 0 {
			ratio = prev / last
		}
		out = clamp(ratio*p.lastOut, floor, ceil)
	}
	p.lastOut = out

	if favorable(pctx.Role, in, out) {
		return Accept(), nil
	}
	return Counter(roundedAmounts(out)), nil
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
