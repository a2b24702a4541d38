package negotiation

import (
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/coophive/marketnode/internal/marketplace/market"
)

// Schedule selects the concession curve shape of the time-decay policy
type Schedule uint8

const (
	SchedulePoly Schedule = iota
	ScheduleExp
)

func ParseSchedule(s string) (Schedule, error) {
	switch s {
	case "poly", "":
		return SchedulePoly, nil
	case "exp":
		return ScheduleExp, nil
	default:
		return 0, fmt.Errorf("unknown concession schedule %q", s)
	}
}

// TimeDecayPolicy concedes along a time curve between a floor and a
// ceiling bound: the buyer's counter rises and the seller's falls toward
// an interior point as the deadline approaches. Past the deadline the
// negotiation lapses with NoOffer instead of Reject.
type TimeDecayPolicy struct {
	startedAt time.Time
	tMax      time.Duration
	beta      float64
	k         float64
	floor     *big.Int
	ceil      *big.Int
	schedule  Schedule
}

func NewTimeDecayPolicy(startedAt time.Time, tMax time.Duration, beta, k float64, floor, ceil *big.Int, schedule Schedule) *TimeDecayPolicy {
	return &TimeDecayPolicy{
		startedAt: startedAt,
		tMax:      tMax,
		beta:      beta,
		k:         k,
		floor:     new(big.Int).Set(floor),
		ceil:      new(big.Int).Set(ceil),
		schedule:  schedule,
	}
}

func (p *TimeDecayPolicy) Decide(m *market.Match, pctx Context) (Decision, error) {
	t := pctx.Now.Sub(p.startedAt)
	if t > p.tMax {
		return NoOffer(), nil
	}

	alpha := p.alpha(t)
	floor, _ := new(big.Float).SetInt(p.floor).Float64()
	ceil, _ := new(big.Float).SetInt(p.ceil).Float64()

	var target float64
	if pctx.Role == market.RoleBuyer {
		target = floor + alpha*(ceil-floor)
	} else {
		target = floor + (1-alpha)*(ceil-floor)
	}

	incoming := price(m)
	if favorable(pctx.Role, incoming, target) {
		return Accept(), nil
	}
	return Counter(roundedAmounts(target)), nil
}

func (p *TimeDecayPolicy) alpha(t time.Duration) float64 {
	x := t.Seconds() / p.tMax.Seconds()
	switch p.schedule {
	case ScheduleExp:
		return math.Pow(p.k, math.Pow(1-x, p.beta))
	default:
		return p.k + (1-p.k)*math.Pow(x, 1/p.beta)
	}
}
