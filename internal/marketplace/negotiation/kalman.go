package negotiation

import (
	"github.com/coophive/marketnode/internal/marketplace/market"
)

// KalmanPolicy treats the counterpart's revealed price as a noisy
// measurement of its true acceptable valuation. Estimate and variance are
// per-instance state carried across rounds of one negotiation.
type KalmanPolicy struct {
	estimate            float64
	variance            float64
	measurementVariance float64
}

func NewKalmanPolicy(initialEstimate, initialVariance, measurementVariance float64) *KalmanPolicy {
	return &KalmanPolicy{
		estimate:            initialEstimate,
		variance:            initialVariance,
		measurementVariance: measurementVariance,
	}
}

func (p *KalmanPolicy) Decide(m *market.Match, pctx Context) (Decision, error) {
	measurement := price(m)

	if favorable(pctx.Role, measurement, p.estimate) {
		return Accept(), nil
	}

	gain := p.variance / (p.variance + p.measurementVariance)

	// covariance update
	p.variance *= 1 - gain

	// state update, rounded to whole ledger units when emitted
	p.estimate = p.estimate*(1-gain) + gain*measurement

	return Counter(roundedAmounts(p.estimate)), nil
}

// Estimate exposes the current valuation estimate
func (p *KalmanPolicy) Estimate() float64 {
	return p.estimate
}

// Variance exposes the current estimate variance
func (p *KalmanPolicy) Variance() float64 {
	return p.variance
}
