package negotiation

import (
	"math/big"
	"testing"
	"time"

	"github.com/coophive/marketnode/internal/lib"
	"github.com/coophive/marketnode/internal/marketplace/market"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func matchWithPrice(t *testing.T, price int64) *market.Match {
	t.Helper()
	m := &market.Match{
		SellerAddr:           lib.GetRandomAddr(),
		BuyerAddr:            lib.GetRandomAddr(),
		ResourceOfferID:      common.HexToHash("0x01"),
		JobOfferID:           common.HexToHash("0x02"),
		ExpectedInstructions: 100,
		ExpectedBenefit:      big.NewInt(100000),
		Terms: market.Terms{
			PricePerInstruction:          big.NewInt(price),
			BuyerDeposit:                 big.NewInt(5),
			Timeout:                      10 * time.Second,
			TimeoutDeposit:               big.NewInt(3),
			CheatingCollateralMultiplier: big.NewInt(50),
		},
	}
	require.NoError(t, m.Seal())
	return m
}

func TestKalmanUpdateMovesTowardMeasurement(t *testing.T) {
	p := NewKalmanPolicy(300, 10, 5)
	pctx := Context{Role: market.RoleSeller, Now: time.Now()}

	// incoming 250 is below the seller's estimate of 300, so counter
	d, err := p.Decide(matchWithPrice(t, 250), pctx)
	require.NoError(t, err)
	require.Equal(t, DecisionCounter, d.Kind)

	require.Greater(t, p.Estimate(), 250.0)
	require.Less(t, p.Estimate(), 300.0)
	require.Less(t, p.Variance(), 10.0)

	counter := d.Amounts[0].Int64()
	require.Greater(t, counter, int64(250))
	require.Less(t, counter, int64(300))
}

func TestKalmanAcceptsFavorablePrice(t *testing.T) {
	seller := NewKalmanPolicy(300, 10, 5)
	d, err := seller.Decide(matchWithPrice(t, 350), Context{Role: market.RoleSeller, Now: time.Now()})
	require.NoError(t, err)
	require.Equal(t, DecisionAccept, d.Kind)

	buyer := NewKalmanPolicy(300, 10, 5)
	d, err = buyer.Decide(matchWithPrice(t, 250), Context{Role: market.RoleBuyer, Now: time.Now()})
	require.NoError(t, err)
	require.Equal(t, DecisionAccept, d.Kind)
}

func TestKalmanVarianceShrinksEachRound(t *testing.T) {
	p := NewKalmanPolicy(300, 10, 5)
	pctx := Context{Role: market.RoleSeller, Now: time.Now()}

	last := p.Variance()
	for _, price := range []int64{250, 260, 270} {
		_, err := p.Decide(matchWithPrice(t, price), pctx)
		require.NoError(t, err)
		require.Less(t, p.Variance(), last)
		last = p.Variance()
	}
}

func TestTimeDecayLapsesPastDeadline(t *testing.T) {
	start := time.Now()
	p := NewTimeDecayPolicy(start, 10*time.Second, 1, 0.1, big.NewInt(10), big.NewInt(100), SchedulePoly)

	d, err := p.Decide(matchWithPrice(t, 50), Context{Role: market.RoleBuyer, Now: start.Add(11 * time.Second)})
	require.NoError(t, err)
	require.Equal(t, DecisionNoOffer, d.Kind)
}

func TestTimeDecayBuyerConcedesUpward(t *testing.T) {
	start := time.Now()
	p := NewTimeDecayPolicy(start, 10*time.Second, 1, 0.1, big.NewInt(10), big.NewInt(100), SchedulePoly)

	early, err := p.Decide(matchWithPrice(t, 200), Context{Role: market.RoleBuyer, Now: start.Add(time.Second)})
	require.NoError(t, err)
	require.Equal(t, DecisionCounter, early.Kind)

	late, err := p.Decide(matchWithPrice(t, 200), Context{Role: market.RoleBuyer, Now: start.Add(9 * time.Second)})
	require.NoError(t, err)
	require.Equal(t, DecisionCounter, late.Kind)

	// the buyer's counter rises toward the ceiling as the deadline nears
	require.Greater(t, late.Amounts[0].Int64(), early.Amounts[0].Int64())
}

func TestTimeDecayAcceptsFavorablePrice(t *testing.T) {
	start := time.Now()
	p := NewTimeDecayPolicy(start, 10*time.Second, 1, 0.1, big.NewInt(10), big.NewInt(100), ScheduleExp)

	// price below the buyer's early target is immediately acceptable
	d, err := p.Decide(matchWithPrice(t, 10), Context{Role: market.RoleBuyer, Now: start.Add(time.Second)})
	require.NoError(t, err)
	require.Equal(t, DecisionAccept, d.Kind)
}

func TestParseSchedule(t *testing.T) {
	s, err := ParseSchedule("poly")
	require.NoError(t, err)
	require.Equal(t, SchedulePoly, s)

	s, err = ParseSchedule("exp")
	require.NoError(t, err)
	require.Equal(t, ScheduleExp, s)

	_, err = ParseSchedule("linear")
	require.Error(t, err)
}

func TestThresholdDecisionBands(t *testing.T) {
	pctx := Context{Role: market.RoleBuyer, Now: time.Now()}

	// buyer utility is negative in cost, so cheap accepts and dear rejects
	p := NewThresholdPolicy(BuyerWeights(), -500, -5000, 0.1)

	d, err := p.Decide(matchWithPrice(t, 1), pctx)
	require.NoError(t, err)
	require.Equal(t, DecisionAccept, d.Kind)

	d, err = p.Decide(matchWithPrice(t, 100), pctx)
	require.NoError(t, err)
	require.Equal(t, DecisionReject, d.Kind)

	d, err = p.Decide(matchWithPrice(t, 20), pctx)
	require.NoError(t, err)
	require.Equal(t, DecisionCounter, d.Kind)
	// the buyer counters below the incoming price
	require.Less(t, d.Amounts[0].Int64(), int64(20))
}

func TestThresholdSellerCountersUpward(t *testing.T) {
	p := NewThresholdPolicy(SellerWeights(), 5000, 100, 0.1)

	d, err := p.Decide(matchWithPrice(t, 20), Context{Role: market.RoleSeller, Now: time.Now()})
	require.NoError(t, err)
	require.Equal(t, DecisionCounter, d.Kind)
	require.Greater(t, d.Amounts[0].Int64(), int64(20))
}

func TestTitForTatOpensAtOwnBound(t *testing.T) {
	buyer := NewTitForTatPolicy(1, big.NewInt(10), big.NewInt(100))
	d, err := buyer.Decide(matchWithPrice(t, 50), Context{Role: market.RoleBuyer, Now: time.Now()})
	require.NoError(t, err)
	require.Equal(t, DecisionCounter, d.Kind)
	require.Equal(t, int64(10), d.Amounts[0].Int64())

	seller := NewTitForTatPolicy(1, big.NewInt(10), big.NewInt(100))
	d, err = seller.Decide(matchWithPrice(t, 50), Context{Role: market.RoleSeller, Now: time.Now()})
	require.NoError(t, err)
	require.Equal(t, DecisionCounter, d.Kind)
	require.Equal(t, int64(100), d.Amounts[0].Int64())
}

func TestTitForTatMirrorsConcessionRatio(t *testing.T) {
	p := NewTitForTatPolicy(1, big.NewInt(10), big.NewInt(200))
	pctx := Context{Role: market.RoleSeller, Now: time.Now()}

	d, err := p.Decide(matchWithPrice(t, 100), pctx)
	require.NoError(t, err)
	require.Equal(t, int64(200), d.Amounts[0].Int64())

	// the buyer moved 100 -> 110 (ratio 100/110), so the seller moves
	// 200 down by the same ratio, clamped to the bounds
	d, err = p.Decide(matchWithPrice(t, 110), pctx)
	require.NoError(t, err)
	require.Equal(t, DecisionCounter, d.Kind)
	require.Equal(t, int64(182), d.Amounts[0].Int64())
}

func TestSessionRoundBudget(t *testing.T) {
	now := time.Now()
	s := NewSession(common.HexToHash("0x01"), []common.Hash{common.HexToHash("0x02")}, now, 0, 3)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.BeginRound(now))
	}
	require.ErrorIs(t, s.BeginRound(now), ErrRoundBudgetExceeded)
	require.Equal(t, 3, s.Rounds())
}

func TestSessionDeadline(t *testing.T) {
	now := time.Now()
	s := NewSession(common.HexToHash("0x01"), nil, now, 10*time.Second, 100)

	require.NoError(t, s.BeginRound(now.Add(5*time.Second)))
	require.ErrorIs(t, s.BeginRound(now.Add(11*time.Second)), ErrNegotiationLapsed)
}

func TestSessionTermination(t *testing.T) {
	now := time.Now()
	offerID := common.HexToHash("0x02")
	s := NewSession(common.HexToHash("0x01"), []common.Hash{offerID}, now, 0, 5)

	require.True(t, s.References(offerID))
	require.False(t, s.References(common.HexToHash("0x03")))

	s.Terminate()
	require.True(t, s.Terminated())
	require.ErrorIs(t, s.BeginRound(now), ErrNegotiationLapsed)
}
