package mediator

import (
	"math/big"
	"testing"

	"github.com/coophive/marketnode/internal/lib"
	"github.com/coophive/marketnode/internal/marketplace/market"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

type fixedVerifier struct {
	outcome Outcome
	calls   int
}

func (v *fixedVerifier) Verify(*market.Deal, *market.Result) (Outcome, error) {
	v.calls++
	return v.outcome, nil
}

func testDeal(method market.VerificationMethod, mediators ...common.Address) *market.Deal {
	return &market.Deal{
		ID: common.HexToHash("0xabc"),
		Terms: market.Terms{
			PricePerInstruction:          big.NewInt(1),
			BuyerDeposit:                 big.NewInt(5),
			TimeoutDeposit:               big.NewInt(3),
			CheatingCollateralMultiplier: big.NewInt(50),
			VerificationMethod:           method,
			Mediators:                    mediators,
		},
	}
}

func testResult(t *testing.T, dealID common.Hash) *market.Result {
	t.Helper()
	r, err := market.NewResult(dealID, 10)
	require.NoError(t, err)
	return r
}

func TestNoVerificationFastPath(t *testing.T) {
	fallback := &fixedVerifier{outcome: OutcomeIncorrect}
	m := NewMediator(fallback, lib.NewTestLogger())

	deal := testDeal(market.VerificationNone)
	outcome, err := m.Resolve(deal, testResult(t, deal.ID), 0)
	require.NoError(t, err)
	require.Equal(t, OutcomeCorrect, outcome)
	require.Zero(t, fallback.calls)
}

func TestRandomDrawIsDeterministic(t *testing.T) {
	judgeA, judgeB := lib.GetRandomAddr(), lib.GetRandomAddr()
	deal := testDeal(market.VerificationRandom, judgeA, judgeB)
	result := testResult(t, deal.ID)

	verdicts := map[common.Address]*fixedVerifier{
		judgeA: {outcome: OutcomeCorrect},
		judgeB: {outcome: OutcomeIncorrect},
	}

	m := NewMediator(AlwaysCorrect{}, lib.NewTestLogger())
	m.RegisterVerifier(judgeA, verdicts[judgeA])
	m.RegisterVerifier(judgeB, verdicts[judgeB])

	first, err := m.Resolve(deal, result, 7)
	require.NoError(t, err)

	// same deal, same round: same mediator every time
	for i := 0; i < 5; i++ {
		again, err := m.Resolve(deal, result, 7)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}

	// exactly one judge was consulted per resolution
	require.Equal(t, 6, verdicts[judgeA].calls+verdicts[judgeB].calls)
}

func TestRandomDrawVariesWithRound(t *testing.T) {
	judges := make([]common.Address, 8)
	for i := range judges {
		judges[i] = lib.GetRandomAddr()
	}
	deal := testDeal(market.VerificationRandom, judges...)

	indices := lib.NewSet[int]()
	for round := uint64(0); round < 32; round++ {
		indices.Add(selectIndex(deal.ID, round, len(judges)))
	}
	require.Greater(t, indices.Len(), 1)
}

func TestConsortiumMajority(t *testing.T) {
	judges := []common.Address{lib.GetRandomAddr(), lib.GetRandomAddr(), lib.GetRandomAddr()}
	deal := testDeal(market.VerificationConsortium, judges...)
	result := testResult(t, deal.ID)

	m := NewMediator(AlwaysCorrect{}, lib.NewTestLogger())
	m.RegisterVerifier(judges[0], &fixedVerifier{outcome: OutcomeCorrect})
	m.RegisterVerifier(judges[1], &fixedVerifier{outcome: OutcomeCorrect})
	m.RegisterVerifier(judges[2], &fixedVerifier{outcome: OutcomeIncorrect})

	outcome, err := m.Resolve(deal, result, 0)
	require.NoError(t, err)
	require.Equal(t, OutcomeCorrect, outcome)

	// flip one vote, the majority flips
	m.RegisterVerifier(judges[1], &fixedVerifier{outcome: OutcomeIncorrect})
	outcome, err = m.Resolve(deal, result, 0)
	require.NoError(t, err)
	require.Equal(t, OutcomeIncorrect, outcome)
}

func TestEmptyMediatorSetFallsBack(t *testing.T) {
	fallback := &fixedVerifier{outcome: OutcomeIncorrect}
	m := NewMediator(fallback, lib.NewTestLogger())

	deal := testDeal(market.VerificationRandom)
	outcome, err := m.Resolve(deal, testResult(t, deal.ID), 0)
	require.NoError(t, err)
	require.Equal(t, OutcomeIncorrect, outcome)
	require.Equal(t, 1, fallback.calls)
}
