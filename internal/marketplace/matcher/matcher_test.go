package matcher

import (
	"math/big"
	"testing"
	"time"

	"github.com/coophive/marketnode/internal/lib"
	"github.com/coophive/marketnode/internal/marketplace/market"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func testDefaults() Defaults {
	return Defaults{
		BuyerDeposit:                 big.NewInt(5),
		Timeout:                      10 * time.Second,
		TimeoutDeposit:               big.NewInt(3),
		CheatingCollateralMultiplier: big.NewInt(50),
		VerificationMethod:           market.VerificationRandom,
	}
}

func sealedResourceOffer(t *testing.T, cpu, ram, gpu int, price int64) *market.ResourceOffer {
	t.Helper()
	o := &market.ResourceOffer{
		Owner:               lib.GetRandomAddr(),
		Resources:           market.Resources{CPU: cpu, RAM: ram, GPU: gpu},
		PricePerInstruction: big.NewInt(price),
	}
	require.NoError(t, o.Seal(time.Now()))
	return o
}

func sealedJobOffer(t *testing.T, cpu, ram, gpu int, instructions int64) *market.JobOffer {
	t.Helper()
	o := &market.JobOffer{
		Owner:            lib.GetRandomAddr(),
		Resources:        market.Resources{CPU: cpu, RAM: ram, GPU: gpu},
		InstructionCount: instructions,
		ExpectedBenefit:  big.NewInt(10000),
	}
	require.NoError(t, o.Seal(time.Now()))
	return o
}

func TestFindMatchesExactEquality(t *testing.T) {
	m := NewMatcher(testDefaults(), lib.NewTestLogger())

	job := sealedJobOffer(t, 4, 8, 0, 100)
	matching := sealedResourceOffer(t, 4, 8, 0, 2)
	wrongCPU := sealedResourceOffer(t, 8, 8, 0, 1)
	wrongRAM := sealedResourceOffer(t, 4, 16, 0, 1)

	matches, err := m.FindMatches(
		[]*market.JobOffer{job},
		[]*market.ResourceOffer{wrongCPU, wrongRAM, matching},
		lib.NewSet[common.Hash](),
	)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, matching.ID, matches[0].ResourceOfferID)
	require.Equal(t, job.ID, matches[0].JobOfferID)
	require.Equal(t, matching.Owner, matches[0].SellerAddr)
	require.Equal(t, job.Owner, matches[0].BuyerAddr)
}

func TestFindMatchesStampsTerms(t *testing.T) {
	m := NewMatcher(testDefaults(), lib.NewTestLogger())

	job := sealedJobOffer(t, 4, 8, 0, 100)
	res := sealedResourceOffer(t, 4, 8, 0, 7)

	matches, err := m.FindMatches(
		[]*market.JobOffer{job},
		[]*market.ResourceOffer{res},
		lib.NewSet[common.Hash](),
	)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	match := matches[0]
	require.Equal(t, big.NewInt(7), match.Terms.PricePerInstruction)
	require.Equal(t, big.NewInt(5), match.Terms.BuyerDeposit)
	require.Equal(t, big.NewInt(3), match.Terms.TimeoutDeposit)
	require.Equal(t, big.NewInt(50), match.Terms.CheatingCollateralMultiplier)
	require.Equal(t, market.VerificationRandom, match.Terms.VerificationMethod)
	require.Equal(t, int64(100), match.ExpectedInstructions)
	require.NotEqual(t, common.Hash{}, match.ID)
}

func TestFindMatchesGPUOnlyWhenRequested(t *testing.T) {
	m := NewMatcher(testDefaults(), lib.NewTestLogger())

	gpuJob := sealedJobOffer(t, 4, 8, 2, 100)
	cpuOnly := sealedResourceOffer(t, 4, 8, 0, 1)

	matches, err := m.FindMatches(
		[]*market.JobOffer{gpuJob},
		[]*market.ResourceOffer{cpuOnly},
		lib.NewSet[common.Hash](),
	)
	require.NoError(t, err)
	require.Empty(t, matches)

	// job without GPU requirement ignores the resource's GPUs
	cpuJob := sealedJobOffer(t, 4, 8, 0, 100)
	gpuRig := sealedResourceOffer(t, 4, 8, 4, 1)

	matches, err = m.FindMatches(
		[]*market.JobOffer{cpuJob},
		[]*market.ResourceOffer{gpuRig},
		lib.NewSet[common.Hash](),
	)
	require.NoError(t, err)
	require.Len(t, matches, 1)
}

func TestFindMatchesIdenticalResourceOffers(t *testing.T) {
	m := NewMatcher(testDefaults(), lib.NewTestLogger())

	job := sealedJobOffer(t, 4, 8, 0, 100)
	first := sealedResourceOffer(t, 4, 8, 0, 2)
	second := sealedResourceOffer(t, 4, 8, 0, 2)

	matches, err := m.FindMatches(
		[]*market.JobOffer{job},
		[]*market.ResourceOffer{first, second},
		lib.NewSet[common.Hash](),
	)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	// deterministic tie-break: lowest offer ID wins
	want := first.ID
	loser := second.ID
	if second.ID.Hex() < first.ID.Hex() {
		want, loser = second.ID, first.ID
	}
	require.Equal(t, want, matches[0].ResourceOfferID)
	require.NotEqual(t, loser, matches[0].ResourceOfferID)
}

func TestFindMatchesNeverReusesTakenOffers(t *testing.T) {
	m := NewMatcher(testDefaults(), lib.NewTestLogger())

	jobA := sealedJobOffer(t, 4, 8, 0, 100)
	jobB := sealedJobOffer(t, 4, 8, 0, 200)
	res := sealedResourceOffer(t, 4, 8, 0, 2)

	taken := lib.NewSet[common.Hash]()
	matches, err := m.FindMatches(
		[]*market.JobOffer{jobA, jobB},
		[]*market.ResourceOffer{res},
		taken,
	)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	// a second scan with the same taken set finds nothing
	matches, err = m.FindMatches(
		[]*market.JobOffer{jobA, jobB},
		[]*market.ResourceOffer{res},
		taken,
	)
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestFindMatchesDeterministicOrder(t *testing.T) {
	m := NewMatcher(testDefaults(), lib.NewTestLogger())

	job := sealedJobOffer(t, 4, 8, 0, 100)
	resA := sealedResourceOffer(t, 4, 8, 0, 2)
	resB := sealedResourceOffer(t, 4, 8, 0, 3)

	forward, err := m.FindMatches([]*market.JobOffer{job}, []*market.ResourceOffer{resA, resB}, lib.NewSet[common.Hash]())
	require.NoError(t, err)
	reversed, err := m.FindMatches([]*market.JobOffer{job}, []*market.ResourceOffer{resB, resA}, lib.NewSet[common.Hash]())
	require.NoError(t, err)

	require.Len(t, forward, 1)
	require.Len(t, reversed, 1)
	require.Equal(t, forward[0].ResourceOfferID, reversed[0].ResourceOfferID)
}
