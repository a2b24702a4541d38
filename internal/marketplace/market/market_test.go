package market

import (
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/coophive/marketnode/internal/lib"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func sampleTerms() Terms {
	return Terms{
		PricePerInstruction:          big.NewInt(10),
		BuyerDeposit:                 big.NewInt(5),
		Timeout:                      10 * time.Second,
		TimeoutDeposit:               big.NewInt(3),
		CheatingCollateralMultiplier: big.NewInt(50),
		VerificationMethod:           VerificationRandom,
	}
}

func sampleMatch(t *testing.T) *Match {
	t.Helper()
	m := &Match{
		SellerAddr:           lib.GetRandomAddr(),
		BuyerAddr:            lib.GetRandomAddr(),
		ResourceOfferID:      common.HexToHash("0x01"),
		JobOfferID:           common.HexToHash("0x02"),
		ExpectedInstructions: 100,
		ExpectedBenefit:      big.NewInt(5000),
		Terms:                sampleTerms(),
	}
	require.NoError(t, m.Seal())
	return m
}

func TestOfferSealAssignsDistinctIDs(t *testing.T) {
	now := time.Now()
	a := &ResourceOffer{
		Owner:               lib.GetRandomAddr(),
		Resources:           Resources{CPU: 4, RAM: 8},
		PricePerInstruction: big.NewInt(1),
	}
	b := &ResourceOffer{
		Owner:               a.Owner,
		Resources:           Resources{CPU: 4, RAM: 8},
		PricePerInstruction: big.NewInt(1),
	}

	require.NoError(t, a.Seal(now))
	require.NoError(t, b.Seal(now))

	// same owner, same attributes, same time: the nonce still disambiguates
	require.NotEqual(t, a.ID, b.ID)
	require.Equal(t, DefaultDomain, a.Domain)
}

func TestOfferExpiry(t *testing.T) {
	now := time.Now()
	o := &ResourceOffer{
		Owner:               lib.GetRandomAddr(),
		Timeout:             time.Minute,
		Resources:           Resources{CPU: 1, RAM: 1},
		PricePerInstruction: big.NewInt(1),
	}
	require.NoError(t, o.Seal(now))

	require.False(t, o.Expired(now.Add(30*time.Second)))
	require.True(t, o.Expired(now.Add(2*time.Minute)))

	// zero timeout never expires
	forever := &ResourceOffer{
		Owner:               lib.GetRandomAddr(),
		Resources:           Resources{CPU: 1, RAM: 1},
		PricePerInstruction: big.NewInt(1),
	}
	require.NoError(t, forever.Seal(now))
	require.False(t, forever.Expired(now.Add(24*time.Hour)))
}

func TestDecodeStrictRejectsUnknownFields(t *testing.T) {
	payload := `{"owner":"0x0000000000000000000000000000000000000001","bogus":true}`
	var offer ResourceOffer
	err := DecodeStrict(strings.NewReader(payload), &offer)
	require.ErrorIs(t, err, ErrInvalidAttribute)
}

func TestMatchIDExcludesSignatureFlags(t *testing.T) {
	m := sampleMatch(t)
	id := m.ID

	m.SellerSigned = true
	m.BuyerSigned = true
	require.NoError(t, m.Seal())
	require.Equal(t, id, m.ID)
}

func TestCounterOfferIsNewMatch(t *testing.T) {
	m := sampleMatch(t)
	m.SellerSigned = true

	counter, err := m.CounterOffer([]*big.Int{big.NewInt(8)})
	require.NoError(t, err)

	require.NotEqual(t, m.ID, counter.ID)
	require.Equal(t, m.Round+1, counter.Round)
	require.Equal(t, big.NewInt(8), counter.Terms.PricePerInstruction)
	require.False(t, counter.SellerSigned)
	require.False(t, counter.BuyerSigned)

	// the negotiation thread is the same
	require.Equal(t, m.LineageID(), counter.LineageID())

	// the original is untouched
	require.Equal(t, big.NewInt(10), m.Terms.PricePerInstruction)
}

func TestMatchUtilityByRole(t *testing.T) {
	m := sampleMatch(t)

	// seller: 100 instructions * price 10
	require.Equal(t, big.NewInt(1000), m.Utility(RoleSeller))
	// buyer: benefit 5000 - cost 1000
	require.Equal(t, big.NewInt(4000), m.Utility(RoleBuyer))
}

func TestRoleDeposits(t *testing.T) {
	m := sampleMatch(t)

	require.Equal(t, m.SellerAddr, RoleSeller.Party(m))
	require.Equal(t, m.BuyerAddr, RoleBuyer.Party(m))
	require.Equal(t, big.NewInt(3), RoleSeller.Deposit(m))
	require.Equal(t, big.NewInt(5), RoleBuyer.Deposit(m))
	require.Equal(t, RoleBuyer, RoleSeller.Counterpart())
}

func TestDealDerivation(t *testing.T) {
	m := sampleMatch(t)
	now := time.Now()

	d1, err := NewDealFromMatch(m, now)
	require.NoError(t, err)
	d2, err := NewDealFromMatch(m, now.Add(time.Hour))
	require.NoError(t, err)

	// the deal ID covers the copied match attributes, not the clock
	require.Equal(t, d1.ID, d2.ID)
	require.Equal(t, m.ID, d1.MatchID)
	require.Equal(t, big.NewInt(500), d1.CheatingCollateral(10))
	require.Equal(t, big.NewInt(100), d1.PaymentDue(10))
	require.False(t, d1.Completed())
}

func TestVerificationMethodRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want VerificationMethod
	}{
		{"none", VerificationNone},
		{"", VerificationNone},
		{"random", VerificationRandom},
		{"consortium", VerificationConsortium},
	} {
		got, err := ParseVerificationMethod(tc.in)
		require.NoError(t, err)
		require.Equal(t, tc.want, got)
	}

	_, err := ParseVerificationMethod("swarm")
	require.Error(t, err)
}
