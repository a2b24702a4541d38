package market

import (
	"math/big"
	"time"

	"github.com/coophive/marketnode/internal/lib"
	"github.com/ethereum/go-ethereum/common"
)

// Terms are the negotiated economic terms of a match. Policies negotiate
// over the amounts vector (index 0 is the price per instruction); the rest
// of the terms travel with the match structurally.
type Terms struct {
	PricePerInstruction          *big.Int           `json:"pricePerInstruction" validate:"required"`
	BuyerDeposit                 *big.Int           `json:"buyerDeposit" validate:"required"`
	Timeout                      time.Duration      `json:"timeout" validate:"gte=0"`
	TimeoutDeposit               *big.Int           `json:"timeoutDeposit" validate:"required"`
	CheatingCollateralMultiplier *big.Int           `json:"cheatingCollateralMultiplier" validate:"required"`
	VerificationMethod           VerificationMethod `json:"verificationMethod"`
	Mediators                    []common.Address   `json:"mediators"`
}

func (t Terms) Clone() Terms {
	c := t
	c.PricePerInstruction = new(big.Int).Set(t.PricePerInstruction)
	c.BuyerDeposit = new(big.Int).Set(t.BuyerDeposit)
	c.TimeoutDeposit = new(big.Int).Set(t.TimeoutDeposit)
	c.CheatingCollateralMultiplier = new(big.Int).Set(t.CheatingCollateralMultiplier)
	c.Mediators = append([]common.Address(nil), t.Mediators...)
	return c
}

// Amounts exposes the negotiable economic terms as a vector. Only index 0
// (price per instruction) is used by the current policies, but the shape
// leaves room for multi-asset terms.
func (t Terms) Amounts() []*big.Int {
	return []*big.Int{new(big.Int).Set(t.PricePerInstruction)}
}

func (t *Terms) SetAmounts(amounts []*big.Int) {
	if len(amounts) > 0 && amounts[0] != nil {
		t.PricePerInstruction = new(big.Int).Set(amounts[0])
	}
}

// Match pairs one resource offer with one job offer plus negotiated terms.
// A counter-offer is a new Match value with a new ID; the negotiation
// lineage is tracked separately (see LineageID). Signature flags are owned
// by the ledger and excluded from the identity hash.
type Match struct {
	ID                   common.Hash    `json:"id"`
	SellerAddr           common.Address `json:"sellerAddr" validate:"required"`
	BuyerAddr            common.Address `json:"buyerAddr" validate:"required"`
	ResourceOfferID      common.Hash    `json:"resourceOfferId"`
	JobOfferID           common.Hash    `json:"jobOfferId"`
	ExpectedInstructions int64          `json:"expectedInstructions" validate:"gte=0"`
	ExpectedBenefit      *big.Int       `json:"expectedBenefit"`
	Terms                Terms          `json:"terms"`
	Round                int            `json:"round" validate:"gte=0"`

	SellerSigned bool `json:"sellerSigned"`
	BuyerSigned  bool `json:"buyerSigned"`
}

// Seal computes the content-addressed match ID over every attribute except
// the signature flags.
func (m *Match) Seal() error {
	id, err := matchID(*m)
	if err != nil {
		return err
	}
	m.ID = id
	return nil
}

func matchID(m Match) (common.Hash, error) {
	m.ID = common.Hash{}
	m.SellerSigned = false
	m.BuyerSigned = false
	return lib.CanonicalHash(&m)
}

// LineageID identifies the negotiation thread a match belongs to. It stays
// stable across counter-offers, which mutate terms and therefore the match
// ID itself.
func (m *Match) LineageID() common.Hash {
	payload := struct {
		Seller        common.Address `json:"seller"`
		Buyer         common.Address `json:"buyer"`
		ResourceOffer common.Hash    `json:"resourceOffer"`
		JobOffer      common.Hash    `json:"jobOffer"`
	}{m.SellerAddr, m.BuyerAddr, m.ResourceOfferID, m.JobOfferID}

	id, err := lib.CanonicalHash(&payload)
	if err != nil {
		// payload is a fixed flat struct, canonical encoding cannot fail
		panic(err)
	}
	return id
}

func (m *Match) Clone() *Match {
	c := *m
	c.Terms = m.Terms.Clone()
	if m.ExpectedBenefit != nil {
		c.ExpectedBenefit = new(big.Int).Set(m.ExpectedBenefit)
	}
	return &c
}

// CounterOffer derives the next-round match from m with the given amounts
// vector. Signature flags reset, round counter increments, new identity.
func (m *Match) CounterOffer(amounts []*big.Int) (*Match, error) {
	c := m.Clone()
	c.Terms.SetAmounts(amounts)
	c.Round = m.Round + 1
	c.SellerSigned = false
	c.BuyerSigned = false
	if err := c.Seal(); err != nil {
		return nil, err
	}
	return c, nil
}

// Cost is the total payment implied by the terms
func (m *Match) Cost() *big.Int {
	return new(big.Int).Mul(m.Terms.PricePerInstruction, big.NewInt(m.ExpectedInstructions))
}

// Utility is the scalar economic value of the match for the given role:
// expected revenue for the seller, expected benefit net of cost for the
// buyer.
func (m *Match) Utility(role Role) *big.Int {
	cost := m.Cost()
	if role == RoleSeller {
		return cost
	}
	benefit := big.NewInt(0)
	if m.ExpectedBenefit != nil {
		benefit = benefit.Set(m.ExpectedBenefit)
	}
	return benefit.Sub(benefit, cost)
}

// Promotable reports whether the match can be promoted to a deal
func (m *Match) Promotable() bool {
	return m.SellerSigned && m.BuyerSigned
}
