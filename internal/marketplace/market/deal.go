package market

import (
	"math/big"
	"time"

	"github.com/coophive/marketnode/internal/lib"
	"github.com/ethereum/go-ethereum/common"
)

// Deal is the immutable agreement created by the ledger from a fully
// signed match. Its ID is a content hash of the copied match attributes,
// so settling the same match set twice would yield the same deal identity.
type Deal struct {
	ID                   common.Hash    `json:"id"`
	MatchID              common.Hash    `json:"matchId"`
	SellerAddr           common.Address `json:"sellerAddr"`
	BuyerAddr            common.Address `json:"buyerAddr"`
	ResourceOfferID      common.Hash    `json:"resourceOfferId"`
	JobOfferID           common.Hash    `json:"jobOfferId"`
	ExpectedInstructions int64          `json:"expectedInstructions"`
	Terms                Terms          `json:"terms"`

	// completion record, the only post-creation mutation
	CreatedAt   time.Time    `json:"createdAt"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
	ResultID    *common.Hash `json:"resultId,omitempty"`
	Paid        bool         `json:"paid"`
}

func NewDealFromMatch(m *Match, now time.Time) (*Deal, error) {
	d := &Deal{
		MatchID:              m.ID,
		SellerAddr:           m.SellerAddr,
		BuyerAddr:            m.BuyerAddr,
		ResourceOfferID:      m.ResourceOfferID,
		JobOfferID:           m.JobOfferID,
		ExpectedInstructions: m.ExpectedInstructions,
		Terms:                m.Terms.Clone(),
	}

	id, err := lib.CanonicalHash(d)
	if err != nil {
		return nil, err
	}
	d.ID = id
	d.CreatedAt = now
	return d, nil
}

// CheatingCollateral is the collateral the seller escrows when posting a
// result with the given instruction count
func (d *Deal) CheatingCollateral(instructionCount int64) *big.Int {
	return new(big.Int).Mul(d.Terms.CheatingCollateralMultiplier, big.NewInt(instructionCount))
}

// PaymentDue is the payment the buyer owes for the given instruction count
func (d *Deal) PaymentDue(instructionCount int64) *big.Int {
	return new(big.Int).Mul(d.Terms.PricePerInstruction, big.NewInt(instructionCount))
}

func (d *Deal) Completed() bool {
	return d.CompletedAt != nil
}
