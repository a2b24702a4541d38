package market

import (
	"github.com/coophive/marketnode/internal/lib"
	"github.com/ethereum/go-ethereum/common"
)

// Result is the seller's claim that a deal's work completed, carrying the
// executed instruction count the settlement amounts derive from.
type Result struct {
	ID               common.Hash `json:"id"`
	DealID           common.Hash `json:"dealId"`
	InstructionCount int64       `json:"instructionCount" validate:"gt=0"`
}

func NewResult(dealID common.Hash, instructionCount int64) (*Result, error) {
	r := &Result{
		DealID:           dealID,
		InstructionCount: instructionCount,
	}
	id, err := lib.CanonicalHash(r)
	if err != nil {
		return nil, err
	}
	r.ID = id
	return r, nil
}
