package ledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind enumerates the observable ledger state transitions
type EventKind uint8

const (
	EventMatchSigned EventKind = iota
	EventDealCreated
	EventResultPosted
	EventResultAccepted
	EventResultRejected
	EventPaymentPosted
	EventCollateralSlashed
	EventTimeoutDepositRefunded
	EventBuyerDepositRefunded
)

func (k EventKind) String() string {
	switch k {
	case EventMatchSigned:
		return "match_signed"
	case EventDealCreated:
		return "deal_created"
	case EventResultPosted:
		return "result_posted"
	case EventResultAccepted:
		return "result_accepted"
	case EventResultRejected:
		return "result_rejected"
	case EventPaymentPosted:
		return "payment_posted"
	case EventCollateralSlashed:
		return "collateral_slashed"
	case EventTimeoutDepositRefunded:
		return "timeout_deposit_refunded"
	case EventBuyerDepositRefunded:
		return "buyer_deposit_refunded"
	default:
		return "unknown"
	}
}

func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Event records one settlement-relevant transition. Unused hash fields
// stay zero; Amount is nil when no value moved.
type Event struct {
	Kind     EventKind      `json:"kind"`
	MatchID  common.Hash    `json:"matchID,omitempty"`
	DealID   common.Hash    `json:"dealID,omitempty"`
	ResultID common.Hash    `json:"resultID,omitempty"`
	Party    common.Address `json:"party,omitempty"`
	Amount   *big.Int       `json:"amount,omitempty"`
}

// Subscriber receives events synchronously during settlement. Handlers
// must not call back into the ledger, it holds its lock while notifying.
type Subscriber func(Event)
