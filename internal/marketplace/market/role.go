package market

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Role distinguishes the two sides of a deal. Role-specific behavior
// (which party signs with which deposit) is data looked up through the
// role, not a separate agent subtype.
type Role uint8

const (
	RoleSeller Role = iota
	RoleBuyer
)

func (r Role) String() string {
	if r == RoleSeller {
		return "seller"
	}
	return "buyer"
}

// Party returns the address of this role's side of the match
func (r Role) Party(m *Match) common.Address {
	if r == RoleSeller {
		return m.SellerAddr
	}
	return m.BuyerAddr
}

// Deposit returns the escrow amount this role owes when signing the match:
// the timeout deposit for the seller, the buyer deposit for the buyer.
func (r Role) Deposit(m *Match) *big.Int {
	if r == RoleSeller {
		return new(big.Int).Set(m.Terms.TimeoutDeposit)
	}
	return new(big.Int).Set(m.Terms.BuyerDeposit)
}

// Counterpart returns the opposite role
func (r Role) Counterpart() Role {
	if r == RoleSeller {
		return RoleBuyer
	}
	return RoleSeller
}
