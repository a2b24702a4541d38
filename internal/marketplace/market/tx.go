package market

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Tx is the explicit transaction record attached to every balance-mutating
// ledger call. It is a trusted in-process stand-in for a signed chain
// transaction: no gas, no signature, just sender and value.
type Tx struct {
	Sender common.Address `json:"sender"`
	Value  *big.Int       `json:"value"`
}

func NewTx(sender common.Address, value *big.Int) *Tx {
	return &Tx{Sender: sender, Value: new(big.Int).Set(value)}
}
