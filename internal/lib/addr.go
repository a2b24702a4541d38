package lib

import (
	"math/big"
	"math/rand"

	"github.com/ethereum/go-ethereum/common"
)

// GetRandomAddr makes a throwaway party identity for tests. Marketplace
// parties are plain addresses, no key material is involved.
func GetRandomAddr() common.Address {
	return common.BigToAddress(big.NewInt(rand.Int63()))
}
