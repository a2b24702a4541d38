package lib

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// CanonicalHash returns the keccak256 hash of the canonical JSON encoding
// of v. The value is round-tripped through a generic map so that object
// keys are sorted regardless of struct field order. Two values with
// identical attribute sets therefore hash to the same ID.
func CanonicalHash(v interface{}) (common.Hash, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return common.Hash{}, err
	}

	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return common.Hash{}, err
	}

	canonical, err := json.Marshal(generic)
	if err != nil {
		return common.Hash{}, err
	}

	return crypto.Keccak256Hash(canonical), nil
}
