package market

import "fmt"

// VerificationMethod is a closed set of result verification modes. Keeping
// it a typed constant instead of a free-form string tag guarantees every
// dispatch site covers all variants.
type VerificationMethod uint8

const (
	VerificationNone VerificationMethod = iota
	VerificationRandom
	VerificationConsortium
)

func (v VerificationMethod) String() string {
	switch v {
	case VerificationNone:
		return "none"
	case VerificationRandom:
		return "random"
	case VerificationConsortium:
		return "consortium"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(v))
	}
}

func (v VerificationMethod) MarshalText() ([]byte, error) {
	switch v {
	case VerificationNone, VerificationRandom, VerificationConsortium:
		return []byte(v.String()), nil
	default:
		return nil, fmt.Errorf("%w: verification method %d", ErrInvalidAttribute, uint8(v))
	}
}

func (v *VerificationMethod) UnmarshalText(text []byte) error {
	switch string(text) {
	case "none", "":
		*v = VerificationNone
	case "random":
		*v = VerificationRandom
	case "consortium":
		*v = VerificationConsortium
	default:
		return fmt.Errorf("%w: verification method %q", ErrInvalidAttribute, string(text))
	}
	return nil
}

func ParseVerificationMethod(s string) (VerificationMethod, error) {
	var v VerificationMethod
	err := v.UnmarshalText([]byte(s))
	return v, err
}
