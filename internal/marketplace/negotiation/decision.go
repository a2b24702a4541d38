package negotiation

import (
	"fmt"
	"math/big"
)

// DecisionKind is the closed set of negotiation outcomes a policy can
// produce for an incoming match proposal.
type DecisionKind uint8

const (
	// DecisionAccept signs off on the proposal as-is
	DecisionAccept DecisionKind = iota
	// DecisionReject terminates the negotiation permanently
	DecisionReject
	// DecisionCounter proposes a new match with the attached amounts
	DecisionCounter
	// DecisionNoOffer lapses the negotiation (deadline passed); unlike
	// Reject it carries no judgement about the terms
	DecisionNoOffer
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionAccept:
		return "accept"
	case DecisionReject:
		return "reject"
	case DecisionCounter:
		return "counter"
	case DecisionNoOffer:
		return "no-offer"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Decision is the policy verdict. Amounts is set only for Counter and
// holds the counter-offer terms vector (index 0: price per instruction).
type Decision struct {
	Kind    DecisionKind
	Amounts []*big.Int
}

func Accept() Decision {
	return Decision{Kind: DecisionAccept}
}

func Reject() Decision {
	return Decision{Kind: DecisionReject}
}

func Counter(amounts []*big.Int) Decision {
	return Decision{Kind: DecisionCounter, Amounts: amounts}
}

func NoOffer() Decision {
	return Decision{Kind: DecisionNoOffer}
}

// Terminal reports whether the decision ends the negotiation
func (d Decision) Terminal() bool {
	return d.Kind != DecisionCounter
}
