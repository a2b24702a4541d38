package agent

import (
	"time"

	"github.com/coophive/marketnode/internal/marketplace/market"
	"github.com/coophive/marketnode/internal/marketplace/negotiation"
)

// Negotiate runs the alternating proposal exchange for one match. The
// initial match carries the seller's posted price, so the buyer responds
// first; every counter-offer replaces the match and hands the turn to the
// counterpart. Returns the agreed match and true when a side accepts the
// terms the other proposed. Termination is guaranteed by each agent's
// per-session round budget.
func Negotiate(m *market.Match, seller, buyer *Agent, now func() time.Time) (*market.Match, bool, error) {
	current := m
	responder, proposer := buyer, seller

	for {
		decision, err := responder.ProposeMatch(current, now())
		if err != nil {
			return nil, false, err
		}

		switch decision.Kind {
		case negotiation.DecisionAccept:
			return current, true, nil
		case negotiation.DecisionReject, negotiation.DecisionNoOffer:
			return nil, false, nil
		case negotiation.DecisionCounter:
			counter, err := current.CounterOffer(decision.Amounts)
			if err != nil {
				return nil, false, err
			}
			current = counter
			responder, proposer = proposer, responder
		}
	}
}
