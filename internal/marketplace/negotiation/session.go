package negotiation

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Session tracks one negotiation thread between two parties over the same
// offer pair. Counter-offers replace the match (new ID each round), so the
// lineage key, the round budget and the deadline live here instead.
type Session struct {
	Lineage   common.Hash
	OfferIDs  []common.Hash
	StartedAt time.Time
	Deadline  time.Time
	MaxRounds int

	rounds     int
	terminated bool
}

func NewSession(lineage common.Hash, offerIDs []common.Hash, startedAt time.Time, timeout time.Duration, maxRounds int) *Session {
	s := &Session{
		Lineage:   lineage,
		OfferIDs:  offerIDs,
		StartedAt: startedAt,
		MaxRounds: maxRounds,
	}
	if timeout > 0 {
		s.Deadline = startedAt.Add(timeout)
	}
	return s
}

// BeginRound accounts for one more negotiation round. Exhausting the round
// budget or the deadline is not a fault: callers map the returned sentinel
// to a terminal Reject / lapse decision.
func (s *Session) BeginRound(now time.Time) error {
	if s.terminated {
		return ErrNegotiationLapsed
	}
	if !s.Deadline.IsZero() && now.After(s.Deadline) {
		return ErrNegotiationLapsed
	}
	if s.rounds >= s.MaxRounds {
		return ErrRoundBudgetExceeded
	}
	s.rounds++
	return nil
}

func (s *Session) Rounds() int {
	return s.rounds
}

// Terminate marks the session closed; every further round fails
func (s *Session) Terminate() {
	s.terminated = true
}

func (s *Session) Terminated() bool {
	return s.terminated
}

// References reports whether the session negotiates over the given offer
func (s *Session) References(offerID common.Hash) bool {
	for _, id := range s.OfferIDs {
		if id == offerID {
			return true
		}
	}
	return false
}
