package mediator

import (
	"encoding/binary"
	"fmt"

	"github.com/coophive/marketnode/internal/interfaces"
	"github.com/coophive/marketnode/internal/marketplace/market"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/exp/slices"
)

// Outcome is the verdict of result verification
type Outcome uint8

const (
	OutcomeCorrect Outcome = iota
	OutcomeIncorrect
)

func (o Outcome) String() string {
	if o == OutcomeCorrect {
		return "correct"
	}
	return "incorrect"
}

// Verifier checks whether a posted result is honest. Production verifiers
// would re-run or spot-check the work; the default is a stand-in.
type Verifier interface {
	Verify(deal *market.Deal, result *market.Result) (Outcome, error)
}

// AlwaysCorrect is a policy placeholder, not a verdict: it approves every
// result and must be replaced by a real verifier before the mediation
// paths are trusted.
type AlwaysCorrect struct{}

func (AlwaysCorrect) Verify(*market.Deal, *market.Result) (Outcome, error) {
	return OutcomeCorrect, nil
}

// Mediator resolves disputed results per the owning deal's verification
// method. The "random" draw is deterministic in (deal ID, round) so that
// every node selects the same mediator without an external beacon;
// swapping selectIndex for a beacon-driven draw is a local change.
type Mediator struct {
	verifiers map[common.Address]Verifier
	fallback  Verifier
	log       interfaces.ILogger
}

func NewMediator(fallback Verifier, log interfaces.ILogger) *Mediator {
	if fallback == nil {
		fallback = AlwaysCorrect{}
	}
	return &Mediator{
		verifiers: make(map[common.Address]Verifier),
		fallback:  fallback,
		log:       log,
	}
}

// RegisterVerifier binds a mediator address to its verifier
func (m *Mediator) RegisterVerifier(addr common.Address, v Verifier) {
	m.verifiers[addr] = v
}

// Resolve dispatches on the deal's verification method. The method set is
// closed; an unknown value is a programming error.
func (m *Mediator) Resolve(deal *market.Deal, result *market.Result, round uint64) (Outcome, error) {
	switch deal.Terms.VerificationMethod {
	case market.VerificationNone:
		return OutcomeCorrect, nil
	case market.VerificationRandom:
		return m.askOne(deal, result, round)
	case market.VerificationConsortium:
		return m.askConsortium(deal, result)
	default:
		return OutcomeIncorrect, fmt.Errorf("unhandled verification method %s", deal.Terms.VerificationMethod)
	}
}

func (m *Mediator) askOne(deal *market.Deal, result *market.Result, round uint64) (Outcome, error) {
	mediators := sortedMediators(deal)
	if len(mediators) == 0 {
		m.log.Warnf("deal %s requires random mediation but declares no mediators", deal.ID)
		return m.fallback.Verify(deal, result)
	}

	idx := selectIndex(deal.ID, round, len(mediators))
	chosen := mediators[idx]
	m.log.Infof("deal %s mediated by %s (round %d)", deal.ID, chosen, round)
	return m.verifierFor(chosen).Verify(deal, result)
}

func (m *Mediator) askConsortium(deal *market.Deal, result *market.Result) (Outcome, error) {
	mediators := sortedMediators(deal)
	if len(mediators) == 0 {
		m.log.Warnf("deal %s requires consortium mediation but declares no mediators", deal.ID)
		return m.fallback.Verify(deal, result)
	}

	correct := 0
	for _, addr := range mediators {
		outcome, err := m.verifierFor(addr).Verify(deal, result)
		if err != nil {
			return OutcomeIncorrect, err
		}
		if outcome == OutcomeCorrect {
			correct++
		}
	}
	if correct*2 > len(mediators) {
		return OutcomeCorrect, nil
	}
	return OutcomeIncorrect, nil
}

func (m *Mediator) verifierFor(addr common.Address) Verifier {
	if v, ok := m.verifiers[addr]; ok {
		return v
	}
	return m.fallback
}

func sortedMediators(deal *market.Deal) []common.Address {
	mediators := slices.Clone(deal.Terms.Mediators)
	slices.SortStableFunc(mediators, func(a, b common.Address) bool {
		return a.Hex() < b.Hex()
	})
	return mediators
}

// selectIndex draws an index from keccak(dealID || round), reproducible on
// every node for the same settlement round
func selectIndex(dealID common.Hash, round uint64, n int) int {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], round)
	digest := crypto.Keccak256(dealID.Bytes(), buf[:])
	return int(binary.BigEndian.Uint64(digest[:8]) % uint64(n))
}
