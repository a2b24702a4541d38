package agent

import (
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/coophive/marketnode/internal/interfaces"
	"github.com/coophive/marketnode/internal/lib"
	"github.com/coophive/marketnode/internal/marketplace/ledger"
	"github.com/coophive/marketnode/internal/marketplace/market"
	"github.com/coophive/marketnode/internal/marketplace/negotiation"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
)

const DefaultMaxRounds = 5

var (
	ErrInvalidMatch = errors.New("match failed schema validation")
	ErrNotAParty    = errors.New("agent is not a party to this match")
)

var validate = validator.New()

// PolicyFactory builds a fresh policy instance per negotiation so that
// policy state (estimates, timers) never leaks across sessions
type PolicyFactory func() negotiation.Policy

// Agent is one marketplace party: an identity, a role and a concession
// policy, negotiating matches and signing the ones it accepts. Policy and
// session state live on the agent instance, never in process globals.
type Agent struct {
	addr      common.Address
	role      market.Role
	newPolicy PolicyFactory
	ledger    *ledger.Ledger
	maxRounds int

	// sessions is shared between the round loop and out-of-band round
	// triggers, so every access goes through the mutex
	sessions map[common.Hash]*activeSession
	mutex    sync.Mutex
	log      interfaces.ILogger
}

type activeSession struct {
	session *negotiation.Session
	policy  negotiation.Policy
}

func NewAgent(addr common.Address, role market.Role, newPolicy PolicyFactory, ldg *ledger.Ledger, maxRounds int, log interfaces.ILogger) *Agent {
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	return &Agent{
		addr:      addr,
		role:      role,
		newPolicy: newPolicy,
		ledger:    ldg,
		maxRounds: maxRounds,
		sessions:  make(map[common.Hash]*activeSession),
		log:       log,
	}
}

func (a *Agent) Address() common.Address {
	return a.addr
}

func (a *Agent) Role() market.Role {
	return a.role
}

// ProposeMatch evaluates an incoming match proposal and returns this
// agent's decision. Proposals are structured records validated before any
// policy sees them; a lapsed deadline or an exhausted round budget
// resolves to a terminal Reject rather than an error.
func (a *Agent) ProposeMatch(m *market.Match, now time.Time) (negotiation.Decision, error) {
	if err := a.validateMatch(m); err != nil {
		return negotiation.Decision{}, err
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()

	sess, err := a.sessionFor(m, now)
	if err != nil {
		return negotiation.Decision{}, err
	}
	if sess.session.Terminated() {
		return negotiation.Reject(), nil
	}

	if err := sess.session.BeginRound(now); err != nil {
		if errors.Is(err, negotiation.ErrNegotiationLapsed) ||
			errors.Is(err, negotiation.ErrRoundBudgetExceeded) {
			a.log.Debugf("negotiation %s over for %s: %s", m.LineageID(), a.addr, err)
			sess.session.Terminate()
			return negotiation.Reject(), nil
		}
		return negotiation.Decision{}, err
	}

	decision, err := sess.policy.Decide(m, negotiation.Context{Role: a.role, Now: now})
	if err != nil {
		if errors.Is(err, negotiation.ErrNegotiationLapsed) {
			sess.session.Terminate()
			return negotiation.Reject(), nil
		}
		return negotiation.Decision{}, err
	}
	if decision.Terminal() && decision.Kind != negotiation.DecisionAccept {
		sess.session.Terminate()
	}
	return decision, nil
}

// SignMatch commits this agent's deposit to the match via the ledger
func (a *Agent) SignMatch(m *market.Match) error {
	party := a.role.Party(m)
	if party != a.addr {
		return ErrNotAParty
	}
	tx := market.NewTx(a.addr, a.role.Deposit(m))
	return a.ledger.AgreeToMatch(m, tx)
}

// BestMatch picks the highest-utility candidate for this agent's role.
// Ties resolve to the earliest candidate in declaration order.
func (a *Agent) BestMatch(candidates []*market.Match) *market.Match {
	var best *market.Match
	var bestUtility *big.Int
	for _, m := range candidates {
		u := m.Utility(a.role)
		if best == nil || u.Cmp(bestUtility) > 0 {
			best = m
			bestUtility = u
		}
	}
	return best
}

// CancelOffer terminally rejects every in-flight negotiation referencing
// the offer. Called when the offer is retired because another match
// claimed it first.
func (a *Agent) CancelOffer(offerID common.Hash) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	for lineage, sess := range a.sessions {
		if sess.session.References(offerID) && !sess.session.Terminated() {
			sess.session.Terminate()
			a.log.Infof("negotiation %s cancelled: offer %s retired", lineage, offerID)
		}
	}
}

// DropClosedSessions removes terminated sessions, called between rounds
func (a *Agent) DropClosedSessions() {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	for lineage, sess := range a.sessions {
		if sess.session.Terminated() {
			delete(a.sessions, lineage)
		}
	}
}

func (a *Agent) sessionFor(m *market.Match, now time.Time) (*activeSession, error) {
	lineage := m.LineageID()
	if sess, ok := a.sessions[lineage]; ok {
		return sess, nil
	}
	sess := &activeSession{
		session: negotiation.NewSession(lineage, []common.Hash{m.ResourceOfferID, m.JobOfferID}, now, m.Terms.Timeout, a.maxRounds),
		policy:  a.newPolicy(),
	}
	a.sessions[lineage] = sess
	return sess, nil
}

func (a *Agent) validateMatch(m *market.Match) error {
	if m.ID == (common.Hash{}) ||
		m.SellerAddr == (common.Address{}) || m.BuyerAddr == (common.Address{}) ||
		m.Terms.PricePerInstruction == nil || m.Terms.BuyerDeposit == nil || m.Terms.TimeoutDeposit == nil {
		return ErrInvalidMatch
	}
	if err := validate.Struct(m); err != nil {
		return lib.WrapError(ErrInvalidMatch, err)
	}
	return nil
}
