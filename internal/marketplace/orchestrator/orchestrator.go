package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/coophive/marketnode/internal/interfaces"
	"github.com/coophive/marketnode/internal/lib"
	"github.com/coophive/marketnode/internal/marketplace/agent"
	"github.com/coophive/marketnode/internal/marketplace/ledger"
	"github.com/coophive/marketnode/internal/marketplace/market"
	"github.com/coophive/marketnode/internal/marketplace/matcher"
	"github.com/coophive/marketnode/internal/marketplace/offerstore"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"
)

// Report summarizes one completed round
type Report struct {
	Expired    int
	Matches    int
	Agreements int
	Deals      []*market.Deal
}

// Orchestrator drives the fixed per-round phase order: retire expired
// offers, match per domain, negotiate, sign, settle, then retire the
// offers consumed by new deals and cancel their sibling negotiations.
// Rounds are serialized: the ticker loop and the out-of-band HTTP
// trigger share the same mutex.
type Orchestrator struct {
	store    *offerstore.Store
	matcher  *matcher.Matcher
	ledger   *ledger.Ledger
	agents   map[common.Address]*agent.Agent
	interval time.Duration
	now      func() time.Time
	mutex    sync.Mutex
	log      interfaces.ILogger
}

func NewOrchestrator(store *offerstore.Store, m *matcher.Matcher, ldg *ledger.Ledger, interval time.Duration, log interfaces.ILogger) *Orchestrator {
	return &Orchestrator{
		store:    store,
		matcher:  m,
		ledger:   ldg,
		agents:   make(map[common.Address]*agent.Agent),
		interval: interval,
		now:      time.Now,
		log:      log,
	}
}

// RegisterAgent makes the agent reachable for negotiation. Matches whose
// parties have no registered agent are skipped for the round.
func (o *Orchestrator) RegisterAgent(a *agent.Agent) {
	o.agents[a.Address()] = a
}

// Run executes rounds on a fixed interval until the context is cancelled
func (o *Orchestrator) Run(ctx context.Context) error {
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := o.RunOnce(o.now()); err != nil {
				return err
			}
		}
	}
}

// RunOnce drives a single round and reports what happened. At most one
// round runs at a time.
func (o *Orchestrator) RunOnce(now time.Time) (Report, error) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	var report Report

	expired := o.store.RetireExpired(now)
	report.Expired = len(expired)
	for _, offerID := range expired {
		o.cancelNegotiations(offerID)
	}

	matches, err := o.findMatches()
	if err != nil {
		return report, err
	}
	report.Matches = len(matches)

	for _, m := range o.orderByPreference(matches) {
		if o.negotiateAndSign(m, now) {
			report.Agreements++
		}
	}

	report.Deals = o.ledger.RunRound(now)
	for _, deal := range report.Deals {
		o.retireDealOffers(deal)
	}

	for _, a := range o.agents {
		a.DropClosedSessions()
	}

	if report.Matches > 0 || len(report.Deals) > 0 {
		o.log.Infof("round complete: %d matches, %d agreements, %d deals", report.Matches, report.Agreements, len(report.Deals))
	}
	return report, nil
}

// findMatches runs match-finding per domain in parallel. Offers are
// domain-scoped, so the per-domain taken sets cannot overlap.
func (o *Orchestrator) findMatches() ([]*market.Match, error) {
	var (
		mutex   sync.Mutex
		matches []*market.Match
	)

	errGrp := errgroup.Group{}
	for _, domain := range o.store.Domains() {
		domain := domain
		errGrp.Go(func() error {
			found, err := o.matcher.FindMatches(
				o.store.JobOffers(domain),
				o.store.ResourceOffers(domain),
				lib.NewSet[common.Hash](),
			)
			if err != nil {
				return err
			}
			mutex.Lock()
			matches = append(matches, found...)
			mutex.Unlock()
			return nil
		})
	}
	if err := errGrp.Wait(); err != nil {
		return nil, err
	}
	return matches, nil
}

// orderByPreference negotiates each buyer's candidates best-first, so a
// buyer whose balance covers only one deposit commits it to the match
// its own utility ranks highest.
func (o *Orchestrator) orderByPreference(matches []*market.Match) []*market.Match {
	remaining := slices.Clone(matches)
	ordered := make([]*market.Match, 0, len(remaining))

	for len(remaining) > 0 {
		next := remaining[0]
		if buyer, ok := o.agents[next.BuyerAddr]; ok {
			var candidates []*market.Match
			for _, m := range remaining {
				if m.BuyerAddr == next.BuyerAddr {
					candidates = append(candidates, m)
				}
			}
			next = buyer.BestMatch(candidates)
		}
		ordered = append(ordered, next)

		for i, m := range remaining {
			if m == next {
				remaining = append(remaining[:i], remaining[i+1:]...)
				break
			}
		}
	}
	return ordered
}

func (o *Orchestrator) negotiateAndSign(m *market.Match, now time.Time) bool {
	seller, ok := o.agents[m.SellerAddr]
	if !ok {
		o.log.Warnf("no registered agent for seller %s, match %s skipped", m.SellerAddr, m.ID)
		return false
	}
	buyer, ok := o.agents[m.BuyerAddr]
	if !ok {
		o.log.Warnf("no registered agent for buyer %s, match %s skipped", m.BuyerAddr, m.ID)
		return false
	}

	agreed, accepted, err := agent.Negotiate(m, seller, buyer, func() time.Time { return now })
	if err != nil {
		o.log.Errorf("negotiation failed for match %s: %s", m.ID, err)
		return false
	}
	if !accepted {
		o.log.Debugf("match %s not agreed", m.ID)
		return false
	}

	// economic failures are terminal for this match, never retried
	if err := seller.SignMatch(agreed); err != nil {
		o.log.Warnf("seller %s could not sign match %s: %s", m.SellerAddr, agreed.ID, err)
		return false
	}
	if err := buyer.SignMatch(agreed); err != nil {
		o.log.Warnf("buyer %s could not sign match %s: %s", m.BuyerAddr, agreed.ID, err)
		return false
	}
	return true
}

// retireDealOffers removes the consumed offers and terminally cancels
// every other in-flight negotiation referencing them
func (o *Orchestrator) retireDealOffers(deal *market.Deal) {
	for _, offerID := range []common.Hash{deal.ResourceOfferID, deal.JobOfferID} {
		o.store.RetireOffer(offerID)
		o.cancelNegotiations(offerID)
	}
}

func (o *Orchestrator) cancelNegotiations(offerID common.Hash) {
	for _, a := range o.agents {
		a.CancelOffer(offerID)
	}
}

var _ interfaces.Runnable = &Orchestrator{}
