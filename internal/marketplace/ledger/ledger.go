package ledger

import (
	"math/big"
	"sync"
	"time"

	"github.com/coophive/marketnode/internal/interfaces"
	"github.com/coophive/marketnode/internal/lib"
	"github.com/coophive/marketnode/internal/marketplace/market"
	"github.com/coophive/marketnode/internal/marketplace/mediator"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gammazero/deque"
	"golang.org/x/exp/slices"
)

type postedResult struct {
	result *market.Result
	tx     *market.Tx
}

// Ledger is the settlement authority: it keeps account balances, escrows
// deposits on signed matches, promotes fully signed matches to deals once
// per round and routes posted results through mediation. A single mutex
// guards the whole state; every mutating call either applies all of its
// balance movements or none of them.
type Ledger struct {
	balances map[common.Address]*big.Int
	held     *big.Int

	matches map[common.Hash]*market.Match
	deals   map[common.Hash]*market.Deal
	results map[common.Hash]*market.Result
	settled lib.Set[common.Hash]
	pending lib.Set[common.Hash] // deal IDs with a buffered result

	signedQueue *deque.Deque[*market.Match]
	resultQueue *deque.Deque[postedResult]

	round       uint64
	events      []Event
	subscribers []Subscriber

	mediator *mediator.Mediator
	log      interfaces.ILogger
	mutex    sync.Mutex
}

func NewLedger(med *mediator.Mediator, log interfaces.ILogger) *Ledger {
	return &Ledger{
		balances:    make(map[common.Address]*big.Int),
		held:        new(big.Int),
		matches:     make(map[common.Hash]*market.Match),
		deals:       make(map[common.Hash]*market.Deal),
		results:     make(map[common.Hash]*market.Result),
		settled:     lib.NewSet[common.Hash](),
		pending:     lib.NewSet[common.Hash](),
		signedQueue: &deque.Deque[*market.Match]{},
		resultQueue: &deque.Deque[postedResult]{},
		mediator:    med,
		log:         log,
	}
}

// Fund credits the sender's account with the transaction value
func (l *Ledger) Fund(tx *market.Tx) error {
	if tx.Value == nil || tx.Value.Sign() <= 0 {
		return ErrAmountMismatch
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.credit(tx.Sender, tx.Value)
	l.log.Debugf("funded %s with %s", tx.Sender, tx.Value)
	return nil
}

// AgreeToMatch records one party's signature on a match, escrowing that
// party's deposit. The transaction value must equal the deposit exactly
// and the sender must be solvent, otherwise nothing changes. Once both
// parties have signed, the match is queued for deal creation in the next
// settlement round.
func (l *Ledger) AgreeToMatch(m *market.Match, tx *market.Tx) error {
	if m.ID == (common.Hash{}) {
		return ErrUnknownMatch
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	stored, ok := l.matches[m.ID]
	if !ok {
		stored = m.Clone()
		stored.SellerSigned = false
		stored.BuyerSigned = false
		l.matches[m.ID] = stored
	}
	if l.settled.Contains(stored.ID) {
		return ErrMatchSettled
	}

	var role market.Role
	switch tx.Sender {
	case stored.SellerAddr:
		role = market.RoleSeller
	case stored.BuyerAddr:
		role = market.RoleBuyer
	default:
		return ErrUnknownSigner
	}

	if (role == market.RoleSeller && stored.SellerSigned) ||
		(role == market.RoleBuyer && stored.BuyerSigned) {
		return ErrAlreadySigned
	}

	required := role.Deposit(stored)
	if tx.Value == nil || tx.Value.Cmp(required) != 0 {
		return ErrAmountMismatch
	}
	if l.balance(tx.Sender).Cmp(required) < 0 {
		return ErrInsufficientBalance
	}

	l.debit(tx.Sender, required)
	l.held.Add(l.held, required)

	if role == market.RoleSeller {
		stored.SellerSigned = true
	} else {
		stored.BuyerSigned = true
	}
	m.SellerSigned = stored.SellerSigned
	m.BuyerSigned = stored.BuyerSigned

	l.emit(Event{Kind: EventMatchSigned, MatchID: stored.ID, Party: tx.Sender, Amount: new(big.Int).Set(required)})
	l.log.Infof("%s signed match %s with deposit %s", role, stored.ID, required)

	if stored.Promotable() {
		l.signedQueue.PushBack(stored)
	}
	return nil
}

// PostResult buffers a result for the next settlement round. The seller
// must attach the exact cheating collateral and be able to afford it;
// validation failures leave the ledger untouched and the actual escrow
// happens at settlement time.
func (l *Ledger) PostResult(result *market.Result, tx *market.Tx) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	deal, ok := l.deals[result.DealID]
	if !ok {
		return ErrUnknownDeal
	}
	if tx.Sender != deal.SellerAddr {
		return ErrUnknownSigner
	}
	if deal.Completed() || deal.ResultID != nil {
		return ErrDealCompleted
	}
	if l.pending.Contains(deal.ID) {
		return ErrResultPending
	}

	collateral := deal.CheatingCollateral(result.InstructionCount)
	if tx.Value == nil || tx.Value.Cmp(collateral) != 0 {
		return ErrAmountMismatch
	}
	if l.balance(tx.Sender).Cmp(collateral) < 0 {
		return ErrInsufficientBalance
	}

	l.pending.Add(deal.ID)
	l.resultQueue.PushBack(postedResult{result: result, tx: tx})
	l.log.Infof("result %s posted for deal %s (%d instructions)", result.ID, deal.ID, result.InstructionCount)
	return nil
}

// PostPayment settles an accepted result: the buyer pays exactly
// instructionCount * pricePerInstruction, the seller is credited and the
// buyer's deposit is released.
func (l *Ledger) PostPayment(resultID common.Hash, tx *market.Tx) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	result, ok := l.results[resultID]
	if !ok {
		return ErrUnknownResult
	}
	deal := l.deals[result.DealID]
	if tx.Sender != deal.BuyerAddr {
		return ErrUnknownSigner
	}
	if deal.Paid {
		return ErrDealCompleted
	}

	due := deal.PaymentDue(result.InstructionCount)
	if tx.Value == nil || tx.Value.Cmp(due) != 0 {
		return ErrAmountMismatch
	}
	if l.balance(tx.Sender).Cmp(due) < 0 {
		return ErrInsufficientBalance
	}

	l.debit(deal.BuyerAddr, due)
	l.credit(deal.SellerAddr, due)
	l.emit(Event{Kind: EventPaymentPosted, DealID: deal.ID, ResultID: result.ID, Party: tx.Sender, Amount: new(big.Int).Set(due)})

	l.release(deal.BuyerAddr, deal.Terms.BuyerDeposit)
	l.emit(Event{Kind: EventBuyerDepositRefunded, DealID: deal.ID, Party: deal.BuyerAddr, Amount: new(big.Int).Set(deal.Terms.BuyerDeposit)})

	now := time.Now()
	deal.Paid = true
	deal.CompletedAt = &now
	l.log.Infof("deal %s paid: %s to %s", deal.ID, due, deal.SellerAddr)
	return nil
}

// RunRound drives one settlement round: fully signed matches become
// deals, then buffered results are mediated and either accepted (awaiting
// payment) or rejected (collateral slashed, deal closed unpaid). Both
// queues drain completely, so a second call without new activity is a
// no-op. Returns the deals created this round.
func (l *Ledger) RunRound(now time.Time) []*market.Deal {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	created := l.promoteMatches(now)
	l.settleResults(now)
	l.round++
	return created
}

func (l *Ledger) promoteMatches(now time.Time) []*market.Deal {
	var created []*market.Deal
	for l.signedQueue.Len() > 0 {
		m := l.signedQueue.PopFront()
		if l.settled.Contains(m.ID) {
			continue
		}

		deal, err := market.NewDealFromMatch(m, now)
		if err != nil {
			l.log.Errorf("cannot derive deal from match %s: %s", m.ID, err)
			continue
		}
		if _, dup := l.deals[deal.ID]; dup {
			l.settled.Add(m.ID)
			continue
		}

		l.deals[deal.ID] = deal
		l.settled.Add(m.ID)
		created = append(created, deal)
		l.emit(Event{Kind: EventDealCreated, MatchID: m.ID, DealID: deal.ID})
		l.log.Infof("deal %s created from match %s", deal.ID, m.ID)
	}
	return created
}

func (l *Ledger) settleResults(now time.Time) {
	for l.resultQueue.Len() > 0 {
		posted := l.resultQueue.PopFront()
		l.pending.Remove(posted.result.DealID)
		l.settleResult(posted, now)
	}
}

func (l *Ledger) settleResult(posted postedResult, now time.Time) {
	result, tx := posted.result, posted.tx
	deal, ok := l.deals[result.DealID]
	if !ok || deal.Completed() || deal.ResultID != nil {
		l.emit(Event{Kind: EventResultRejected, DealID: result.DealID, ResultID: result.ID})
		return
	}

	l.emit(Event{Kind: EventResultPosted, DealID: deal.ID, ResultID: result.ID, Party: tx.Sender})

	// the seller delivered, so the timeout deposit comes back first
	l.release(deal.SellerAddr, deal.Terms.TimeoutDeposit)
	l.emit(Event{Kind: EventTimeoutDepositRefunded, DealID: deal.ID, Party: deal.SellerAddr, Amount: new(big.Int).Set(deal.Terms.TimeoutDeposit)})

	// solvency may have changed since PostResult, re-check before escrow
	collateral := deal.CheatingCollateral(result.InstructionCount)
	if l.balance(deal.SellerAddr).Cmp(collateral) < 0 {
		l.log.Warnf("seller %s cannot cover collateral %s for deal %s, result rejected", deal.SellerAddr, collateral, deal.ID)
		l.emit(Event{Kind: EventResultRejected, DealID: deal.ID, ResultID: result.ID})
		return
	}
	l.debit(deal.SellerAddr, collateral)
	l.held.Add(l.held, collateral)

	outcome, err := l.mediator.Resolve(deal, result, l.round)
	if err != nil {
		// a broken mediation path must not strand escrowed funds
		l.log.Errorf("mediation failed for deal %s: %s", deal.ID, err)
		l.release(deal.SellerAddr, collateral)
		l.emit(Event{Kind: EventResultRejected, DealID: deal.ID, ResultID: result.ID})
		return
	}

	if outcome == mediator.OutcomeCorrect {
		l.release(deal.SellerAddr, collateral)
		l.results[result.ID] = result
		resultID := result.ID
		deal.ResultID = &resultID
		l.emit(Event{Kind: EventResultAccepted, DealID: deal.ID, ResultID: result.ID})
		l.log.Infof("result %s accepted for deal %s, awaiting payment", result.ID, deal.ID)
		return
	}

	// cheating: the collateral stays with the ledger and the buyer walks
	l.emit(Event{Kind: EventCollateralSlashed, DealID: deal.ID, Party: deal.SellerAddr, Amount: new(big.Int).Set(collateral)})
	l.release(deal.BuyerAddr, deal.Terms.BuyerDeposit)
	l.emit(Event{Kind: EventBuyerDepositRefunded, DealID: deal.ID, Party: deal.BuyerAddr, Amount: new(big.Int).Set(deal.Terms.BuyerDeposit)})

	deal.CompletedAt = &now
	l.emit(Event{Kind: EventResultRejected, DealID: deal.ID, ResultID: result.ID})
	l.log.Warnf("result %s rejected by mediation, deal %s closed unpaid", result.ID, deal.ID)
}

// Subscribe registers a synchronous event subscriber
func (l *Ledger) Subscribe(s Subscriber) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.subscribers = append(l.subscribers, s)
}

// Balance returns a copy of the account balance, zero for unknown accounts
func (l *Ledger) Balance(addr common.Address) *big.Int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return new(big.Int).Set(l.balance(addr))
}

// HeldBalance returns the total currently escrowed by the ledger
func (l *Ledger) HeldBalance() *big.Int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return new(big.Int).Set(l.held)
}

// TotalBalance is the sum of all account balances plus escrow. Funds only
// enter through Fund and only leave through slashing retention, so this
// is the conservation check quantity.
func (l *Ledger) TotalBalance() *big.Int {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	total := new(big.Int).Set(l.held)
	for _, b := range l.balances {
		total.Add(total, b)
	}
	return total
}

// GetDeal returns the deal by ID
func (l *Ledger) GetDeal(id common.Hash) (*market.Deal, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	deal, ok := l.deals[id]
	return deal, ok
}

// Deals returns all deals ordered by ID
func (l *Ledger) Deals() []*market.Deal {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	deals := make([]*market.Deal, 0, len(l.deals))
	for _, d := range l.deals {
		deals = append(deals, d)
	}
	slices.SortStableFunc(deals, func(a, b *market.Deal) bool {
		return a.ID.Hex() < b.ID.Hex()
	})
	return deals
}

// GetResult returns an accepted result by ID
func (l *Ledger) GetResult(id common.Hash) (*market.Result, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	result, ok := l.results[id]
	return result, ok
}

// Events returns a snapshot of the event log
func (l *Ledger) Events() []Event {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return slices.Clone(l.events)
}

// Round returns the number of completed settlement rounds
func (l *Ledger) Round() uint64 {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.round
}

func (l *Ledger) balance(addr common.Address) *big.Int {
	if b, ok := l.balances[addr]; ok {
		return b
	}
	return new(big.Int)
}

func (l *Ledger) credit(addr common.Address, amount *big.Int) {
	b, ok := l.balances[addr]
	if !ok {
		b = new(big.Int)
		l.balances[addr] = b
	}
	b.Add(b, amount)
}

func (l *Ledger) debit(addr common.Address, amount *big.Int) {
	b, ok := l.balances[addr]
	if !ok {
		// zero-amount movements may touch accounts that never funded
		b = new(big.Int)
		l.balances[addr] = b
	}
	b.Sub(b, amount)
}

// release moves escrowed funds back to an account
func (l *Ledger) release(addr common.Address, amount *big.Int) {
	l.held.Sub(l.held, amount)
	l.credit(addr, amount)
}

func (l *Ledger) emit(e Event) {
	l.events = append(l.events, e)
	for _, s := range l.subscribers {
		s(e)
	}
}
