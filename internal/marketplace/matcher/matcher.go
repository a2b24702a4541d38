package matcher

import (
	"math/big"
	"time"

	"github.com/coophive/marketnode/internal/interfaces"
	"github.com/coophive/marketnode/internal/lib"
	"github.com/coophive/marketnode/internal/marketplace/market"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/exp/slices"
)

// Defaults are the structural terms stamped onto every fresh match
// proposal; agents then negotiate the amounts vector on top of them.
type Defaults struct {
	BuyerDeposit                 *big.Int
	Timeout                      time.Duration
	TimeoutDeposit               *big.Int
	CheatingCollateralMultiplier *big.Int
	VerificationMethod           market.VerificationMethod
}

// Matcher scans unmatched offers and pairs them on exact resource
// equality. It reads offers, never mutates the store: retirement is the
// orchestrator's job once a deal exists.
type Matcher struct {
	defaults Defaults
	log      interfaces.ILogger
}

func NewMatcher(defaults Defaults, log interfaces.ILogger) *Matcher {
	return &Matcher{defaults: defaults, log: log}
}

// FindMatches pairs each unmatched job offer with the compatible resource
// offer that has the lowest ID. Offers claimed earlier in the same round
// (tracked in taken) are never reused. CPU and RAM must be exactly equal;
// GPU is compared only when the job asks for one.
func (m *Matcher) FindMatches(
	jobOffers []*market.JobOffer,
	resourceOffers []*market.ResourceOffer,
	taken lib.Set[common.Hash],
) ([]*market.Match, error) {
	jobs := slices.Clone(jobOffers)
	resources := slices.Clone(resourceOffers)
	slices.SortStableFunc(jobs, func(a, b *market.JobOffer) bool {
		return a.ID.Hex() < b.ID.Hex()
	})
	slices.SortStableFunc(resources, func(a, b *market.ResourceOffer) bool {
		return a.ID.Hex() < b.ID.Hex()
	})

	var matches []*market.Match
	for _, job := range jobs {
		if taken.Contains(job.ID) {
			continue
		}
		for _, res := range resources {
			if taken.Contains(res.ID) {
				continue
			}
			if !compatible(job, res) {
				continue
			}

			match, err := m.newMatch(job, res)
			if err != nil {
				return nil, err
			}
			taken.Add(job.ID, res.ID)
			matches = append(matches, match)
			m.log.Debugf("matched job %s with resource %s", job.ID, res.ID)
			break
		}
	}
	return matches, nil
}

func compatible(job *market.JobOffer, res *market.ResourceOffer) bool {
	if res.Resources.CPU != job.Resources.CPU {
		return false
	}
	if res.Resources.RAM != job.Resources.RAM {
		return false
	}
	if job.Resources.GPU > 0 && res.Resources.GPU != job.Resources.GPU {
		return false
	}
	return true
}

func (m *Matcher) newMatch(job *market.JobOffer, res *market.ResourceOffer) (*market.Match, error) {
	verification := m.defaults.VerificationMethod
	mediators := job.Mediators
	if job.VerificationMethod != market.VerificationNone {
		verification = job.VerificationMethod
	}
	if len(mediators) == 0 {
		mediators = res.Mediators
	}

	expectedInstructions := job.InstructionCount
	if expectedInstructions == 0 {
		expectedInstructions = res.ExpectedInstructions
	}

	match := &market.Match{
		SellerAddr:           res.Owner,
		BuyerAddr:            job.Owner,
		ResourceOfferID:      res.ID,
		JobOfferID:           job.ID,
		ExpectedInstructions: expectedInstructions,
		ExpectedBenefit:      job.ExpectedBenefit,
		Terms: market.Terms{
			PricePerInstruction:          new(big.Int).Set(res.PricePerInstruction),
			BuyerDeposit:                 new(big.Int).Set(m.defaults.BuyerDeposit),
			Timeout:                      m.defaults.Timeout,
			TimeoutDeposit:               new(big.Int).Set(m.defaults.TimeoutDeposit),
			CheatingCollateralMultiplier: new(big.Int).Set(m.defaults.CheatingCollateralMultiplier),
			VerificationMethod:           verification,
			Mediators:                    mediators,
		},
	}
	if err := match.Seal(); err != nil {
		return nil, err
	}
	return match, nil
}
