package offerstore

import (
	"time"

	"github.com/coophive/marketnode/internal/interfaces"
	"github.com/coophive/marketnode/internal/lib"
	"github.com/coophive/marketnode/internal/marketplace/market"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"golang.org/x/exp/slices"
)

var validate = validator.New()

// Store holds the active offers per matching domain. Pure storage: it
// never decides matches, and retirement of matched offers is driven by the
// round orchestrator after a deal actually exists.
type Store struct {
	resourceOffers *lib.Collection[*market.ResourceOffer]
	jobOffers      *lib.Collection[*market.JobOffer]
	log            interfaces.ILogger
}

func NewStore(log interfaces.ILogger) *Store {
	return &Store{
		resourceOffers: lib.NewCollection[*market.ResourceOffer](),
		jobOffers:      lib.NewCollection[*market.JobOffer](),
		log:            log,
	}
}

// PublishResourceOffer validates and seals the offer, then stores it. Two
// publishes with identical canonical encodings collide into one entity by
// construction of the content-addressed ID.
func (s *Store) PublishResourceOffer(offer *market.ResourceOffer, now time.Time) (common.Hash, error) {
	if err := validate.Struct(offer); err != nil {
		return common.Hash{}, lib.WrapError(market.ErrInvalidAttribute, err)
	}
	if err := offer.Seal(now); err != nil {
		return common.Hash{}, err
	}
	if _, loaded := s.resourceOffers.LoadOrStore(offer); loaded {
		s.log.Debugf("resource offer %s already published, deduplicated", offer.ID)
		return offer.ID, nil
	}
	s.log.Infof("resource offer %s published by %s", offer.ID, offer.Owner)
	return offer.ID, nil
}

func (s *Store) PublishJobOffer(offer *market.JobOffer, now time.Time) (common.Hash, error) {
	if err := validate.Struct(offer); err != nil {
		return common.Hash{}, lib.WrapError(market.ErrInvalidAttribute, err)
	}
	if err := offer.Seal(now); err != nil {
		return common.Hash{}, err
	}
	if _, loaded := s.jobOffers.LoadOrStore(offer); loaded {
		s.log.Debugf("job offer %s already published, deduplicated", offer.ID)
		return offer.ID, nil
	}
	s.log.Infof("job offer %s published by %s", offer.ID, offer.Owner)
	return offer.ID, nil
}

// RetireOffer removes the offer with the given ID from whichever side it
// lives on. Reports whether anything was removed.
func (s *Store) RetireOffer(id common.Hash) bool {
	if _, ok := s.resourceOffers.Load(id.Hex()); ok {
		s.resourceOffers.Delete(id.Hex())
		s.log.Debugf("resource offer %s retired", id)
		return true
	}
	if _, ok := s.jobOffers.Load(id.Hex()); ok {
		s.jobOffers.Delete(id.Hex())
		s.log.Debugf("job offer %s retired", id)
		return true
	}
	return false
}

func (s *Store) GetResourceOffer(id common.Hash) (*market.ResourceOffer, bool) {
	return s.resourceOffers.Load(id.Hex())
}

func (s *Store) GetJobOffer(id common.Hash) (*market.JobOffer, bool) {
	return s.jobOffers.Load(id.Hex())
}

// ResourceOffers returns the active resource offers of one domain sorted
// by ID, so every scan over the store is deterministic.
func (s *Store) ResourceOffers(domain string) []*market.ResourceOffer {
	var offers []*market.ResourceOffer
	s.resourceOffers.Range(func(o *market.ResourceOffer) bool {
		if o.Domain == domain {
			offers = append(offers, o)
		}
		return true
	})
	slices.SortStableFunc(offers, func(a, b *market.ResourceOffer) bool {
		return a.ID.Hex() < b.ID.Hex()
	})
	return offers
}

func (s *Store) JobOffers(domain string) []*market.JobOffer {
	var offers []*market.JobOffer
	s.jobOffers.Range(func(o *market.JobOffer) bool {
		if o.Domain == domain {
			offers = append(offers, o)
		}
		return true
	})
	slices.SortStableFunc(offers, func(a, b *market.JobOffer) bool {
		return a.ID.Hex() < b.ID.Hex()
	})
	return offers
}

// Domains lists the distinct domains that currently have offers
func (s *Store) Domains() []string {
	set := lib.NewSet[string]()
	s.resourceOffers.Range(func(o *market.ResourceOffer) bool {
		set.Add(o.Domain)
		return true
	})
	s.jobOffers.Range(func(o *market.JobOffer) bool {
		set.Add(o.Domain)
		return true
	})
	domains := set.ToSlice()
	slices.Sort(domains)
	return domains
}

// RetireExpired drops offers whose timeout elapsed and returns their IDs
func (s *Store) RetireExpired(now time.Time) []common.Hash {
	var retired []common.Hash
	s.resourceOffers.Range(func(o *market.ResourceOffer) bool {
		if o.Expired(now) {
			s.resourceOffers.Delete(o.GetID())
			retired = append(retired, o.ID)
		}
		return true
	})
	s.jobOffers.Range(func(o *market.JobOffer) bool {
		if o.Expired(now) {
			s.jobOffers.Delete(o.GetID())
			retired = append(retired, o.ID)
		}
		return true
	})
	if len(retired) > 0 {
		s.log.Infof("retired %d expired offers", len(retired))
	}
	return retired
}
