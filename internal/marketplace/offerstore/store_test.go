package offerstore

import (
	"math/big"
	"testing"
	"time"

	"github.com/coophive/marketnode/internal/lib"
	"github.com/coophive/marketnode/internal/marketplace/market"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func validResourceOffer() *market.ResourceOffer {
	return &market.ResourceOffer{
		Owner:               lib.GetRandomAddr(),
		Resources:           market.Resources{CPU: 4, RAM: 8},
		PricePerInstruction: big.NewInt(1),
	}
}

func validJobOffer() *market.JobOffer {
	return &market.JobOffer{
		Owner:            lib.GetRandomAddr(),
		Resources:        market.Resources{CPU: 4, RAM: 8},
		InstructionCount: 100,
	}
}

func TestPublishAndGet(t *testing.T) {
	s := NewStore(lib.NewTestLogger())

	offer := validResourceOffer()
	id, err := s.PublishResourceOffer(offer, time.Now())
	require.NoError(t, err)

	got, ok := s.GetResourceOffer(id)
	require.True(t, ok)
	require.Equal(t, offer.Owner, got.Owner)
	require.Equal(t, market.DefaultDomain, got.Domain)
}

func TestPublishRejectsInvalidOffer(t *testing.T) {
	s := NewStore(lib.NewTestLogger())

	offer := validResourceOffer()
	offer.Resources.CPU = 0
	_, err := s.PublishResourceOffer(offer, time.Now())
	require.ErrorIs(t, err, market.ErrInvalidAttribute)

	job := validJobOffer()
	job.Owner = common.Address{}
	_, err = s.PublishJobOffer(job, time.Now())
	require.ErrorIs(t, err, market.ErrInvalidAttribute)
}

func TestPublishIsDeduplicated(t *testing.T) {
	s := NewStore(lib.NewTestLogger())

	now := time.Now()
	offer := validResourceOffer()
	id, err := s.PublishResourceOffer(offer, now)
	require.NoError(t, err)

	// republishing the sealed record collides into the same entity
	id2, err := s.PublishResourceOffer(offer, now)
	require.NoError(t, err)
	require.Equal(t, id, id2)
	require.Len(t, s.ResourceOffers(market.DefaultDomain), 1)
}

func TestDistinctOwnersGetDistinctIDs(t *testing.T) {
	s := NewStore(lib.NewTestLogger())

	now := time.Now()
	a, err := s.PublishResourceOffer(validResourceOffer(), now)
	require.NoError(t, err)
	b, err := s.PublishResourceOffer(validResourceOffer(), now)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestRetireOffer(t *testing.T) {
	s := NewStore(lib.NewTestLogger())

	id, err := s.PublishJobOffer(validJobOffer(), time.Now())
	require.NoError(t, err)

	require.True(t, s.RetireOffer(id))
	_, ok := s.GetJobOffer(id)
	require.False(t, ok)
	require.False(t, s.RetireOffer(id))
}

func TestOffersAreDomainScoped(t *testing.T) {
	s := NewStore(lib.NewTestLogger())

	gpuOffer := validResourceOffer()
	gpuOffer.Domain = "gpu"
	_, err := s.PublishResourceOffer(gpuOffer, time.Now())
	require.NoError(t, err)

	_, err = s.PublishResourceOffer(validResourceOffer(), time.Now())
	require.NoError(t, err)

	require.Len(t, s.ResourceOffers("gpu"), 1)
	require.Len(t, s.ResourceOffers(market.DefaultDomain), 1)
	require.Equal(t, []string{market.DefaultDomain, "gpu"}, s.Domains())
}

func TestRetireExpired(t *testing.T) {
	s := NewStore(lib.NewTestLogger())

	now := time.Now()
	shortLived := validResourceOffer()
	shortLived.Timeout = time.Second
	expiring, err := s.PublishResourceOffer(shortLived, now)
	require.NoError(t, err)

	eternal, err := s.PublishJobOffer(validJobOffer(), now)
	require.NoError(t, err)

	retired := s.RetireExpired(now.Add(2 * time.Second))
	require.Equal(t, []common.Hash{expiring}, retired)

	_, ok := s.GetResourceOffer(expiring)
	require.False(t, ok)
	_, ok = s.GetJobOffer(eternal)
	require.True(t, ok)
}
