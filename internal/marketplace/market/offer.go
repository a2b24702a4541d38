package market

import (
	"encoding/json"
	"io"
	"math/big"
	"time"

	"github.com/coophive/marketnode/internal/lib"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

const DefaultDomain = "default"

// Resources is the fixed attribute set offers are matched on. CPU and RAM
// are always compared, GPU only when the job asks for one.
type Resources struct {
	CPU int `json:"cpu" validate:"required,gt=0"`
	RAM int `json:"ram" validate:"required,gt=0"`
	GPU int `json:"gpu" validate:"gte=0"`
}

// ResourceOffer is a published, immutable advertisement of capacity.
// Identity covers owner, creation time and nonce in addition to the
// attributes, so two sellers advertising identical machines still get
// distinct IDs. Entities whose canonical encodings are byte-identical are
// the same entity.
type ResourceOffer struct {
	ID                   common.Hash        `json:"id"`
	Owner                common.Address     `json:"owner" validate:"required"`
	Domain               string             `json:"domain"`
	CreatedAt            time.Time          `json:"createdAt"`
	Nonce                string             `json:"nonce"`
	Timeout              time.Duration      `json:"timeout" validate:"gte=0"`
	Resources            Resources          `json:"resources"`
	PricePerInstruction  *big.Int           `json:"pricePerInstruction" validate:"required"`
	ExpectedInstructions int64              `json:"expectedInstructions" validate:"gte=0"`
	VerificationMethod   VerificationMethod `json:"verificationMethod"`
	Mediators            []common.Address   `json:"mediators"`
}

// JobOffer is a published, immutable advertisement of demand.
type JobOffer struct {
	ID                 common.Hash        `json:"id"`
	Owner              common.Address     `json:"owner" validate:"required"`
	Domain             string             `json:"domain"`
	CreatedAt          time.Time          `json:"createdAt"`
	Nonce              string             `json:"nonce"`
	Timeout            time.Duration      `json:"timeout" validate:"gte=0"`
	Resources          Resources          `json:"resources"`
	InstructionCount   int64              `json:"instructionCount" validate:"gte=0"`
	ExpectedBenefit    *big.Int           `json:"expectedBenefit"`
	VerificationMethod VerificationMethod `json:"verificationMethod"`
	Mediators          []common.Address   `json:"mediators"`
}

// Seal stamps creation metadata and computes the content-addressed ID.
// Published offers are immutable afterwards.
func (o *ResourceOffer) Seal(now time.Time) error {
	if o.Domain == "" {
		o.Domain = DefaultDomain
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	if o.Nonce == "" {
		o.Nonce = uuid.NewString()
	}
	id, err := offerID(*o)
	if err != nil {
		return err
	}
	o.ID = id
	return nil
}

func (o *JobOffer) Seal(now time.Time) error {
	if o.Domain == "" {
		o.Domain = DefaultDomain
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	if o.Nonce == "" {
		o.Nonce = uuid.NewString()
	}

	j := *o
	j.ID = common.Hash{}
	id, err := lib.CanonicalHash(&j)
	if err != nil {
		return err
	}
	o.ID = id
	return nil
}

func offerID(o ResourceOffer) (common.Hash, error) {
	o.ID = common.Hash{}
	return lib.CanonicalHash(&o)
}

func (o *ResourceOffer) GetID() string { return o.ID.Hex() }

func (o *JobOffer) GetID() string { return o.ID.Hex() }

// Expired reports whether the offer's own timeout elapsed
func (o *ResourceOffer) Expired(now time.Time) bool {
	return o.Timeout > 0 && now.After(o.CreatedAt.Add(o.Timeout))
}

func (o *JobOffer) Expired(now time.Time) bool {
	return o.Timeout > 0 && now.After(o.CreatedAt.Add(o.Timeout))
}

// DecodeStrict decodes a JSON record rejecting unknown fields, so malformed
// or hostile payloads fail at construction time with ErrInvalidAttribute
// before any state is touched. Incoming records are data, never code.
func DecodeStrict(r io.Reader, v interface{}) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return lib.WrapError(ErrInvalidAttribute, err)
	}
	return nil
}
