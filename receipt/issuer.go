package receipt

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/veraison/go-cose"
	"go.uber.org/zap"

	"github.com/cloudx-io/sealedauction/auctionapi"
	"github.com/cloudx-io/sealedauction/core"
)

var ErrNoSigningKey = errors.New("receipt issuer has no signing key")

// Receipt is an issued receipt: the signed COSE_Sign1 bytes plus what they contain.
type Receipt struct {
	ID      string
	Outcome *Outcome
	Winners []core.Allocation
	COSE    auctionapi.ReceiptCOSE
}

// Issuer runs allocation rules and signs their outcomes
type Issuer struct {
	keys     *KeyManager
	attester Attester // Optional
	logger   *zap.Logger
	now      func() time.Time
}

// IssuerOption configures an Issuer
type IssuerOption func(*Issuer)

// WithAttester binds every receipt to an NSM attestation of its allocation hash.
func WithAttester(attester Attester) IssuerOption {
	return func(i *Issuer) { i.attester = attester }
}

// WithLogger sets the issuer's logger. The default discards everything.
func WithLogger(logger *zap.Logger) IssuerOption {
	return func(i *Issuer) { i.logger = logger }
}

// NewIssuer creates an issuer that signs with keys
func NewIssuer(keys *KeyManager, opts ...IssuerOption) (*Issuer, error) {
	if keys == nil || keys.privateKey == nil {
		return nil, ErrNoSigningKey
	}

	i := &Issuer{
		keys:   keys,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Issue runs rule on auction and returns a signed receipt of the result.
// Bid hashes are computed over the auction's sorted bid table.
func (i *Issuer) Issue(auctionID string, rule core.Rule, auction *core.SealedBidAuction) (*Receipt, error) {
	winners, err := auction.Run(rule)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", rule, err)
	}

	outcome, err := i.buildOutcome(auctionID, rule, auction, winners)
	if err != nil {
		return nil, err
	}

	if i.attester != nil {
		attestation, err := attestAllocation(i.attester, outcome.AllocationHash)
		if err != nil {
			i.logger.Error("Receipt attestation failed", zap.String("auction_id", auctionID), zap.Error(err))
			return nil, err
		}
		outcome.Attestation = attestation
		i.logger.Info("NSM attestation generated", zap.Int("bytes", len(attestation)))
	}

	coseBytes, err := i.sign(outcome)
	if err != nil {
		return nil, err
	}

	i.logger.Info("Receipt issued",
		zap.String("receipt_id", outcome.ReceiptID),
		zap.String("auction_id", auctionID),
		zap.String("rule", string(rule)),
		zap.Int("winners", len(winners)),
		zap.Int("bytes", len(coseBytes)))

	return &Receipt{
		ID:      outcome.ReceiptID,
		Outcome: outcome,
		Winners: winners,
		COSE:    coseBytes,
	}, nil
}

func (i *Issuer) buildOutcome(auctionID string, rule core.Rule, auction *core.SealedBidAuction, winners []core.Allocation) (*Outcome, error) {
	bidHashNonce, err := generateNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate bid hash nonce: %w", err)
	}

	allocationNonce, err := generateNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate allocation nonce: %w", err)
	}

	return &Outcome{
		ReceiptID:         uuid.NewString(),
		AuctionID:         auctionID,
		Rule:              rule,
		InventoryQuantity: auction.InventoryQuantity(),
		BidHashes:         core.ComputeBidHashes(auction.Bids(), bidHashNonce),
		BidHashNonce:      bidHashNonce,
		Allocations:       newAllocationRecords(winners),
		AllocationHash:    core.ComputeAllocationHash(winners, allocationNonce),
		AllocationNonce:   allocationNonce,
		Summary:           newSummaryRecord(core.Summarize(winners)),
		IssuedAt:          i.now().Unix(),
	}, nil
}

func (i *Issuer) sign(outcome *Outcome) (auctionapi.ReceiptCOSE, error) {
	payload, err := outcome.Marshal()
	if err != nil {
		return nil, err
	}

	signer, err := cose.NewSigner(cose.AlgorithmES384, i.keys.privateKey)
	if err != nil {
		return nil, fmt.Errorf("create signer: %w", err)
	}

	headers := cose.Headers{
		Protected: cose.ProtectedHeader{
			cose.HeaderLabelAlgorithm: cose.AlgorithmES384,
		},
	}

	coseBytes, err := cose.Sign1(rand.Reader, signer, headers, payload, nil)
	if err != nil {
		return nil, fmt.Errorf("sign receipt: %w", err)
	}
	return auctionapi.ReceiptCOSE(coseBytes), nil
}
