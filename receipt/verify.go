package receipt

import (
	"crypto/ecdsa"
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/veraison/go-cose"

	"github.com/cloudx-io/sealedauction/auctionapi"
	"github.com/cloudx-io/sealedauction/core"
)

var ErrSignatureInvalid = errors.New("receipt signature verification failed")

// VerificationResult contains the checks run against a receipt
type VerificationResult struct {
	SignatureValid      bool
	AllocationHashValid bool
	SummaryValid        bool
	AttestationPresent  bool
	AttestationBound    bool // Attestation user data equals the allocation hash
	ChainChecked        bool
	ChainValid          bool
	ValidationDetails   []string
}

// IsValid returns true if all checks passed. A receipt without attestation can be valid.
func (r *VerificationResult) IsValid() bool {
	return r.SignatureValid && r.AllocationHashValid && r.SummaryValid &&
		(!r.AttestationPresent || r.AttestationBound) &&
		(!r.ChainChecked || r.ChainValid)
}

type verifyOptions struct {
	checkChain bool
	roots      *x509.CertPool
}

// VerifyOption configures VerifyReceipt
type VerifyOption func(*verifyOptions)

// WithAttestationRoots makes VerifyReceipt check the attestation certificate chain
// against roots. A nil pool means the AWS Nitro root.
func WithAttestationRoots(roots *x509.CertPool) VerifyOption {
	return func(o *verifyOptions) {
		o.checkChain = true
		o.roots = roots
	}
}

// Verify checks the COSE signature with publicKey and returns the decoded outcome.
// Signature failures wrap ErrSignatureInvalid.
func Verify(coseBytes auctionapi.ReceiptCOSE, publicKey *ecdsa.PublicKey) (*Outcome, error) {
	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(coseBytes); err != nil {
		return nil, fmt.Errorf("parse COSE_Sign1: %w", err)
	}

	verifier, err := cose.NewVerifier(cose.AlgorithmES384, publicKey)
	if err != nil {
		return nil, fmt.Errorf("create verifier: %w", err)
	}

	if err := msg.Verify(nil, verifier); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	return UnmarshalOutcome(msg.Payload)
}

// VerifyReceipt runs every receipt check and reports each of them.
// The error is reserved for receipts that cannot be parsed at all.
func VerifyReceipt(coseBytes auctionapi.ReceiptCOSE, publicKey *ecdsa.PublicKey, opts ...VerifyOption) (*VerificationResult, *Outcome, error) {
	var options verifyOptions
	for _, opt := range opts {
		opt(&options)
	}

	result := &VerificationResult{
		ValidationDetails: []string{},
	}

	outcome, err := Verify(coseBytes, publicKey)
	if errors.Is(err, ErrSignatureInvalid) {
		result.ValidationDetails = append(result.ValidationDetails, err.Error())
		return result, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	result.SignatureValid = true
	result.ValidationDetails = append(result.ValidationDetails, "COSE signature verified")

	winners, err := outcome.Winners()
	if err != nil {
		result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Malformed allocation: %v", err))
		return result, outcome, nil
	}

	if core.ComputeAllocationHash(winners, outcome.AllocationNonce) == outcome.AllocationHash {
		result.AllocationHashValid = true
		result.ValidationDetails = append(result.ValidationDetails, "Allocation hash matches allocations")
	} else {
		result.ValidationDetails = append(result.ValidationDetails, "Allocation hash mismatch")
	}

	if newSummaryRecord(core.Summarize(winners)) == outcome.Summary {
		result.SummaryValid = true
		result.ValidationDetails = append(result.ValidationDetails, "Summary matches allocations")
	} else {
		result.ValidationDetails = append(result.ValidationDetails, "Summary mismatch")
	}

	if len(outcome.Attestation) > 0 {
		result.AttestationPresent = true
		doc, err := ParseAttestationDocument(outcome.Attestation)
		switch {
		case err != nil:
			result.ValidationDetails = append(result.ValidationDetails, fmt.Sprintf("Attestation unreadable: %v", err))
		case string(doc.UserData) != outcome.AllocationHash:
			result.ValidationDetails = append(result.ValidationDetails, "Attestation user data does not match allocation hash")
		default:
			result.AttestationBound = true
			result.ValidationDetails = append(result.ValidationDetails,
				fmt.Sprintf("Attestation from module %s binds allocation hash", doc.ModuleID))
		}

		if options.checkChain {
			result.ChainChecked = true
			if _, err := VerifyAttestation(outcome.Attestation, options.roots); err != nil {
				result.ValidationDetails = append(result.ValidationDetails, err.Error())
			} else {
				result.ChainValid = true
				result.ValidationDetails = append(result.ValidationDetails, "Attestation certificate chain and signature verified")
			}
		}
	}

	return result, outcome, nil
}
