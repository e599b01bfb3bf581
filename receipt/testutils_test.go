package receipt

import (
	"fmt"
	"testing"

	enclave "github.com/edgebitio/nitro-enclaves-sdk-go"
	"github.com/fxamacker/cbor/v2"
	"github.com/shopspring/decimal"

	"github.com/cloudx-io/sealedauction/core"
)

// MockEnclaveHandle implements the Attest method for testing
type MockEnclaveHandle struct {
	AttestFunc func(options enclave.AttestationOptions) ([]byte, error)
	calls      int
}

func (m *MockEnclaveHandle) Attest(options enclave.AttestationOptions) ([]byte, error) {
	m.calls++
	if m.AttestFunc != nil {
		return m.AttestFunc(options)
	}
	return nil, fmt.Errorf("mock not configured")
}

// CreateMockEnclave returns a handle producing NSM-shaped attestations that echo the user data
func CreateMockEnclave(t *testing.T) *MockEnclaveHandle {
	t.Helper()
	return &MockEnclaveHandle{
		AttestFunc: func(options enclave.AttestationOptions) ([]byte, error) {
			nestedDoc := map[string]any{
				"module_id": "test-enclave-12345",
				"digest":    "SHA384",
				"timestamp": uint64(1234567890),
				"pcrs": map[uint64][]byte{
					0: {0x3b, 0x4c, 0xef},
				},
				"certificate": []byte("test-certificate-data"),
				"cabundle":    [][]byte{[]byte("test-ca-cert")},
				"user_data":   options.UserData,
				"nonce":       options.Nonce,
			}

			nestedBytes, err := cbor.Marshal(nestedDoc)
			if err != nil {
				return nil, err
			}

			// NSM 4-element array: [header, metadata, nested_doc, signature]
			return cbor.Marshal([]any{
				[]byte{0x01, 0x02, 0x03},
				map[string]any{},
				nestedBytes,
				[]byte{0x04, 0x05, 0x06},
			})
		},
	}
}

func bid(bidder string, quantity int64, price string) core.Bid {
	return core.Bid{Bidder: bidder, Quantity: quantity, Price: decimal.RequireFromString(price)}
}

// scenarioOneAuction is the two-bidder Dutch example: A 10@50, B 5@40, inventory 12.
func scenarioOneAuction(t *testing.T) *core.SealedBidAuction {
	t.Helper()
	a, err := core.NewSealedBidAuction([]core.Bid{
		bid("A", 10, "50"),
		bid("B", 5, "40"),
	}, 12, false)
	if err != nil {
		t.Fatalf("NewSealedBidAuction: %v", err)
	}
	return a
}

func newTestIssuer(t *testing.T, opts ...IssuerOption) (*Issuer, *KeyManager) {
	t.Helper()
	km, err := NewKeyManager()
	if err != nil {
		t.Fatalf("NewKeyManager: %v", err)
	}
	issuer, err := NewIssuer(km, opts...)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	return issuer, km
}
