package receipt

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"math/big"
	"testing"
	"time"

	enclave "github.com/edgebitio/nitro-enclaves-sdk-go"
	"github.com/fxamacker/cbor/v2"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/veraison/go-cose"

	"github.com/cloudx-io/sealedauction/core"
)

// testCA is a root plus a leaf signing certificate standing in for the NSM chain
type testCA struct {
	root    *x509.Certificate
	leaf    *x509.Certificate
	leafKey *ecdsa.PrivateKey
}

func newTestCA(t *testing.T) *testCA {
	t.Helper()
	now := time.Now()

	rootKey, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	assert.NoError(t, err)
	rootTemplate := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test-nitro-root"},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
	rootDER, err := x509.CreateCertificate(rand.Reader, rootTemplate, rootTemplate, &rootKey.PublicKey, rootKey)
	assert.NoError(t, err)
	root, err := x509.ParseCertificate(rootDER)
	assert.NoError(t, err)

	leafKey, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	assert.NoError(t, err)
	leafTemplate := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "test-enclave"},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTemplate, root, &leafKey.PublicKey, rootKey)
	assert.NoError(t, err)
	leaf, err := x509.ParseCertificate(leafDER)
	assert.NoError(t, err)

	return &testCA{root: root, leaf: leaf, leafKey: leafKey}
}

func (ca *testCA) pool() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(ca.root)
	return pool
}

// attester returns a handle producing untagged COSE_Sign1 attestations signed by the leaf
func (ca *testCA) attester(t *testing.T) *MockEnclaveHandle {
	t.Helper()
	return &MockEnclaveHandle{
		AttestFunc: func(options enclave.AttestationOptions) ([]byte, error) {
			payload, err := cbor.Marshal(map[string]any{
				"module_id":   "test-enclave-12345",
				"digest":      "SHA384",
				"timestamp":   uint64(time.Now().UnixMilli()),
				"pcrs":        map[uint64][]byte{0: {0x3b, 0x4c, 0xef}},
				"certificate": ca.leaf.Raw,
				"cabundle":    [][]byte{ca.root.Raw},
				"user_data":   options.UserData,
				"nonce":       options.Nonce,
			})
			if err != nil {
				return nil, err
			}

			protected, err := cbor.Marshal(map[int]int{1: -35}) // alg: ES384
			if err != nil {
				return nil, err
			}
			sigStructure, err := cbor.Marshal([]any{"Signature1", protected, []byte{}, payload})
			if err != nil {
				return nil, err
			}

			signer, err := cose.NewSigner(cose.AlgorithmES384, ca.leafKey)
			if err != nil {
				return nil, err
			}
			signature, err := signer.Sign(rand.Reader, sigStructure)
			if err != nil {
				return nil, err
			}

			return cbor.Marshal([]any{protected, map[string]any{}, payload, signature})
		},
	}
}

func TestNitroRoots(t *testing.T) {
	roots, err := NitroRoots()
	assert.NoError(t, err)
	check.True(t, roots != nil)
}

func TestVerifyAttestation(t *testing.T) {
	ca := newTestCA(t)
	attestation, err := ca.attester(t).Attest(enclave.AttestationOptions{UserData: []byte("hash")})
	assert.NoError(t, err)

	doc, err := VerifyAttestation(attestation, ca.pool())
	assert.NoError(t, err)
	check.Equal(t, "test-enclave-12345", doc.ModuleID)
	check.Equal(t, "hash", string(doc.UserData))
}

func TestVerifyAttestation_UnknownRoot(t *testing.T) {
	ca := newTestCA(t)
	other := newTestCA(t)
	attestation, err := ca.attester(t).Attest(enclave.AttestationOptions{UserData: []byte("hash")})
	assert.NoError(t, err)

	_, err = VerifyAttestation(attestation, other.pool())
	check.True(t, errors.Is(err, ErrAttestationChain))

	// Test certificates never chain to the AWS root
	_, err = VerifyAttestation(attestation, nil)
	check.True(t, errors.Is(err, ErrAttestationChain))
}

func TestVerifyAttestation_BadSignature(t *testing.T) {
	ca := newTestCA(t)
	attestation, err := ca.attester(t).Attest(enclave.AttestationOptions{UserData: []byte("hash")})
	assert.NoError(t, err)

	var coseArray []any
	assert.NoError(t, cbor.Unmarshal(attestation, &coseArray))
	signature := coseArray[3].([]byte)
	signature[0] ^= 0xff
	coseArray[3] = signature
	tampered, err := cbor.Marshal(coseArray)
	assert.NoError(t, err)

	_, err = VerifyAttestation(tampered, ca.pool())
	check.True(t, errors.Is(err, ErrAttestationSignature))
}

func TestVerifyAttestation_MockCertificate(t *testing.T) {
	attestation, err := CreateMockEnclave(t).Attest(enclave.AttestationOptions{UserData: []byte("hash")})
	assert.NoError(t, err)

	_, err = VerifyAttestation(attestation, newTestCA(t).pool())
	check.True(t, errors.Is(err, ErrAttestationChain))
}

func TestVerifyReceipt_AttestationChain(t *testing.T) {
	ca := newTestCA(t)
	issuer, km := newTestIssuer(t, WithAttester(ca.attester(t)))

	r, err := issuer.Issue("auction-chain", core.RuleDutch, scenarioOneAuction(t))
	assert.NoError(t, err)

	result, _, err := VerifyReceipt(r.COSE, km.PublicKey, WithAttestationRoots(ca.pool()))
	assert.NoError(t, err)
	check.True(t, result.ChainChecked)
	check.True(t, result.ChainValid)
	check.True(t, result.IsValid())

	result, _, err = VerifyReceipt(r.COSE, km.PublicKey, WithAttestationRoots(newTestCA(t).pool()))
	assert.NoError(t, err)
	check.True(t, result.ChainChecked)
	check.True(t, !result.ChainValid)
	check.True(t, !result.IsValid())

	// Without roots the chain is not checked
	result, _, err = VerifyReceipt(r.COSE, km.PublicKey)
	assert.NoError(t, err)
	check.True(t, !result.ChainChecked)
	check.True(t, result.IsValid())
}
