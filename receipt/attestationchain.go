package receipt

import (
	"crypto/ecdsa"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"
)

// awsNitroRootCA is the root certificate for AWS Nitro Enclaves
// Valid until 2049-10-28, P-384 self-signed certificate
// Source: https://docs.aws.amazon.com/enclaves/latest/user/verify-root.html
const awsNitroRootCA = `-----BEGIN CERTIFICATE-----
MIICETCCAZagAwIBAgIRAPkxdWgbkK/hHUbMtOTn+FYwCgYIKoZIzj0EAwMwSTEL
MAkGA1UEBhMCVVMxDzANBgNVBAoMBkFtYXpvbjEMMAoGA1UECwwDQVdTMRswGQYD
VQQDDBJhd3Mubml0cm8tZW5jbGF2ZXMwHhcNMTkxMDI4MTMyODA1WhcNNDkxMDI4
MTQyODA1WjBJMQswCQYDVQQGEwJVUzEPMA0GA1UECgwGQW1hem9uMQwwCgYDVQQL
DANBV1MxGzAZBgNVBAMMEmF3cy5uaXRyby1lbmNsYXZlczB2MBAGByqGSM49AgEG
BSuBBAAiA2IABPwCVOumCMHzaHDimtqQvkY4MpJzbolL//Zy2YlES1BR5TSksfbb
48C8WBoyt7F2Bw7eEtaaP+ohG2bnUs990d0JX28TcPQXCEPZ3BABIeTPYwEoCWZE
h8l5YoQwTcU/9KNCMEAwDwYDVR0TAQH/BAUwAwEB/zAdBgNVHQ4EFgQUkCW1DdkF
R+eWw5b6cp3PmanfS5YwDgYDVR0PAQH/BAQDAgGGMAoGCCqGSM49BAMDA2kAMGYC
MQCjfy+Rocm9Xue4YnwWmNJVA44fA0P5W2OpYow9OYCVRaEevL8uO1XYru5xtMPW
rfMCMQCi85sWBbJwKKXdS6BptQFuZbT73o/gBh1qUxl/nNr12UO8Yfwr6wPLb+6N
IwLz3/Y=
-----END CERTIFICATE-----`

var (
	ErrAttestationChain     = errors.New("attestation certificate chain validation failed")
	ErrAttestationSignature = errors.New("attestation COSE signature verification failed")
)

// NitroRoots returns a pool holding only the AWS Nitro Enclaves root certificate.
func NitroRoots() (*x509.CertPool, error) {
	roots := x509.NewCertPool()
	if !roots.AppendCertsFromPEM([]byte(awsNitroRootCA)) {
		return nil, fmt.Errorf("failed to parse AWS Nitro root CA")
	}
	return roots, nil
}

// VerifyAttestation checks that an NSM attestation was signed by a certificate chaining
// to roots, evaluated at the document's own timestamp. A nil pool means the AWS Nitro root.
func VerifyAttestation(coseBytes []byte, roots *x509.CertPool) (*NitroAttestationDocument, error) {
	doc, err := ParseAttestationDocument(coseBytes)
	if err != nil {
		return nil, err
	}

	if roots == nil {
		if roots, err = NitroRoots(); err != nil {
			return nil, err
		}
	}

	if len(doc.Certificate) == 0 {
		return nil, fmt.Errorf("%w: missing certificate", ErrAttestationChain)
	}
	if len(doc.CABundle) == 0 {
		return nil, fmt.Errorf("%w: missing CA bundle", ErrAttestationChain)
	}

	cert, err := x509.ParseCertificate(doc.Certificate)
	if err != nil {
		return nil, fmt.Errorf("%w: parse certificate: %v", ErrAttestationChain, err)
	}

	intermediates := x509.NewCertPool()
	for _, caDER := range doc.CABundle {
		caCert, err := x509.ParseCertificate(caDER)
		if err != nil {
			return nil, fmt.Errorf("%w: parse CA certificate: %v", ErrAttestationChain, err)
		}
		intermediates.AddCert(caCert)
	}

	opts := x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
		CurrentTime:   time.UnixMilli(int64(doc.Timestamp)), // NSM timestamps are milliseconds
	}
	if _, err := cert.Verify(opts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAttestationChain, err)
	}

	if err := verifyAttestationSignature(coseBytes, cert); err != nil {
		return nil, err
	}
	return doc, nil
}

// verifyAttestationSignature checks the untagged COSE_Sign1 produced by NSM.
// It rebuilds the Sig_structure by hand since go-cose expects the tagged form.
func verifyAttestationSignature(coseBytes []byte, cert *x509.Certificate) error {
	var coseArray []any
	if err := cbor.Unmarshal(coseBytes, &coseArray); err != nil {
		return fmt.Errorf("parse COSE array: %w", err)
	}
	if len(coseArray) != 4 {
		return fmt.Errorf("invalid COSE_Sign1 structure: expected 4 elements, got %d", len(coseArray))
	}

	protectedBytes, ok := coseArray[0].([]byte)
	if !ok {
		return fmt.Errorf("invalid protected headers")
	}
	payload, ok := coseArray[2].([]byte)
	if !ok {
		return fmt.Errorf("invalid payload")
	}
	signature, ok := coseArray[3].([]byte)
	if !ok {
		return fmt.Errorf("invalid signature")
	}

	ecdsaKey, ok := cert.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return fmt.Errorf("certificate public key is not ECDSA")
	}

	// ["Signature1", protected, external_aad, payload]
	sigStructure, err := cbor.Marshal([]any{"Signature1", protectedBytes, []byte{}, payload})
	if err != nil {
		return fmt.Errorf("marshal Sig_structure: %w", err)
	}

	verifier, err := cose.NewVerifier(cose.AlgorithmES384, ecdsaKey)
	if err != nil {
		return fmt.Errorf("create verifier: %w", err)
	}
	if err := verifier.Verify(sigStructure, signature); err != nil {
		return fmt.Errorf("%w: %v", ErrAttestationSignature, err)
	}
	return nil
}
