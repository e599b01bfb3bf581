package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/cloudx-io/sealedauction/core"
	"github.com/cloudx-io/sealedauction/receipt"
)

func issueTestReceipt(t *testing.T) (*receipt.Receipt, *receipt.KeyManager) {
	t.Helper()
	km, err := receipt.NewKeyManager()
	assert.NoError(t, err)
	issuer, err := receipt.NewIssuer(km)
	assert.NoError(t, err)

	auction, err := core.NewSealedBidAuction([]core.Bid{
		{Bidder: "A", Quantity: 10, Price: decimal.NewFromInt(50)},
		{Bidder: "B", Quantity: 5, Price: decimal.NewFromInt(40)},
	}, 12, false)
	assert.NoError(t, err)

	r, err := issuer.Issue("verifier-test", core.RuleDutch, auction)
	assert.NoError(t, err)
	return r, km
}

func TestReadReceipt_AllEncodings(t *testing.T) {
	r, _ := issueTestReceipt(t)

	rawPath := filepath.Join(t.TempDir(), "receipt.cose")
	assert.NoError(t, os.WriteFile(rawPath, r.COSE, 0o600))

	gzipped, err := r.COSE.CompressGzip()
	assert.NoError(t, err)

	inputs := map[string]string{
		"raw file":  rawPath,
		"base64":    r.COSE.EncodeBase64().String(),
		"base64url": r.COSE.EncodeURLSafe().String(),
		"gzip":      gzipped.String(),
	}

	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			got, err := readReceipt(input)
			assert.NoError(t, err)
			check.Equal(t, []byte(r.COSE), []byte(got))
		})
	}
}

func TestReadReceipt_Invalid(t *testing.T) {
	_, err := readReceipt("not a receipt!!!")
	check.NotNil(t, err)
}

func TestReadBid(t *testing.T) {
	bid, err := readBid(`{"User":"A","Quantity":10,"Price":"50"}`)
	assert.NoError(t, err)
	check.Equal(t, "A", bid.Bidder)
	check.Equal(t, int64(10), bid.Quantity)
	check.True(t, bid.Price.Equal(decimal.NewFromInt(50)))

	_, err = readBid("{")
	check.NotNil(t, err)
}

func TestReadRoots(t *testing.T) {
	roots, err := readRoots("nitro")
	assert.NoError(t, err)
	check.True(t, roots == nil)

	empty := filepath.Join(t.TempDir(), "roots.pem")
	assert.NoError(t, os.WriteFile(empty, []byte("no certificates here"), 0o600))
	_, err = readRoots(empty)
	check.NotNil(t, err)

	_, err = readRoots(filepath.Join(t.TempDir(), "missing.pem"))
	check.NotNil(t, err)
}
