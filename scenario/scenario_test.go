package scenario

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/cloudx-io/sealedauction/core"
)

func TestLoad_YAML(t *testing.T) {
	s, err := Load("testdata/two_bidders.yaml")
	assert.NoError(t, err)

	check.Equal(t, "treasury-2026-10", s.AuctionID)
	check.Equal(t, int64(12), s.InventoryQuantity)
	check.True(t, s.Strict)
	check.Equal(t, []core.Rule{core.RuleDutch, core.RuleMinPriceDutch, core.RuleHybridDutch}, s.Rules())
	check.Equal(t, 2, len(s.Bids))
	check.Equal(t, "A", s.Bids[0].User)
	check.True(t, s.Bids[0].Price.Equal(decimal.NewFromInt(50)))
	check.True(t, s.Bids[1].Price.Equal(decimal.NewFromInt(40)))
}

func TestLoad_JSON(t *testing.T) {
	s, err := Load("testdata/two_bidders.json")
	assert.NoError(t, err)

	check.Equal(t, "treasury-2026-10", s.AuctionID)
	check.Equal(t, core.AllRules, s.Rules())
	check.Equal(t, 2, len(s.Bids))
	check.True(t, s.Bids[1].Price.Equal(decimal.NewFromInt(40)))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("testdata/does_not_exist.yaml")
	check.NotNil(t, err)
}

func TestParse_GeneratesAuctionID(t *testing.T) {
	s, err := Parse([]byte("inventory_quantity: 1\nbids: []\n"))
	assert.NoError(t, err)

	_, err = uuid.Parse(s.AuctionID)
	check.Nil(t, err)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"empty", "", ErrEmptyScenario},
		{"negative inventory", "inventory_quantity: -1\n", core.ErrInvalidInventory},
		{"unknown rule", "inventory_quantity: 1\nrules: [english]\n", core.ErrUnknownRule},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			check.True(t, errors.Is(err, tt.wantErr))
		})
	}
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("inventory_quantity: 1\ninventory: 3\n"))
	check.NotNil(t, err)
}

func TestParse_RejectsBadPrice(t *testing.T) {
	_, err := Parse([]byte("inventory_quantity: 1\nbids:\n  - {user: A, quantity: 1, price: lots}\n"))
	check.NotNil(t, err)
}

func TestParse_StrictRejectsInvalidBid(t *testing.T) {
	input := `
inventory_quantity: 5
strict: true
bids:
  - {user: A, quantity: 1, price: "1"}
  - {user: B, quantity: 0, price: "1"}
`
	_, err := Parse([]byte(input))

	var invalid *core.InvalidBidError
	check.True(t, errors.As(err, &invalid))
	check.Equal(t, "B", invalid.Bid.Bidder)
}

func TestScenario_LenientKeepsInvalidBids(t *testing.T) {
	input := `
inventory_quantity: 5
bids:
  - {user: A, quantity: 1, price: "1"}
  - {user: B, quantity: 0, price: "1"}
  - {user: "", quantity: 2, price: "3"}
`
	s, err := Parse([]byte(input))
	assert.NoError(t, err)

	l, err := s.Ledger()
	assert.NoError(t, err)
	check.Equal(t, 3, l.Len())

	rejected := s.InvalidBids()
	check.Equal(t, 2, len(rejected))
	check.Equal(t, 1, rejected[0].Index)
	check.Equal(t, 2, rejected[1].Index)
}

func TestScenario_Ledger(t *testing.T) {
	s, err := Load("testdata/two_bidders.yaml")
	assert.NoError(t, err)

	l, err := s.Ledger()
	assert.NoError(t, err)

	bids := l.Bids()
	check.Equal(t, 2, len(bids))
	check.Equal(t, "A", bids[0].Bidder)
	check.Equal(t, int64(15), l.TotalQuantity())
}

func TestScenario_Requests(t *testing.T) {
	s, err := Load("testdata/two_bidders.yaml")
	assert.NoError(t, err)

	requests, err := s.Requests()
	assert.NoError(t, err)
	check.Equal(t, 3, len(requests))

	for i, r := range requests {
		check.Equal(t, "auction_request", r.Type)
		check.Equal(t, s.AuctionID, r.AuctionID)
		check.Equal(t, s.Rules()[i], r.Rule)
		check.Equal(t, int64(12), r.InventoryQuantity)
		check.Equal(t, 2, len(r.Bids))
	}
}

func TestScenario_RulesIsACopy(t *testing.T) {
	s := &Scenario{}
	rules := s.Rules()
	rules[0] = "changed"

	check.Equal(t, core.RuleFirstPriceSealed, core.AllRules[0])
}
