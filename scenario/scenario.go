// Package scenario loads auction scenario files: a bid table, an inventory
// quantity and the allocation rules to run over them.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/cloudx-io/sealedauction/auctionapi"
	"github.com/cloudx-io/sealedauction/core"
)

var ErrEmptyScenario = errors.New("scenario file is empty")

// BidEntry is one row of the bids table in a scenario file.
type BidEntry struct {
	User     string          `yaml:"user"`
	Quantity int64           `yaml:"quantity"`
	Price    decimal.Decimal `yaml:"price"`
}

// Scenario is a parsed scenario file.
type Scenario struct {
	AuctionID         string      `yaml:"auction_id"`
	InventoryQuantity int64       `yaml:"inventory_quantity"`
	PriceSorted       bool        `yaml:"price_sorted"`
	Strict            bool        `yaml:"strict"`
	RuleNames         []core.Rule `yaml:"rules"`
	Bids              []BidEntry  `yaml:"bids"`
}

// Load reads and parses a scenario file. JSON files are accepted as YAML.
func Load(path string) (*Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	s, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates a scenario. Unknown keys are rejected.
// A missing auction_id is replaced by a random UUID.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyScenario
		}
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	s.AuctionID = strings.TrimSpace(s.AuctionID)
	if s.AuctionID == "" {
		s.AuctionID = uuid.NewString()
	}

	if s.InventoryQuantity < 0 {
		return nil, fmt.Errorf("%w: got %d", core.ErrInvalidInventory, s.InventoryQuantity)
	}

	for _, r := range s.RuleNames {
		if !slices.Contains(core.AllRules, r) {
			return nil, fmt.Errorf("%w: %q", core.ErrUnknownRule, r)
		}
	}

	if s.Strict {
		for i, b := range s.bids() {
			if err := core.ValidateBid(b); err != nil {
				return nil, fmt.Errorf("bid %d: %w", i, err)
			}
		}
	}

	return &s, nil
}

func (s *Scenario) bids() []core.Bid {
	bids := make([]core.Bid, 0, len(s.Bids))
	for _, e := range s.Bids {
		bids = append(bids, core.Bid{Bidder: e.User, Quantity: e.Quantity, Price: e.Price})
	}
	return bids
}

// Ledger returns a new ledger holding the scenario's bids in file order.
// Strict scenarios go through validation, others are recorded as written.
func (s *Scenario) Ledger() (*core.Ledger, error) {
	l := core.NewLedger()
	for i, b := range s.bids() {
		if !s.Strict {
			l.AddBid(b.Bidder, b.Quantity, b.Price)
			continue
		}
		if err := l.Submit(b); err != nil {
			return nil, fmt.Errorf("bid %d: %w", i, err)
		}
	}
	return l, nil
}

// InvalidBids lists the bids that would fail validation, by file index.
func (s *Scenario) InvalidBids() []core.RejectedBid {
	_, rejected := core.ValidateBids(s.bids())
	return rejected
}

// Rules returns the rules to run. An empty list means every rule.
func (s *Scenario) Rules() []core.Rule {
	if len(s.RuleNames) == 0 {
		return slices.Clone(core.AllRules)
	}
	return slices.Clone(s.RuleNames)
}

// Requests builds one auction request per rule, with bids in file order.
func (s *Scenario) Requests() ([]auctionapi.AuctionRequest, error) {
	l, err := s.Ledger()
	if err != nil {
		return nil, err
	}

	rules := s.Rules()
	requests := make([]auctionapi.AuctionRequest, 0, len(rules))
	for _, r := range rules {
		requests = append(requests, auctionapi.AuctionRequest{
			Type:              "auction_request",
			AuctionID:         s.AuctionID,
			Rule:              r,
			InventoryQuantity: s.InventoryQuantity,
			PriceSorted:       s.PriceSorted,
			Bids:              l.Bids(),
		})
	}
	return requests, nil
}
