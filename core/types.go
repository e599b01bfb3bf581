package core

import (
	"github.com/shopspring/decimal"
)

// Bid represents a single sealed bid: a bidder asking for a quantity at a price.
// Bids are compared by position, so the same bidder may appear more than once.
type Bid struct {
	Bidder   string          `json:"User"`
	Quantity int64           `json:"Quantity"`
	Price    decimal.Decimal `json:"Price"`
}

// PriceLevel is the total quantity demanded at a single price.
type PriceLevel struct {
	Price    decimal.Decimal `json:"Price"`
	Quantity int64           `json:"Quantity"`
}

// Allocation is one winning entry of an auction: quantity awarded at a price.
type Allocation struct {
	Quantity int64           `json:"Quantity"`
	Price    decimal.Decimal `json:"Price"`
}

// AllocationSummary aggregates a winners list.
type AllocationSummary struct {
	Entries              int             `json:"entries"`
	TotalQuantity        int64           `json:"total_quantity"`
	Revenue              decimal.Decimal `json:"revenue"`
	WeightedAveragePrice decimal.Decimal `json:"weighted_average_price"`
}

// Rule names an allocation rule of SealedBidAuction.
type Rule string

const (
	RuleFirstPriceSealed  Rule = "first_price_sealed"
	RuleSecondPriceSealed Rule = "second_price_sealed"
	RuleDutch             Rule = "dutch"
	RuleMinPriceDutch     Rule = "min_price_dutch"
	RuleHybridDutch       Rule = "hybrid_dutch"
)

// AllRules lists every rule in the order they are usually reported.
var AllRules = []Rule{
	RuleFirstPriceSealed,
	RuleSecondPriceSealed,
	RuleDutch,
	RuleMinPriceDutch,
	RuleHybridDutch,
}

// RejectedBid is a bid excluded by validation, identified by its insertion index.
type RejectedBid struct {
	Index  int    `json:"index"`
	Bid    Bid    `json:"bid"`
	Reason string `json:"reason"`
}
