package auctionapi

import (
	"github.com/cloudx-io/sealedauction/core"
)

// Column names of the tables exchanged with tooling. Consumers rely on this exact order.
var (
	BidTableColumns   = []string{"User", "Quantity", "Price"}
	PriceLevelColumns = []string{"Price", "Quantity"}
	AllocationColumns = []string{"Quantity", "Price"}
)

// AuctionRequest asks for one allocation rule to be run over a set of bids
type AuctionRequest struct {
	Type              string     `json:"type"`
	AuctionID         string     `json:"auction_id"`
	Rule              core.Rule  `json:"rule"`
	InventoryQuantity int64      `json:"inventory_quantity"`
	PriceSorted       bool       `json:"price_sorted"` // Bids are already sorted by descending price
	Bids              []core.Bid `json:"bids"`
}

// AuctionResponse carries the winners of one rule
type AuctionResponse struct {
	Type           string                  `json:"type"`
	Success        bool                    `json:"success"`
	Message        string                  `json:"message"`
	AuctionID      string                  `json:"auction_id"`
	Rule           core.Rule               `json:"rule"`
	Winners        []core.Allocation       `json:"winners,omitempty"`
	Summary        *core.AllocationSummary `json:"summary,omitempty"`
	Receipt        ReceiptCOSEBase64       `json:"receipt,omitempty"` // Signed COSE_Sign1 receipt, when a signer is configured
	ProcessingTime int64                   `json:"processing_time_us"`
}

// BidTable is the ledger view exported for tooling: rows in User, Quantity, Price order.
type BidTable struct {
	Columns []string   `json:"columns"`
	Rows    []core.Bid `json:"rows"`
}

// PriceLevelTable is the aggregated demand view: rows in Price, Quantity order.
type PriceLevelTable struct {
	Columns []string          `json:"columns"`
	Rows    []core.PriceLevel `json:"rows"`
}

// NewBidTable wraps bids with the bid table column names.
func NewBidTable(bids []core.Bid) BidTable {
	return BidTable{Columns: BidTableColumns, Rows: bids}
}

// NewPriceLevelTable wraps price levels with the price level column names.
func NewPriceLevelTable(levels []core.PriceLevel) PriceLevelTable {
	return PriceLevelTable{Columns: PriceLevelColumns, Rows: levels}
}
