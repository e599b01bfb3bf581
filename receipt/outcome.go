package receipt

import (
	"fmt"
	"slices"

	"github.com/fxamacker/cbor/v2"
	"github.com/shopspring/decimal"

	"github.com/cloudx-io/sealedauction/core"
)

// AllocationRecord is one winners entry as written into a receipt.
// Prices are canonical decimal strings so the encoding never depends on float formatting.
type AllocationRecord struct {
	Quantity int64  `cbor:"1,keyasint" json:"Quantity"`
	Price    string `cbor:"2,keyasint" json:"Price"`
}

// SummaryRecord is AllocationSummary as written into a receipt.
type SummaryRecord struct {
	Entries              int    `cbor:"1,keyasint"`
	TotalQuantity        int64  `cbor:"2,keyasint"`
	Revenue              string `cbor:"3,keyasint"`
	WeightedAveragePrice string `cbor:"4,keyasint"`
}

// Outcome is the signed payload of a receipt. Bidder identities appear only as salted hashes.
type Outcome struct {
	ReceiptID         string             `cbor:"1,keyasint"`
	AuctionID         string             `cbor:"2,keyasint"`
	Rule              core.Rule          `cbor:"3,keyasint"`
	InventoryQuantity int64              `cbor:"4,keyasint"`
	BidHashes         []string           `cbor:"5,keyasint"`
	BidHashNonce      string             `cbor:"6,keyasint"`
	Allocations       []AllocationRecord `cbor:"7,keyasint"`
	AllocationHash    string             `cbor:"8,keyasint"`
	AllocationNonce   string             `cbor:"9,keyasint"`
	Summary           SummaryRecord      `cbor:"10,keyasint"`
	IssuedAt          int64              `cbor:"11,keyasint"` // Unix seconds
	Attestation       []byte             `cbor:"12,keyasint,omitempty"`
}

var encMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cbor encoding mode: %v", err))
	}
	return em
}

func newAllocationRecords(allocations []core.Allocation) []AllocationRecord {
	records := make([]AllocationRecord, 0, len(allocations))
	for _, a := range allocations {
		records = append(records, AllocationRecord{Quantity: a.Quantity, Price: a.Price.String()})
	}
	return records
}

func newSummaryRecord(s core.AllocationSummary) SummaryRecord {
	return SummaryRecord{
		Entries:              s.Entries,
		TotalQuantity:        s.TotalQuantity,
		Revenue:              s.Revenue.String(),
		WeightedAveragePrice: s.WeightedAveragePrice.String(),
	}
}

// Marshal encodes the outcome with core deterministic CBOR
func (o *Outcome) Marshal() ([]byte, error) {
	data, err := encMode.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("marshal outcome: %w", err)
	}
	return data, nil
}

// UnmarshalOutcome decodes a CBOR outcome payload
func UnmarshalOutcome(data []byte) (*Outcome, error) {
	var o Outcome
	if err := cbor.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("unmarshal outcome: %w", err)
	}
	return &o, nil
}

// Winners converts the allocation records back to core allocations
func (o *Outcome) Winners() ([]core.Allocation, error) {
	winners := make([]core.Allocation, 0, len(o.Allocations))
	for i, r := range o.Allocations {
		price, err := decimal.NewFromString(r.Price)
		if err != nil {
			return nil, fmt.Errorf("allocation %d price %q: %w", i, r.Price, err)
		}
		winners = append(winners, core.Allocation{Quantity: r.Quantity, Price: price})
	}
	return winners, nil
}

// ContainsBid reports whether bid is one of the bids the auction was run over.
func (o *Outcome) ContainsBid(bid core.Bid) bool {
	return slices.Contains(o.BidHashes, core.ComputeBidHash(bid, o.BidHashNonce))
}
