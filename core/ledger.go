package core

import (
	"slices"
	"sync"

	"github.com/shopspring/decimal"
)

// Ledger collects the bids of one auction session in arrival order.
// It only ever grows; every view it returns is a fresh copy.
// A Ledger is safe for concurrent use.
type Ledger struct {
	mu   sync.RWMutex
	bids []Bid
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{bids: make([]Bid, 0)}
}

// AddBid appends a bid without validating it. Use Submit to reject malformed bids.
func (l *Ledger) AddBid(bidder string, quantity int64, price decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.bids = append(l.bids, Bid{Bidder: bidder, Quantity: quantity, Price: price})
}

// Submit validates bid and appends it to the ledger.
// Returns an *InvalidBidError if the bid is malformed; the ledger is unchanged in that case.
func (l *Ledger) Submit(bid Bid) error {
	if err := ValidateBid(bid); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.bids = append(l.bids, bid)
	return nil
}

// Len returns the number of bids recorded.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.bids)
}

// TotalQuantity returns the quantity demanded across all bids.
func (l *Ledger) TotalQuantity() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var total int64
	for _, b := range l.bids {
		total += b.Quantity
	}
	return total
}

// Bids returns the bids in insertion order.
func (l *Ledger) Bids() []Bid {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return slices.Clone(l.bids)
}

// BidsSortedByPrice returns the bids ordered by price, highest first, ties in insertion order.
// This is the table SealedBidAuction expects.
func (l *Ledger) BidsSortedByPrice() []Bid {
	return SortBidsByPrice(l.Bids())
}

// PriceLevels returns the total quantity bid at each distinct price, highest price first.
func (l *Ledger) PriceLevels() []PriceLevel {
	bids := l.Bids()

	// Numerically equal decimals may carry different exponents ("40" vs "40.00"),
	// so group on the canonical string form rather than on the Decimal value.
	levelIndex := make(map[string]int, len(bids))
	levels := make([]PriceLevel, 0, len(bids))
	for _, b := range bids {
		key := canonicalPriceKey(b.Price)
		if i, ok := levelIndex[key]; ok {
			levels[i].Quantity += b.Quantity
			continue
		}
		levelIndex[key] = len(levels)
		levels = append(levels, PriceLevel{Price: b.Price, Quantity: b.Quantity})
	}

	slices.SortFunc(levels, func(a, b PriceLevel) int {
		return b.Price.Cmp(a.Price)
	})

	return levels
}

// canonicalPriceKey normalizes a Decimal so numerically equal values share a key.
// String() drops redundant trailing zeros.
func canonicalPriceKey(p decimal.Decimal) string {
	return p.String()
}
