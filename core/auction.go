package core

import (
	"fmt"
	"slices"
	"sync"
)

// SealedBidAuction allocates a fixed inventory across a table of bids sorted
// by descending price. The table and inventory are fixed at construction.
//
// Every rule reads from the top of the table:
//   - FirstPriceSealed: the highest bidder pays its own price
//   - SecondPriceSealed: the highest bidder pays the second-highest price
//   - DutchAuction: walk down the table, each bid pays its own price
//   - MinPriceDutchAuction: Dutch allocation, everyone pays the lowest winning price
//   - HybridDutchAuction: Dutch allocation, prices above the weighted average are capped to it
//
// Rules may run concurrently; SortBidsByHighestPrice is serialized against them.
type SealedBidAuction struct {
	mu                sync.RWMutex
	bids              []Bid
	inventoryQuantity int64
}

// NewSealedBidAuction creates an auction over a copy of bids.
//
// If priceSorted is false the bids are sorted (stable, highest price first).
// If priceSorted is true the order is trusted but checked, and ErrUnsortedBids
// is returned when it does not hold.
func NewSealedBidAuction(bids []Bid, inventoryQuantity int64, priceSorted bool) (*SealedBidAuction, error) {
	if inventoryQuantity < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidInventory, inventoryQuantity)
	}

	a := &SealedBidAuction{
		bids:              slices.Clone(bids),
		inventoryQuantity: inventoryQuantity,
	}

	if !priceSorted {
		a.SortBidsByHighestPrice()
	} else if !IsSortedByPrice(a.bids) {
		return nil, ErrUnsortedBids
	}

	return a, nil
}

// SortBidsByHighestPrice sorts the bid table by descending price, keeping
// insertion order among equal prices. Calling it again has no effect.
func (a *SealedBidAuction) SortBidsByHighestPrice() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.bids = SortBidsByPrice(a.bids)
}

// Bids returns a copy of the bid table in its current order.
func (a *SealedBidAuction) Bids() []Bid {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return slices.Clone(a.bids)
}

// InventoryQuantity returns the quantity being sold.
func (a *SealedBidAuction) InventoryQuantity() int64 {
	return a.inventoryQuantity
}

// Run executes the named rule.
func (a *SealedBidAuction) Run(rule Rule) ([]Allocation, error) {
	switch rule {
	case RuleFirstPriceSealed:
		return a.FirstPriceSealed()
	case RuleSecondPriceSealed:
		return a.SecondPriceSealed()
	case RuleDutch:
		return a.DutchAuction()
	case RuleMinPriceDutch:
		return a.MinPriceDutchAuction()
	case RuleHybridDutch:
		return a.HybridDutchAuction()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRule, rule)
	}
}

// FirstPriceSealed awards the highest bidder min(its quantity, inventory) at its own price.
// Lower bids are never considered, even if inventory is left over.
func (a *SealedBidAuction) FirstPriceSealed() ([]Allocation, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.topBidAllocation(0)
}

// SecondPriceSealed awards the highest bidder min(its quantity, inventory) at the
// second-highest price. With a single bid it behaves like FirstPriceSealed.
func (a *SealedBidAuction) SecondPriceSealed() ([]Allocation, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if len(a.bids) < 2 {
		return a.topBidAllocation(0)
	}
	return a.topBidAllocation(1)
}

// topBidAllocation awards the top bid's quantity, capped by inventory, at the
// price of the bid at priceIndex.
func (a *SealedBidAuction) topBidAllocation(priceIndex int) ([]Allocation, error) {
	if len(a.bids) == 0 {
		return nil, ErrEmptyAuction
	}

	return []Allocation{{
		Quantity: min(a.bids[0].Quantity, a.inventoryQuantity),
		Price:    a.bids[priceIndex].Price,
	}}, nil
}

// DutchAuction walks the table from the highest price down, giving each bid
// min(its quantity, remaining inventory) at its own price, until inventory or bids run out.
// Each consumed bid produces one entry, including a final partially filled one.
func (a *SealedBidAuction) DutchAuction() ([]Allocation, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.dutchAllocate()
}

func (a *SealedBidAuction) dutchAllocate() ([]Allocation, error) {
	if len(a.bids) == 0 {
		return nil, ErrEmptyAuction
	}

	remaining := a.inventoryQuantity
	winners := make([]Allocation, 0)
	for i := 0; remaining > 0 && i < len(a.bids); i++ {
		b := a.bids[i]
		quantity := min(b.Quantity, remaining)
		remaining -= quantity

		winners = append(winners, Allocation{Quantity: quantity, Price: b.Price})
	}

	return winners, nil
}

// MinPriceDutchAuction allocates like DutchAuction, then charges every winner
// the price of the last (lowest) winning entry.
func (a *SealedBidAuction) MinPriceDutchAuction() ([]Allocation, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	winners, err := a.dutchAllocate()
	if err != nil {
		return nil, err
	}
	if len(winners) == 0 {
		return winners, nil
	}

	clearingPrice := winners[len(winners)-1].Price
	for i := range winners {
		winners[i].Price = clearingPrice
	}

	return winners, nil
}

// HybridDutchAuction allocates like DutchAuction, then caps every price above the
// quantity-weighted average price to that average. Prices at or below it are kept.
func (a *SealedBidAuction) HybridDutchAuction() ([]Allocation, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	winners, err := a.dutchAllocate()
	if err != nil {
		return nil, err
	}
	if TotalQuantity(winners) == 0 {
		return winners, nil
	}

	average, err := WeightedAveragePrice(winners)
	if err != nil {
		return nil, err
	}

	for i := range winners {
		if winners[i].Price.GreaterThan(average) {
			winners[i].Price = average
		}
	}

	return winners, nil
}
