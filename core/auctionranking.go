package core

import (
	"slices"
)

// SortBidsByPrice returns a copy of bids ordered by price, highest first.
// The sort is stable: bids at the same price keep their insertion order.
func SortBidsByPrice(bids []Bid) []Bid {
	sorted := slices.Clone(bids)
	if sorted == nil {
		return make([]Bid, 0)
	}

	slices.SortStableFunc(sorted, compareByPriceDesc)

	return sorted
}

// IsSortedByPrice reports whether bids are in non-increasing price order.
func IsSortedByPrice(bids []Bid) bool {
	return slices.IsSortedFunc(bids, compareByPriceDesc)
}

func compareByPriceDesc(a, b Bid) int {
	return b.Price.Cmp(a.Price)
}
