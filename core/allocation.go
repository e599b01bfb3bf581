package core

import (
	"github.com/shopspring/decimal"
)

// TotalQuantity returns the quantity awarded across all entries.
func TotalQuantity(allocations []Allocation) int64 {
	var total int64
	for _, a := range allocations {
		total += a.Quantity
	}
	return total
}

// Revenue returns Σ(quantity × price) across all entries.
func Revenue(allocations []Allocation) decimal.Decimal {
	revenue := decimal.Zero
	for _, a := range allocations {
		revenue = revenue.Add(a.Price.Mul(decimal.NewFromInt(a.Quantity)))
	}
	return revenue
}

// WeightedAveragePrice returns Σ(quantity × price) / Σ(quantity).
// Returns ErrEmptyAllocation when no quantity was awarded.
func WeightedAveragePrice(allocations []Allocation) (decimal.Decimal, error) {
	total := TotalQuantity(allocations)
	if total == 0 {
		return decimal.Zero, ErrEmptyAllocation
	}

	return Revenue(allocations).Div(decimal.NewFromInt(total)), nil
}

// Summarize aggregates a winners list. The average price is zero when nothing was awarded.
func Summarize(allocations []Allocation) AllocationSummary {
	average, err := WeightedAveragePrice(allocations)
	if err != nil {
		average = decimal.Zero
	}

	return AllocationSummary{
		Entries:              len(allocations),
		TotalQuantity:        TotalQuantity(allocations),
		Revenue:              Revenue(allocations),
		WeightedAveragePrice: average,
	}
}
