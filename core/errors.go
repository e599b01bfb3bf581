package core

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyAuction is returned by every allocation rule when there are no bids.
	ErrEmptyAuction = errors.New("auction has no bids")
	// ErrInvalidInventory is returned for a negative inventory quantity.
	ErrInvalidInventory = errors.New("inventory quantity must not be negative")
	// ErrUnsortedBids is returned when bids declared as price sorted are not.
	ErrUnsortedBids = errors.New("bids are not sorted by descending price")
	// ErrUnknownRule is returned by Run for a rule name it does not know.
	ErrUnknownRule = errors.New("unknown allocation rule")
	// ErrEmptyAllocation is returned when an average is requested over zero quantity.
	ErrEmptyAllocation = errors.New("allocation has no quantity")
)

// InvalidBidError reports a malformed bid.
type InvalidBidError struct {
	Bid    Bid
	Reason string
}

func (e *InvalidBidError) Error() string {
	return fmt.Sprintf("invalid bid from %q (quantity=%d, price=%s): %s",
		e.Bid.Bidder, e.Bid.Quantity, e.Bid.Price.String(), e.Reason)
}
