package core

import (
	"strings"
)

const (
	reasonEmptyBidder     = "empty_bidder"
	reasonInvalidQuantity = "non_positive_quantity"
	reasonNegativePrice   = "negative_price"
)

// ValidateBid checks that a bid names a bidder, asks for a positive quantity
// and carries a non-negative price.
func ValidateBid(bid Bid) error {
	if reason := invalidBidReason(bid); reason != "" {
		return &InvalidBidError{Bid: bid, Reason: reason}
	}
	return nil
}

// ValidateBids splits bids into valid ones and rejected ones.
// Valid bids keep their relative order; rejected bids carry their original index.
func ValidateBids(bids []Bid) (valid []Bid, rejected []RejectedBid) {
	valid = make([]Bid, 0, len(bids))
	rejected = make([]RejectedBid, 0)

	for i, b := range bids {
		if reason := invalidBidReason(b); reason != "" {
			rejected = append(rejected, RejectedBid{Index: i, Bid: b, Reason: reason})
			continue
		}
		valid = append(valid, b)
	}

	return valid, rejected
}

func invalidBidReason(bid Bid) string {
	switch {
	case strings.TrimSpace(bid.Bidder) == "":
		return reasonEmptyBidder
	case bid.Quantity <= 0:
		return reasonInvalidQuantity
	case bid.Price.IsNegative():
		return reasonNegativePrice
	}
	return ""
}
