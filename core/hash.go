package core

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// ComputeBidHash computes a commitment to a single bid.
// Receipts carry these hashes instead of bidder names.
//
// Formula: SHA256(bidder + "|" + quantity + "|" + price + "|" + nonce)
//
// The price is written in its canonical decimal form so that "40" and "40.00" hash alike.
func ComputeBidHash(bid Bid, nonce string) string {
	data := fmt.Sprintf("%s|%d|%s|%s", bid.Bidder, bid.Quantity, canonicalPriceKey(bid.Price), nonce)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// ComputeBidHashes hashes every bid with the same nonce, preserving order.
func ComputeBidHashes(bids []Bid, nonce string) []string {
	hashes := make([]string, 0, len(bids))
	for _, b := range bids {
		hashes = append(hashes, ComputeBidHash(b, nonce))
	}
	return hashes
}

// ComputeAllocationHash computes a commitment to a winners list.
//
// Formula: SHA256(nonce + "|" + "q1:p1|q2:p2|...") in allocation order.
func ComputeAllocationHash(allocations []Allocation, nonce string) string {
	var sb strings.Builder
	sb.WriteString(nonce)
	for _, a := range allocations {
		fmt.Fprintf(&sb, "|%d:%s", a.Quantity, canonicalPriceKey(a.Price))
	}
	hash := sha256.Sum256([]byte(sb.String()))
	return fmt.Sprintf("%x", hash)
}
