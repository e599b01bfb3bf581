package main

import (
	"bytes"
	"crypto/x509"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/cloudx-io/sealedauction/auctionapi"
	"github.com/cloudx-io/sealedauction/core"
	"github.com/cloudx-io/sealedauction/receipt"
)

// COSE_Sign1 tag 18 as the first CBOR byte
const coseSign1TagByte = 0xd2

func main() {
	var (
		receiptInput   = flag.String("receipt", "", "Receipt: file path or inline base64 / gzip-base64url string")
		publicKeyInput = flag.String("public-key", "", "PEM public key of the issuer (file path)")
		bidInput       = flag.String("bid", "", `Optional bid to look up, JSON {"User":..,"Quantity":..,"Price":".."} (file path or inline)`)
		rootsInput     = flag.String("attestation-roots", "", `Check the attestation certificate chain: "nitro" or a PEM root bundle file`)
		outputFormat   = flag.String("format", "text", "Output format: text or json")
		help           = flag.Bool("help", false, "Show usage information")
	)

	flag.Parse()

	if *help {
		showUsage()
		os.Exit(0)
	}

	if *receiptInput == "" || *publicKeyInput == "" {
		showUsage()
		fmt.Fprintf(os.Stderr, "\nError: --receipt and --public-key are required\n")
		os.Exit(1)
	}

	coseBytes, err := readReceipt(*receiptInput)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading receipt: %v\n", err)
		os.Exit(2)
	}

	publicKeyPEM, err := os.ReadFile(*publicKeyInput)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading public key: %v\n", err)
		os.Exit(2)
	}
	publicKey, err := receipt.ParsePublicKeyPEM(publicKeyPEM)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing public key: %v\n", err)
		os.Exit(2)
	}

	var bid *core.Bid
	if *bidInput != "" {
		bid, err = readBid(*bidInput)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading bid: %v\n", err)
			os.Exit(2)
		}
	}

	var opts []receipt.VerifyOption
	if *rootsInput != "" {
		roots, err := readRoots(*rootsInput)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading attestation roots: %v\n", err)
			os.Exit(2)
		}
		opts = append(opts, receipt.WithAttestationRoots(roots))
	}

	result, outcome, err := receipt.VerifyReceipt(coseBytes, publicKey, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Verification error: %v\n", err)
		os.Exit(2)
	}

	bidIncluded := bid != nil && outcome != nil && outcome.ContainsBid(*bid)

	if *outputFormat == "json" {
		outputJSON(result, outcome, bid, bidIncluded)
	} else {
		outputText(result, outcome, bid, bidIncluded)
	}

	if !result.IsValid() || (bid != nil && !bidIncluded) {
		os.Exit(1)
	}
	os.Exit(0)
}

func showUsage() {
	fmt.Println("Auction Receipt Verifier")
	fmt.Println()
	fmt.Println("Verifies a signed auction receipt and prints the outcome it commits to.")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  receipt-verifier --receipt <file|string> --public-key <file> [options]")
	fmt.Println()
	fmt.Println("Required Flags:")
	fmt.Println("  --receipt <file|string>           Raw COSE file, or base64 / gzip-base64url receipt")
	fmt.Println("  --public-key <file>               Issuer's PEM public key")
	fmt.Println()
	fmt.Println("Optional Flags:")
	fmt.Println("  --bid <json>                      Check that this bid took part in the auction")
	fmt.Println("  --attestation-roots <nitro|file>  Verify the attestation certificate chain")
	fmt.Println("  --format <text|json>              Output format (default: text)")
	fmt.Println("  --help                            Show this help message")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  receipt-verifier --receipt receipt.dutch.cose --public-key receipt.pub.pem")
	fmt.Println("  receipt-verifier --receipt receipt.dutch.cose --public-key receipt.pub.pem \\")
	fmt.Println("    --bid '{\"User\":\"A\",\"Quantity\":10,\"Price\":\"50\"}'")
	fmt.Println()
	fmt.Println("Exit Codes:")
	fmt.Println("  0 - Verification passed")
	fmt.Println("  1 - Verification failed")
	fmt.Println("  2 - Invalid input or runtime error")
}

func readInput(input string) []byte {
	// Try reading as file first
	if data, err := os.ReadFile(input); err == nil {
		return data
	}
	return []byte(input)
}

// readReceipt accepts the raw COSE bytes or any of the transport encodings.
func readReceipt(input string) (auctionapi.ReceiptCOSE, error) {
	data := readInput(input)
	if len(data) > 0 && data[0] == coseSign1TagByte {
		return auctionapi.ReceiptCOSE(data), nil
	}

	text := string(bytes.TrimSpace(data))
	if raw, err := auctionapi.ReceiptCOSEGzip(text).Decompress(); err == nil {
		return raw, nil
	}
	if raw, err := auctionapi.ReceiptCOSEBase64(text).Decode(); err == nil {
		return raw, nil
	}
	return auctionapi.ReceiptCOSEURLBase64(text).Decode()
}

// readRoots returns nil for "nitro", which VerifyReceipt resolves to the AWS root.
func readRoots(input string) (*x509.CertPool, error) {
	if input == "nitro" {
		return nil, nil
	}
	data, err := os.ReadFile(input)
	if err != nil {
		return nil, err
	}
	roots := x509.NewCertPool()
	if !roots.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("no certificates found in %s", input)
	}
	return roots, nil
}

func readBid(input string) (*core.Bid, error) {
	var bid core.Bid
	if err := json.Unmarshal(readInput(input), &bid); err != nil {
		return nil, fmt.Errorf("parse bid: %w", err)
	}
	return &bid, nil
}

func outputText(result *receipt.VerificationResult, outcome *receipt.Outcome, bid *core.Bid, bidIncluded bool) {
	fmt.Println("Auction Receipt Verifier")
	fmt.Println("========================")
	fmt.Println()

	if outcome != nil {
		fmt.Println("Outcome:")
		fmt.Printf("  Receipt ID:     %s\n", outcome.ReceiptID)
		fmt.Printf("  Auction ID:     %s\n", outcome.AuctionID)
		fmt.Printf("  Rule:           %s\n", outcome.Rule)
		fmt.Printf("  Inventory:      %d\n", outcome.InventoryQuantity)
		fmt.Printf("  Bids:           %d\n", len(outcome.BidHashes))
		fmt.Printf("  Issued At:      %s\n", time.Unix(outcome.IssuedAt, 0).UTC().Format(time.RFC3339))
		fmt.Println("  Winners:")
		for _, a := range outcome.Allocations {
			fmt.Printf("    %d @ %s\n", a.Quantity, a.Price)
		}
		fmt.Printf("  Revenue:        %s\n", outcome.Summary.Revenue)
		fmt.Println()
	}

	fmt.Println("Summary:")
	fmt.Printf("  Signature Valid:         %v\n", result.SignatureValid)
	fmt.Printf("  Allocation Hash Valid:   %v\n", result.AllocationHashValid)
	fmt.Printf("  Summary Valid:           %v\n", result.SummaryValid)
	fmt.Printf("  Attestation Present:     %v\n", result.AttestationPresent)
	if result.AttestationPresent {
		fmt.Printf("  Attestation Bound:       %v\n", result.AttestationBound)
	}
	if result.ChainChecked {
		fmt.Printf("  Attestation Chain Valid: %v\n", result.ChainValid)
	}
	if bid != nil {
		fmt.Printf("  Bid Included:            %v (%s, %d @ %s)\n", bidIncluded, bid.Bidder, bid.Quantity, bid.Price)
	}

	fmt.Println()
	fmt.Println("Details:")
	for _, detail := range result.ValidationDetails {
		fmt.Printf("  - %s\n", detail)
	}

	fmt.Println()
	fmt.Println("========================")
	if result.IsValid() && (bid == nil || bidIncluded) {
		fmt.Println("VERIFICATION: ✓ PASSED")
	} else {
		fmt.Println("VERIFICATION: ✗ FAILED")
	}
}

func outputJSON(result *receipt.VerificationResult, outcome *receipt.Outcome, bid *core.Bid, bidIncluded bool) {
	output := map[string]any{
		"valid":                 result.IsValid(),
		"signature_valid":       result.SignatureValid,
		"allocation_hash_valid": result.AllocationHashValid,
		"summary_valid":         result.SummaryValid,
		"attestation_present":   result.AttestationPresent,
		"attestation_bound":     result.AttestationBound,
		"chain_checked":         result.ChainChecked,
		"chain_valid":           result.ChainValid,
		"details":               result.ValidationDetails,
	}
	if bid != nil {
		output["bid_included"] = bidIncluded
	}
	if outcome != nil {
		output["outcome"] = map[string]any{
			"receipt_id":         outcome.ReceiptID,
			"auction_id":         outcome.AuctionID,
			"rule":               outcome.Rule,
			"inventory_quantity": outcome.InventoryQuantity,
			"bid_count":          len(outcome.BidHashes),
			"issued_at":          outcome.IssuedAt,
			"winners":            outcome.Allocations,
			"revenue":            outcome.Summary.Revenue,
		}
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		os.Exit(2)
	}
	fmt.Println(string(data))
}
