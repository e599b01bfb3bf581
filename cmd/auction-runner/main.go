package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/cloudx-io/sealedauction/auctionapi"
	"github.com/cloudx-io/sealedauction/config"
	"github.com/cloudx-io/sealedauction/core"
	"github.com/cloudx-io/sealedauction/receipt"
	"github.com/cloudx-io/sealedauction/runner"
	"github.com/cloudx-io/sealedauction/scenario"
)

func main() {
	var (
		scenarioPath  = flag.String("scenario", "", "Scenario file (YAML or JSON)")
		ruleName      = flag.String("rule", "", "Run only this rule (default: the scenario's rules)")
		outputFormat  = flag.String("format", "text", "Output format: text or json")
		receiptPath   = flag.String("receipt", "", "Write signed receipts to this path")
		keyPath       = flag.String("key", "", "PEM private key used to sign receipts")
		publicKeyPath = flag.String("public-key-out", "", "Write the signing public key to this path")
		attest        = flag.Bool("attest", false, "Attest receipts with the Nitro Security Module")
		envFile       = flag.String("env-file", "", "Load environment from this file")
		help          = flag.Bool("help", false, "Show usage information")
	)

	flag.Parse()

	if *help {
		showUsage()
		os.Exit(0)
	}

	if *scenarioPath == "" {
		showUsage()
		fmt.Fprintf(os.Stderr, "\nError: --scenario is required\n")
		os.Exit(1)
	}

	if *outputFormat != "text" && *outputFormat != "json" {
		fmt.Fprintf(os.Stderr, "Error: --format must be text or json\n")
		os.Exit(1)
	}

	cfg, err := loadConfig(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(2)
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(2)
	}

	code := run(logger, cfg, options{
		scenarioPath:  *scenarioPath,
		rule:          core.Rule(*ruleName),
		format:        *outputFormat,
		receiptPath:   *receiptPath,
		keyPath:       *keyPath,
		publicKeyPath: *publicKeyPath,
		attest:        *attest,
	})
	_ = logger.Sync()
	os.Exit(code)
}

type options struct {
	scenarioPath  string
	rule          core.Rule
	format        string
	receiptPath   string
	keyPath       string
	publicKeyPath string
	attest        bool
}

func loadConfig(envFile string) (*config.Config, error) {
	if envFile != "" {
		return config.LoadFile(envFile)
	}
	return config.Load()
}

// run returns the process exit code: 0 all rules succeeded, 1 a rule failed, 2 bad input.
func run(logger *zap.Logger, cfg *config.Config, opts options) int {
	sc, err := scenario.Load(opts.scenarioPath)
	if err != nil {
		logger.Error("Failed to load scenario", zap.Error(err))
		return 2
	}

	for _, rejected := range sc.InvalidBids() {
		logger.Warn("Scenario contains an invalid bid",
			zap.Int("index", rejected.Index),
			zap.String("user", rejected.Bid.Bidder),
			zap.String("reason", rejected.Reason))
	}

	rule := opts.rule
	if rule == "" {
		rule = cfg.DefaultRule
	}
	if rule != "" {
		if !slices.Contains(core.AllRules, rule) {
			logger.Error("Unknown rule", zap.String("rule", string(rule)), zap.Strings("known", ruleNames()))
			return 2
		}
		sc.RuleNames = []core.Rule{rule}
	}

	requests, err := sc.Requests()
	if err != nil {
		logger.Error("Failed to build auction requests", zap.Error(err))
		return 2
	}

	issuer, err := newIssuer(logger, cfg, opts)
	if err != nil {
		logger.Error("Failed to initialize receipt issuer", zap.Error(err))
		return 2
	}

	responses := runner.NewProcessor(logger, issuer).ProcessAll(requests)

	if opts.receiptPath != "" {
		if err := writeReceipts(opts.receiptPath, responses); err != nil {
			logger.Error("Failed to write receipts", zap.Error(err))
			return 2
		}
	}

	ledger, err := sc.Ledger()
	if err != nil {
		logger.Error("Failed to build ledger", zap.Error(err))
		return 2
	}

	if opts.format == "json" {
		if err := outputJSON(sc, ledger, responses); err != nil {
			logger.Error("Failed to encode output", zap.Error(err))
			return 2
		}
	} else {
		outputText(sc, ledger, responses)
	}

	for _, resp := range responses {
		if !resp.Success {
			return 1
		}
	}
	return 0
}

func newIssuer(logger *zap.Logger, cfg *config.Config, opts options) (*receipt.Issuer, error) {
	keyPath := opts.keyPath
	if keyPath == "" {
		keyPath = cfg.SigningKey
	}
	if opts.receiptPath == "" && keyPath == "" && !opts.attest && !cfg.Attest {
		return nil, nil
	}

	var (
		keys *receipt.KeyManager
		err  error
	)
	if keyPath != "" {
		keys, err = receipt.LoadKeyManager(keyPath)
	} else {
		keys, err = receipt.NewKeyManager()
		if opts.publicKeyPath == "" {
			logger.Warn("Generated ephemeral receipt signing key; use --public-key-out to keep its public key")
		}
	}
	if err != nil {
		return nil, err
	}

	if opts.publicKeyPath != "" {
		publicKeyPEM, err := keys.PublicKeyPEM()
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(opts.publicKeyPath, []byte(publicKeyPEM), 0o644); err != nil {
			return nil, fmt.Errorf("write public key: %w", err)
		}
		logger.Info("Wrote receipt public key", zap.String("path", opts.publicKeyPath))
	}

	issuerOpts := []receipt.IssuerOption{receipt.WithLogger(logger)}
	if opts.attest || cfg.Attest {
		attester, err := receipt.NewNSMAttester()
		if err != nil {
			return nil, err
		}
		issuerOpts = append(issuerOpts, receipt.WithAttester(attester))
	}

	return receipt.NewIssuer(keys, issuerOpts...)
}

func ruleNames() []string {
	names := make([]string, 0, len(core.AllRules))
	for _, r := range core.AllRules {
		names = append(names, string(r))
	}
	return names
}

// receiptFileName returns path itself for a single receipt, and path with the
// rule inserted before the extension when there are several.
func receiptFileName(path string, rule core.Rule, count int) string {
	if count == 1 {
		return path
	}
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "." + string(rule) + ext
}

func writeReceipts(path string, responses []auctionapi.AuctionResponse) error {
	var err error
	for _, resp := range responses {
		if resp.Receipt == "" {
			continue
		}
		raw, decodeErr := resp.Receipt.Decode()
		if decodeErr != nil {
			err = multierr.Append(err, decodeErr)
			continue
		}
		name := receiptFileName(path, resp.Rule, len(responses))
		if writeErr := os.WriteFile(name, raw, 0o644); writeErr != nil {
			err = multierr.Append(err, fmt.Errorf("write %s: %w", name, writeErr))
		}
	}
	return err
}

func showUsage() {
	fmt.Println("Sealed-Bid Auction Runner")
	fmt.Println()
	fmt.Println("Runs sealed-bid and Dutch allocation rules over a scenario file.")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  auction-runner --scenario <file> [options]")
	fmt.Println()
	fmt.Println("Required Flags:")
	fmt.Println("  --scenario <file>                 Scenario file (YAML or JSON)")
	fmt.Println()
	fmt.Println("Optional Flags:")
	fmt.Println("  --rule <name>                     first_price_sealed, second_price_sealed, dutch,")
	fmt.Println("                                    min_price_dutch or hybrid_dutch")
	fmt.Println("  --format <text|json>              Output format (default: text)")
	fmt.Println("  --receipt <file>                  Write COSE_Sign1 receipts (one per rule)")
	fmt.Println("  --key <file>                      PEM P-384 private key for receipts (default: ephemeral)")
	fmt.Println("  --public-key-out <file>           Write the receipt public key as PEM")
	fmt.Println("  --attest                          Attest receipts with the Nitro Security Module")
	fmt.Println("  --env-file <file>                 Load AUCTION_* variables from this file")
	fmt.Println("  --help                            Show this help message")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  AUCTION_LOG_LEVEL                 debug, info, warn or error (default: info)")
	fmt.Println("  AUCTION_LOG_FORMAT                console or json (default: console)")
	fmt.Println("  AUCTION_SIGNING_KEY               Same as --key")
	fmt.Println("  AUCTION_DEFAULT_RULE              Used when --rule is not given")
	fmt.Println("  AUCTION_ATTEST                    Same as --attest")
	fmt.Println()
	fmt.Println("Scenario File:")
	fmt.Println("  auction_id: treasury-2026-10")
	fmt.Println("  inventory_quantity: 12")
	fmt.Println("  strict: true")
	fmt.Println("  rules: [dutch, hybrid_dutch]")
	fmt.Println("  bids:")
	fmt.Println("    - {user: A, quantity: 10, price: \"50\"}")
	fmt.Println("    - {user: B, quantity: 5, price: \"40\"}")
	fmt.Println()
	fmt.Println("Exit Codes:")
	fmt.Println("  0 - Every rule produced an allocation")
	fmt.Println("  1 - At least one rule failed")
	fmt.Println("  2 - Invalid input or runtime error")
}

func outputText(sc *scenario.Scenario, ledger *core.Ledger, responses []auctionapi.AuctionResponse) {
	fmt.Println("Sealed-Bid Auction Runner")
	fmt.Println("=========================")
	fmt.Printf("Auction:   %s\n", sc.AuctionID)
	fmt.Printf("Inventory: %d\n", sc.InventoryQuantity)
	fmt.Printf("Demand:    %d from %d bids\n", ledger.TotalQuantity(), ledger.Len())
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	fmt.Println("Bids (by price):")
	fmt.Fprintln(w, "  #\t"+strings.Join(auctionapi.BidTableColumns, "\t"))
	for i, b := range ledger.BidsSortedByPrice() {
		fmt.Fprintf(w, "  %d\t%s\t%d\t%s\n", i, b.Bidder, b.Quantity, b.Price)
	}
	w.Flush()
	fmt.Println()

	fmt.Println("Price Levels:")
	fmt.Fprintln(w, "  "+strings.Join(auctionapi.PriceLevelColumns, "\t"))
	for _, level := range ledger.PriceLevels() {
		fmt.Fprintf(w, "  %s\t%d\n", level.Price, level.Quantity)
	}
	w.Flush()

	for _, resp := range responses {
		fmt.Println()
		fmt.Printf("Rule: %s\n", resp.Rule)
		fmt.Println("-------------------")
		if !resp.Success {
			fmt.Printf("  FAILED: %s\n", resp.Message)
			continue
		}

		fmt.Fprintln(w, "  "+strings.Join(auctionapi.AllocationColumns, "\t"))
		for _, a := range resp.Winners {
			fmt.Fprintf(w, "  %d\t%s\n", a.Quantity, a.Price)
		}
		w.Flush()

		fmt.Printf("  Allocated:        %d\n", resp.Summary.TotalQuantity)
		fmt.Printf("  Revenue:          %s\n", resp.Summary.Revenue)
		fmt.Printf("  Weighted Average: %s\n", resp.Summary.WeightedAveragePrice.StringFixed(4))
		if resp.Receipt != "" {
			fmt.Printf("  Receipt:          %d bytes (base64)\n", len(resp.Receipt))
		}
	}
}

func outputJSON(sc *scenario.Scenario, ledger *core.Ledger, responses []auctionapi.AuctionResponse) error {
	output := map[string]any{
		"auction_id":         sc.AuctionID,
		"inventory_quantity": sc.InventoryQuantity,
		"bids":               auctionapi.NewBidTable(ledger.Bids()),
		"price_levels":       auctionapi.NewPriceLevelTable(ledger.PriceLevels()),
		"results":            responses,
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
