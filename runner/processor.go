// Package runner executes auction requests and turns them into responses.
package runner

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cloudx-io/sealedauction/auctionapi"
	"github.com/cloudx-io/sealedauction/core"
	"github.com/cloudx-io/sealedauction/receipt"
)

const responseType = "auction_response"

// Processor runs auction requests. When an issuer is configured every
// successful response carries a signed receipt.
type Processor struct {
	logger *zap.Logger
	issuer *receipt.Issuer // Optional
}

// NewProcessor creates a processor. issuer may be nil.
func NewProcessor(logger *zap.Logger, issuer *receipt.Issuer) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{logger: logger, issuer: issuer}
}

// Process runs one request. Failures are reported in the response, never as a partial result.
func (p *Processor) Process(req auctionapi.AuctionRequest) auctionapi.AuctionResponse {
	startTime := time.Now()
	log := p.logger.With(zap.String("auction_id", req.AuctionID), zap.String("rule", string(req.Rule)))
	log.Info("Processing auction", zap.Int("bids", len(req.Bids)), zap.Int64("inventory", req.InventoryQuantity))

	auction, err := core.NewSealedBidAuction(req.Bids, req.InventoryQuantity, req.PriceSorted)
	if err != nil {
		log.Error("Invalid auction request", zap.Error(err))
		return p.failure(req, fmt.Sprintf("Invalid auction request: %v", err), startTime)
	}

	var (
		winners    []core.Allocation
		receiptB64 auctionapi.ReceiptCOSEBase64
	)
	if p.issuer != nil {
		r, err := p.issuer.Issue(req.AuctionID, req.Rule, auction)
		if err != nil {
			log.Error("Auction processing failed", zap.Error(err))
			return p.failure(req, fmt.Sprintf("Auction processing failed: %v", err), startTime)
		}
		winners = r.Winners
		receiptB64 = r.COSE.EncodeBase64()
	} else {
		winners, err = auction.Run(req.Rule)
		if err != nil {
			log.Error("Auction processing failed", zap.Error(err))
			return p.failure(req, fmt.Sprintf("Auction processing failed: %v", err), startTime)
		}
	}

	summary := core.Summarize(winners)
	processingTime := time.Since(startTime).Microseconds()

	log.Info("Auction complete",
		zap.Int("entries", summary.Entries),
		zap.Int64("allocated", summary.TotalQuantity),
		zap.String("revenue", summary.Revenue.String()),
		zap.Int64("processing_us", processingTime))

	return auctionapi.AuctionResponse{
		Type:      responseType,
		Success:   true,
		Message:   fmt.Sprintf("Allocated %d of %d units to %d entries", summary.TotalQuantity, req.InventoryQuantity, summary.Entries),
		AuctionID: req.AuctionID,
		Rule:      req.Rule,
		Winners:   winners,
		Summary:   &summary,
		Receipt:   receiptB64,

		ProcessingTime: processingTime,
	}
}

// ProcessAll runs requests in order.
func (p *Processor) ProcessAll(reqs []auctionapi.AuctionRequest) []auctionapi.AuctionResponse {
	responses := make([]auctionapi.AuctionResponse, 0, len(reqs))
	for _, req := range reqs {
		responses = append(responses, p.Process(req))
	}
	return responses
}

func (p *Processor) failure(req auctionapi.AuctionRequest, message string, startTime time.Time) auctionapi.AuctionResponse {
	return auctionapi.AuctionResponse{
		Type:           responseType,
		Success:        false,
		Message:        message,
		AuctionID:      req.AuctionID,
		Rule:           req.Rule,
		ProcessingTime: time.Since(startTime).Microseconds(),
	}
}
