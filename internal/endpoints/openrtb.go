// Package endpoints provides HTTP endpoint handlers.
package endpoints

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/thenexusengine/tne_adx/internal/adxlog"
	"github.com/thenexusengine/tne_adx/internal/catalog"
	"github.com/thenexusengine/tne_adx/internal/config"
	"github.com/thenexusengine/tne_adx/internal/exchange"
	"github.com/thenexusengine/tne_adx/internal/openrtb"
	"github.com/thenexusengine/tne_adx/pkg/logger"
)

// AuctionRunner runs one auction and returns the response to emit, or nil
// when no DSP produced a usable bid.
type AuctionRunner interface {
	Run(ctx context.Context, auction *exchange.Auction) *openrtb.BidResponse
}

// BidHandler handles POST /openrtb requests from supply partners.
type BidHandler struct {
	catalog *catalog.Catalog
	engine  AuctionRunner
	rlog    *adxlog.Logger
}

// NewBidHandler creates the bid endpoint handler.
func NewBidHandler(cat *catalog.Catalog, engine AuctionRunner, rlog *adxlog.Logger) *BidHandler {
	return &BidHandler{catalog: cat, engine: engine, rlog: rlog}
}

type bidSuccessLog struct {
	RequestID    string  `json:"request_id"`
	AdxLog       string  `json:"adx_log"`
	WinningPrice float64 `json:"winning_price"`
}

type bidFailureLog struct {
	RequestID string `json:"request_id"`
	AdxLog    string `json:"adx_log"`
}

// ServeHTTP parses the bid request, resolves the supply partner, runs the
// auction, and answers 200 with the winner or 204 with a skeletal no-bid.
func (h *BidHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, config.DefaultMaxBodySize))
	if err != nil {
		writeError(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var bidRequest openrtb.BidRequest
	if err := json.Unmarshal(body, &bidRequest); err != nil {
		logger.FromContext(r.Context()).Warn().Err(err).Msg("Invalid JSON in bid request")
		writeError(w, "Invalid JSON in request body", http.StatusBadRequest)
		return
	}
	if err := validateBidRequest(&bidRequest); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := logger.WithAuctionID(r.Context(), bidRequest.ID)
	log := logger.FromContext(ctx)

	sspUUID := r.URL.Query().Get("ssp_uuid")
	ssp, ok := h.catalog.SSPByUUID(sspUUID)
	if !ok {
		log.Warn().Str("ssp_uuid", sspUUID).Msg("Unknown SSP")
		writeNoBid(w, bidRequest.ID)
		return
	}
	placement, ok := h.catalog.PlacementForSSP(sspUUID)
	if !ok {
		log.Warn().Str("ssp_uuid", sspUUID).Msg("SSP has no enabled placement")
		writeNoBid(w, bidRequest.ID)
		return
	}

	auction := &exchange.Auction{
		Request:   &bidRequest,
		SSP:       &ssp,
		Placement: &placement,
		Start:     start,
	}
	response := h.engine.Run(ctx, auction)

	if response == nil {
		h.logRuntime(adxlog.LevelError, bidFailureLog{
			RequestID: bidRequest.ID,
			AdxLog:    "adx_inquiry_failed",
		})
		log.Info().
			Str("ssp", ssp.Name).
			Dur("duration_ms", time.Since(start)).
			Msg("Auction completed without fill")
		writeNoBid(w, bidRequest.ID)
		return
	}

	winningPrice := response.SeatBid[0].Bid[0].Price
	h.logRuntime(adxlog.LevelInfo, bidSuccessLog{
		RequestID:    bidRequest.ID,
		AdxLog:       "adx_inquiry_success",
		WinningPrice: winningPrice,
	})
	log.Info().
		Str("ssp", ssp.Name).
		Float64("winning_price", winningPrice).
		Dur("duration_ms", time.Since(start)).
		Msg("Auction completed")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Error().Err(err).Msg("failed to encode auction response")
	}
}

func (h *BidHandler) logRuntime(level string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		logger.Log.Error().Err(err).Msg("encode runtime log payload")
		return
	}
	h.rlog.Log(level, string(raw))
}

// validateBidRequest rejects requests the engine cannot auction.
func validateBidRequest(req *openrtb.BidRequest) error {
	if req.ID == "" {
		return &ValidationError{Field: "id", Message: "required", Index: -1}
	}
	if len(req.Imp) == 0 {
		return &ValidationError{Field: "imp", Message: "at least one impression required", Index: -1}
	}
	for i, imp := range req.Imp {
		if imp.ID == "" {
			return &ValidationError{Field: "imp[].id", Message: "required", Index: i}
		}
	}
	return nil
}

// ValidationError describes a rejected bid request field.
type ValidationError struct {
	Field   string
	Message string
	Index   int
}

func (e *ValidationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s[%d]: %s", e.Field, e.Index, e.Message)
	}
	return e.Field + ": " + e.Message
}

// NoBidResponse is the skeletal payload attached to every 204 answer.
func NoBidResponse(requestID string) *openrtb.BidResponse {
	return &openrtb.BidResponse{
		ID:      requestID,
		SeatBid: []openrtb.SeatBid{},
		Cur:     "USD",
		NBR:     openrtb.NBRPtr(openrtb.NoBidUnmatched),
	}
}

// writeNoBid answers 204 carrying the skeletal no-bid payload. The standard
// library strips the body from 204 answers on the wire; recorders and
// in-process clients still observe it.
func writeNoBid(w http.ResponseWriter, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNoContent)
	_ = json.NewEncoder(w).Encode(NoBidResponse(requestID))
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		logger.HTTP().Error().Err(err).Str("message", message).Msg("failed to encode error response")
	}
}
