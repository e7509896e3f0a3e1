// Package exchange runs the auction: it fans a bid request out to every
// active demand, partitions the outcomes, filters sensitive creatives,
// prices the winner, and produces the single-seat response returned to the
// supply side. Every auction also emits a structured trace through the
// runtime log sink.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/thenexusengine/tne_adx/internal/adxlog"
	"github.com/thenexusengine/tne_adx/internal/catalog"
	"github.com/thenexusengine/tne_adx/internal/creative"
	"github.com/thenexusengine/tne_adx/internal/dsp"
	"github.com/thenexusengine/tne_adx/internal/openrtb"
	"github.com/thenexusengine/tne_adx/pkg/logger"
)

// Auction outcome labels used in logs and metrics.
const (
	ResultSuccess = "success"
	ResultFailed  = "failed"
)

// Failure reasons attached to adx_inquiry_failed log lines.
const (
	ReasonAllDSPFailed     = "all_dsp_failed"
	ReasonAllBidsFiltered  = "all_bids_filtered"
	reasonNoSeatBid        = "no_seatbid"
	reasonSensitiveContent = "contains_sensitive_content"
)

// sensitiveKeywords blocks creatives whose markup or creative id carries any
// of these substrings. Matching is case-sensitive.
var sensitiveKeywords = []string{"forbidden", "banned", "restricted"}

// MetricsRecorder receives auction and DSP-call observations. The engine
// works without one; tests typically leave it unset.
type MetricsRecorder interface {
	RecordAuction(result string, duration time.Duration)
	RecordWin(creativeFormat string, price float64)
	RecordDSPCall(demand, status string, elapsed time.Duration, topPrice float64)
	IncBidFiltered()
	IncTmaxOverrun()
}

// Auction carries one inbound request through the engine together with the
// supply-side records it resolved to.
type Auction struct {
	Request   *openrtb.BidRequest
	SSP       *catalog.SSP
	Placement *catalog.SSPPlacement
	Start     time.Time
}

// Engine is the auction core. It reads demand configuration from the
// catalog, calls DSPs through a shared client, and writes auction traces to
// the runtime log.
type Engine struct {
	catalog *catalog.Catalog
	client  *dsp.Client
	rlog    *adxlog.Logger
	metrics MetricsRecorder
}

// New builds an engine over the given catalog, DSP client, and runtime log.
func New(cat *catalog.Catalog, client *dsp.Client, rlog *adxlog.Logger) *Engine {
	return &Engine{catalog: cat, client: client, rlog: rlog}
}

// SetMetrics attaches a metrics recorder. Must be called before serving.
func (e *Engine) SetMetrics(m MetricsRecorder) {
	e.metrics = m
}

// dspCallDetail is one per-DSP record in the aggregated auction trace.
// FailureReason is null when the call succeeded.
type dspCallDetail struct {
	DSPID         uint64  `json:"dsp_id"`
	URL           string  `json:"url"`
	BidPrice      float64 `json:"bid_price"`
	Result        string  `json:"result"`
	InquiryTimeMS int64   `json:"inquiry_time_ms"`
	FailureReason *string `json:"failure_reason"`
}

// failedDSPEntry describes one excluded DSP. Exactly one of NBR and Reason
// is set: NBR when the demand answered with a no-bid code, Reason otherwise.
type failedDSPEntry struct {
	DSPID         uint64               `json:"dsp_id"`
	URL           string               `json:"url"`
	NBR           *openrtb.NoBidReason `json:"nbr,omitempty"`
	Reason        string               `json:"reason,omitempty"`
	Result        string               `json:"result"`
	InquiryTimeMS int64                `json:"inquiry_time_ms"`
}

type dspInquiryFailedLog struct {
	RequestID string   `json:"request_id"`
	AdxLog    string   `json:"adx_log"`
	Details   []string `json:"details"`
}

type adxInquiryFailedLog struct {
	RequestID string `json:"request_id"`
	AdxLog    string `json:"adx_log"`
	Reason    string `json:"reason"`
}

type bidRejectedLog struct {
	RequestID string `json:"request_id"`
	AdxLog    string `json:"adx_log"`
	BidID     string `json:"bid_id"`
	Reason    string `json:"reason"`
}

// auctionTraceLog is the aggregated line emitted once per auction.
// WinningBid is null when the auction produced no fill.
type auctionTraceLog struct {
	RequestID  string          `json:"request_id"`
	Result     string          `json:"adx_inquiry_result"`
	WinningBid *openrtb.Bid    `json:"winning_bid"`
	Details    []dspCallDetail `json:"dsp_call_details"`
	ElapsedMS  int64           `json:"elapsed_time_ms"`
}

// candidateBid keeps a flattened bid tied to the demand that produced it so
// the winner's profit rate can be resolved after selection.
type candidateBid struct {
	bid      openrtb.Bid
	demandID uint64
}

// Run executes one auction and returns the response to send upstream, or
// nil when no DSP produced a usable bid.
func (e *Engine) Run(ctx context.Context, auction *Auction) *openrtb.BidResponse {
	req := auction.Request
	log := logger.Auction(req.ID)

	body, err := json.Marshal(req)
	if err != nil {
		log.Error().Err(err).Msg("encode bid request for fan-out")
		return e.finish(auction, nil, nil, ReasonAllDSPFailed)
	}

	results := e.client.FetchAll(ctx, e.targets(), body, req.TMax)

	details := make([]dspCallDetail, 0, len(results))
	var failed []string
	var valid []dsp.Result
	for _, res := range results {
		e.recordDSPCall(res)
		details = append(details, detailFor(res))
		if entry, ok := failureEntry(res); ok {
			failed = append(failed, marshalEntry(entry))
			continue
		}
		valid = append(valid, res)
	}
	if len(failed) > 0 {
		e.logJSON(adxlog.LevelError, dspInquiryFailedLog{
			RequestID: req.ID,
			AdxLog:    "dsp_inquiry_failed",
			Details:   failed,
		})
	}

	if len(valid) == 0 {
		return e.finish(auction, details, nil, ReasonAllDSPFailed)
	}

	candidates := e.filterBids(req.ID, valid)
	if len(candidates) == 0 {
		return e.finish(auction, details, nil, ReasonAllBidsFiltered)
	}

	winner := e.selectAndPrice(candidates)
	return e.finish(auction, details, winner, "")
}

// targets resolves the enabled demands and their placement auth into DSP
// call targets, preserving catalog order.
func (e *Engine) targets() []dsp.Target {
	demands := e.catalog.ActiveDemands()
	targets := make([]dsp.Target, 0, len(demands))
	for _, d := range demands {
		targets = append(targets, dsp.Target{
			Demand: d,
			Auth:   dsp.ParseAuth(e.catalog.AuthFor(d.ID)),
		})
	}
	return targets
}

// filterBids flattens every seat bid from the valid results and drops bids
// whose creative carries sensitive content, logging each rejection.
func (e *Engine) filterBids(requestID string, results []dsp.Result) []candidateBid {
	var kept []candidateBid
	for _, res := range results {
		for _, sb := range res.Response.SeatBid {
			for _, bid := range sb.Bid {
				if containsSensitiveContent(bid) {
					e.logJSON(adxlog.LevelWarn, bidRejectedLog{
						RequestID: requestID,
						AdxLog:    "bid_rejected",
						BidID:     bid.ID,
						Reason:    reasonSensitiveContent,
					})
					if e.metrics != nil {
						e.metrics.IncBidFiltered()
					}
					continue
				}
				kept = append(kept, candidateBid{bid: bid, demandID: res.DemandID})
			}
		}
	}
	return kept
}

// selectAndPrice picks the highest-price candidate, applies the winning
// demand's profit rate, and rewrites the creative with the marked-down
// price. Ties keep the order the candidates arrived in.
func (e *Engine) selectAndPrice(candidates []candidateBid) *openrtb.Bid {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].bid.Price > candidates[j].bid.Price
	})
	top := candidates[0]
	winner := top.bid

	rate := e.catalog.ProfitRateFor(top.demandID)
	final := decimal.NewFromFloat(winner.Price).
		Mul(decimal.NewFromInt(1).Sub(decimal.NewFromFloat(rate)))

	format := creative.DetectFormat(winner.AdM)
	if winner.AdM != "" {
		winner.AdM = creative.Rewrite(winner.AdM, final.String())
	}
	winner.Price = final.InexactFloat64()

	if e.metrics != nil {
		e.metrics.RecordWin(string(format), winner.Price)
	}
	return &winner
}

// finish emits the per-auction log lines and metrics shared by every exit
// path and builds the upstream response. A nil winner means no fill.
func (e *Engine) finish(auction *Auction, details []dspCallDetail, winner *openrtb.Bid, reason string) *openrtb.BidResponse {
	req := auction.Request
	elapsed := time.Since(auction.Start).Milliseconds()

	if req.TMax > 0 && elapsed > int64(req.TMax) {
		e.rlog.Log(adxlog.LevelWarn, fmt.Sprintf("Processing time %d ms exceeded tmax %d ms", elapsed, req.TMax))
		if e.metrics != nil {
			e.metrics.IncTmaxOverrun()
		}
	}

	result := ResultSuccess
	if winner == nil {
		result = ResultFailed
		e.logJSON(adxlog.LevelError, adxInquiryFailedLog{
			RequestID: req.ID,
			AdxLog:    "adx_inquiry_failed",
			Reason:    reason,
		})
	}

	if details == nil {
		details = []dspCallDetail{}
	}
	e.logJSON(adxlog.LevelInfo, auctionTraceLog{
		RequestID:  req.ID,
		Result:     result,
		WinningBid: winner,
		Details:    details,
		ElapsedMS:  elapsed,
	})
	if e.metrics != nil {
		e.metrics.RecordAuction(result, time.Since(auction.Start))
	}

	if winner == nil {
		return nil
	}
	return &openrtb.BidResponse{
		ID:      req.ID,
		SeatBid: []openrtb.SeatBid{{Bid: []openrtb.Bid{*winner}, Seat: "", Group: 0}},
		Cur:     "USD",
	}
}

// detailFor converts one DSP result into its trace record.
func detailFor(res dsp.Result) dspCallDetail {
	d := dspCallDetail{
		DSPID:         res.DemandID,
		URL:           res.URL,
		BidPrice:      res.TopPrice,
		Result:        string(res.Status),
		InquiryTimeMS: res.ElapsedMS,
	}
	if res.Status != dsp.StatusSuccess {
		reason := string(res.Status)
		d.FailureReason = &reason
	}
	return d
}

// failureEntry reports whether the result is excluded from the auction and
// with what reason. Transport failures keep their status; successful calls
// are excluded only on an explicit no-bid code or an empty seatbid.
func failureEntry(res dsp.Result) (failedDSPEntry, bool) {
	entry := failedDSPEntry{
		DSPID:         res.DemandID,
		URL:           res.URL,
		Result:        string(res.Status),
		InquiryTimeMS: res.ElapsedMS,
	}
	switch {
	case res.Status != dsp.StatusSuccess:
		entry.Reason = string(res.Status)
	case res.Response.NBR != nil:
		entry.NBR = res.Response.NBR
	case len(res.Response.SeatBid) == 0:
		entry.Reason = reasonNoSeatBid
	default:
		return failedDSPEntry{}, false
	}
	return entry, true
}

func containsSensitiveContent(bid openrtb.Bid) bool {
	content := bid.AdM + " " + bid.CRID
	for _, kw := range sensitiveKeywords {
		if strings.Contains(content, kw) {
			return true
		}
	}
	return false
}

// marshalEntry renders a failed-DSP entry as the JSON string embedded in
// the dsp_inquiry_failed details array.
func marshalEntry(entry failedDSPEntry) string {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Sprintf(`{"dsp_id":%d,"result":"encoding_error"}`, entry.DSPID)
	}
	return string(raw)
}

func (e *Engine) logJSON(level string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		logger.Log.Error().Err(err).Msg("encode runtime log payload")
		return
	}
	e.rlog.Log(level, string(raw))
}

func (e *Engine) recordDSPCall(res dsp.Result) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordDSPCall(res.DemandName, string(res.Status), time.Duration(res.ElapsedMS)*time.Millisecond, res.TopPrice)
}
