// Package dspsim runs an in-process demand partner for local development:
// it answers every impression with a fixed markup bid priced just above the
// floor, so a freshly started exchange always has something to auction.
package dspsim

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/thenexusengine/tne_adx/internal/openrtb"
	"github.com/thenexusengine/tne_adx/pkg/logger"
)

// BidMarkup is the creative every simulated bid carries.
const BidMarkup = "<html><body>Mock DSP Ad</body></html>"

// FloorIncrement is added to each impression's bidfloor to form the price.
const FloorIncrement = 0.5

// Server is the simulated DSP.
type Server struct {
	srv *http.Server
}

// New builds a simulator listening on the given port.
func New(port int) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/bid", handleBid)

	return &Server{
		srv: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		},
	}
}

// Start serves until Shutdown; it blocks like ListenAndServe.
func (s *Server) Start() error {
	logger.Log.Info().Str("addr", s.srv.Addr).Msg("Mock DSP listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("mock dsp: %w", err)
	}
	return nil
}

// Serve serves on an existing listener, for callers that pick the port.
func (s *Server) Serve(ln net.Listener) error {
	if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("mock dsp: %w", err)
	}
	return nil
}

// Shutdown stops the simulator gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// handleBid answers with one bid per impression at bidfloor + 0.5.
func handleBid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req openrtb.BidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	bids := make([]openrtb.Bid, 0, len(req.Imp))
	for _, imp := range req.Imp {
		bids = append(bids, openrtb.Bid{
			ID:    "bid-" + imp.ID,
			ImpID: imp.ID,
			Price: imp.BidFloor + FloorIncrement,
			AdM:   BidMarkup,
		})
	}

	resp := openrtb.BidResponse{
		ID:      req.ID,
		SeatBid: []openrtb.SeatBid{{Bid: bids}},
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Log.Error().Err(err).Msg("failed to encode mock bid response")
	}
}
