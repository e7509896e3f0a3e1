// Package dsp issues OpenRTB bid requests to demand partners and collects
// the per-partner outcomes the auction ranks.
package dsp

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/thenexusengine/tne_adx/internal/catalog"
	"github.com/thenexusengine/tne_adx/internal/config"
	"github.com/thenexusengine/tne_adx/internal/openrtb"
	"github.com/thenexusengine/tne_adx/pkg/logger"
)

// Status classifies the outcome of a single DSP call.
type Status string

const (
	// StatusSuccess means the DSP answered with a decodable bid response.
	StatusSuccess Status = "success"
	// StatusInvalidResponse covers transport failures and non-2xx answers.
	StatusInvalidResponse Status = "invalid_response"
	// StatusJSONParseError means the body was received but did not decode.
	StatusJSONParseError Status = "json_parse_error"
	// StatusTimeout means the call exceeded its deadline.
	StatusTimeout Status = "timeout"
)

// Result is the outcome of one DSP inquiry. Response is non-nil only for
// StatusSuccess; TopPrice is the highest bid price found in it.
type Result struct {
	DemandID   uint64
	DemandName string
	URL        string
	TopPrice   float64
	Response   *openrtb.BidResponse
	Status     Status
	ElapsedMS  int64
}

// Target pairs a demand with the call options resolved from the catalog.
type Target struct {
	Demand catalog.Demand
	Auth   AuthSpec
}

// AuthSpec is the optional per-placement auth blob attached to DSP calls.
// Placements either name a custom header or supply a bearer token.
type AuthSpec struct {
	HeaderName  string `json:"auth_header_name"`
	HeaderValue string `json:"auth_header_value"`
	BearerToken string `json:"bearer_token"`
}

// ParseAuth decodes a placement auth blob. Empty or unparseable blobs yield
// a zero spec, which attaches nothing.
func ParseAuth(blob string) AuthSpec {
	var spec AuthSpec
	if blob == "" || blob == "{}" {
		return spec
	}
	if err := json.Unmarshal([]byte(blob), &spec); err != nil {
		return AuthSpec{}
	}
	return spec
}

// apply attaches the credentials the placement configured, if any.
func (a AuthSpec) apply(header http.Header) {
	switch {
	case a.HeaderName != "" && a.HeaderValue != "":
		header.Set(a.HeaderName, a.HeaderValue)
	case a.BearerToken != "":
		header.Set("Authorization", "Bearer "+a.BearerToken)
	}
}

// Client calls DSP endpoints over a shared pooled transport.
type Client struct {
	http *http.Client
}

// NewClient builds a client with connection pooling tuned for repeated
// requests to a small set of DSP endpoints.
func NewClient() *Client {
	transport := &http.Transport{
		MaxIdleConns:        config.DSPMaxIdleConns,
		MaxIdleConnsPerHost: config.DSPMaxIdleConnsPerHost,
		MaxConnsPerHost:     config.DSPMaxConnsPerHost,
		IdleConnTimeout:     config.DSPIdleConnTimeout,

		TLSClientConfig: &tls.Config{
			ClientSessionCache: tls.NewLRUClientSessionCache(100),
			MinVersion:         tls.VersionTLS12,
		},

		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		// Bid responses are small JSON bodies; skip transport gzip.
		DisableCompression: true,
	}

	return &Client{
		http: &http.Client{Transport: transport},
	}
}

// Deadline resolves the timeout for one call: the demand's configured
// timeout wins, then the request's tmax, then the server default.
func Deadline(demand catalog.Demand, tmaxMs int) time.Duration {
	if demand.TimeoutMs > 0 {
		return time.Duration(demand.TimeoutMs) * time.Millisecond
	}
	if tmaxMs > 0 {
		return time.Duration(tmaxMs) * time.Millisecond
	}
	return config.DSPDefaultTimeout
}

// Call sends one bid request to a demand endpoint and classifies the outcome.
// ElapsedMS covers the full exchange including response decoding.
func (c *Client) Call(ctx context.Context, target Target, body []byte, tmaxMs int) Result {
	demand := target.Demand
	result := Result{
		DemandID:   demand.ID,
		DemandName: demand.Name,
		URL:        demand.URL,
	}

	start := time.Now()
	finish := func(status Status) Result {
		result.Status = status
		result.ElapsedMS = time.Since(start).Milliseconds()
		logger.Demand(demand.Name).Debug().
			Uint64("dsp_id", result.DemandID).
			Str("url", result.URL).
			Str("status", string(status)).
			Int64("elapsed_ms", result.ElapsedMS).
			Msg("DSP call completed")
		return result
	}

	callCtx, cancel := context.WithTimeout(ctx, Deadline(demand, tmaxMs))
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, demand.URL, bytes.NewReader(body))
	if err != nil {
		return finish(StatusInvalidResponse)
	}
	req.Header.Set("Content-Type", "application/json;charset=utf-8")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-OpenRTB-Version", "2.5")
	target.Auth.apply(req.Header)

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return finish(StatusTimeout)
		}
		return finish(StatusInvalidResponse)
	}
	defer resp.Body.Close()

	// +1 so an oversized body is detected rather than silently truncated.
	data, err := io.ReadAll(io.LimitReader(resp.Body, config.DSPMaxResponseSize+1))
	if err != nil {
		if isTimeout(err) {
			return finish(StatusTimeout)
		}
		return finish(StatusInvalidResponse)
	}
	if len(data) > config.DSPMaxResponseSize {
		return finish(StatusInvalidResponse)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return finish(StatusInvalidResponse)
	}

	var bidResp openrtb.BidResponse
	if err := json.Unmarshal(data, &bidResp); err != nil {
		return finish(StatusJSONParseError)
	}

	result.Response = &bidResp
	result.TopPrice = topPrice(&bidResp)
	return finish(StatusSuccess)
}

// isTimeout reports whether an error stems from a deadline rather than a
// transport fault.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// topPrice returns the highest bid price in a response, 0 when it has none.
func topPrice(resp *openrtb.BidResponse) float64 {
	var top float64
	for _, seatBid := range resp.SeatBid {
		for _, bid := range seatBid.Bid {
			if bid.Price > top {
				top = bid.Price
			}
		}
	}
	return top
}
