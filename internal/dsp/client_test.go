package dsp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/thenexusengine/tne_adx/internal/catalog"
	"github.com/thenexusengine/tne_adx/internal/config"
	"github.com/thenexusengine/tne_adx/internal/openrtb"
)

func demandFor(srv *httptest.Server) catalog.Demand {
	return catalog.Demand{ID: 1, Name: "test_dsp", URL: srv.URL, Status: true}
}

func TestDeadline(t *testing.T) {
	tests := []struct {
		name   string
		demand catalog.Demand
		tmaxMs int
		want   time.Duration
	}{
		{
			name:   "demand timeout wins over tmax",
			demand: catalog.Demand{TimeoutMs: 200},
			tmaxMs: 100,
			want:   200 * time.Millisecond,
		},
		{
			name:   "tmax used when demand has none",
			demand: catalog.Demand{},
			tmaxMs: 100,
			want:   100 * time.Millisecond,
		},
		{
			name:   "server default when neither is set",
			demand: catalog.Demand{},
			tmaxMs: 0,
			want:   config.DSPDefaultTimeout,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Deadline(tt.demand, tt.tmaxMs); got != tt.want {
				t.Errorf("Deadline() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseAuth(t *testing.T) {
	tests := []struct {
		name string
		blob string
		want AuthSpec
	}{
		{name: "empty blob", blob: "", want: AuthSpec{}},
		{name: "empty object", blob: "{}", want: AuthSpec{}},
		{
			name: "custom header",
			blob: `{"auth_header_name":"X-Api-Key","auth_header_value":"sk-1"}`,
			want: AuthSpec{HeaderName: "X-Api-Key", HeaderValue: "sk-1"},
		},
		{
			name: "bearer token",
			blob: `{"bearer_token":"tok-1"}`,
			want: AuthSpec{BearerToken: "tok-1"},
		},
		{name: "garbage yields zero spec", blob: "{not json", want: AuthSpec{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseAuth(tt.blob); got != tt.want {
				t.Errorf("ParseAuth(%q) = %+v, want %+v", tt.blob, got, tt.want)
			}
		})
	}
}

func TestCallSuccess(t *testing.T) {
	var (
		gotMethod  string
		gotHeaders http.Header
		gotBody    openrtb.BidRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeaders = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&gotBody)

		resp := openrtb.BidResponse{
			ID: gotBody.ID,
			SeatBid: []openrtb.SeatBid{
				{Bid: []openrtb.Bid{{ID: "b1", ImpID: "i1", Price: 1.2}}},
				{Bid: []openrtb.Bid{{ID: "b2", ImpID: "i1", Price: 3.4}}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	body, _ := json.Marshal(openrtb.BidRequest{ID: "R1"})
	res := NewClient().Call(context.Background(), Target{Demand: demandFor(srv)}, body, 250)

	if res.Status != StatusSuccess {
		t.Fatalf("status = %q, want success", res.Status)
	}
	if res.Response == nil {
		t.Fatal("Response = nil, want decoded bid response")
	}
	if res.TopPrice != 3.4 {
		t.Errorf("TopPrice = %v, want 3.4", res.TopPrice)
	}
	if res.DemandID != 1 || res.DemandName != "test_dsp" || res.URL != srv.URL {
		t.Errorf("result identity = %+v, want demand fields echoed", res)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("method = %q, want POST", gotMethod)
	}
	if got := gotHeaders.Get("Content-Type"); got != "application/json;charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := gotHeaders.Get("Accept"); got != "application/json" {
		t.Errorf("Accept = %q", got)
	}
	if got := gotHeaders.Get("X-OpenRTB-Version"); got != "2.5" {
		t.Errorf("X-OpenRTB-Version = %q", got)
	}
	if gotBody.ID != "R1" {
		t.Errorf("forwarded request id = %q, want R1", gotBody.ID)
	}
}

func TestCallAppliesAuth(t *testing.T) {
	tests := []struct {
		name       string
		auth       AuthSpec
		wantHeader string
		wantValue  string
	}{
		{
			name:       "custom header pair",
			auth:       AuthSpec{HeaderName: "X-Api-Key", HeaderValue: "sk-9"},
			wantHeader: "X-Api-Key",
			wantValue:  "sk-9",
		},
		{
			name:       "bearer token",
			auth:       AuthSpec{BearerToken: "tok-9"},
			wantHeader: "Authorization",
			wantValue:  "Bearer tok-9",
		},
		{
			name:       "zero spec attaches nothing",
			auth:       AuthSpec{},
			wantHeader: "Authorization",
			wantValue:  "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.Header.Get(tt.wantHeader)
				_ = json.NewEncoder(w).Encode(openrtb.BidResponse{ID: "R1"})
			}))
			defer srv.Close()

			NewClient().Call(context.Background(), Target{Demand: demandFor(srv), Auth: tt.auth}, []byte("{}"), 250)
			if got != tt.wantValue {
				t.Errorf("%s = %q, want %q", tt.wantHeader, got, tt.wantValue)
			}
		})
	}
}

func TestCallNon2xxIsInvalidResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	res := NewClient().Call(context.Background(), Target{Demand: demandFor(srv)}, []byte("{}"), 250)
	if res.Status != StatusInvalidResponse {
		t.Errorf("status = %q, want invalid_response", res.Status)
	}
	if res.Response != nil {
		t.Errorf("Response = %+v, want nil", res.Response)
	}
}

func TestCallUndecodableBodyIsParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("not json at all"))
	}))
	defer srv.Close()

	res := NewClient().Call(context.Background(), Target{Demand: demandFor(srv)}, []byte("{}"), 250)
	if res.Status != StatusJSONParseError {
		t.Errorf("status = %q, want json_parse_error", res.Status)
	}
}

func TestCallTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(400 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(openrtb.BidResponse{ID: "late"})
	}))
	defer srv.Close()

	demand := demandFor(srv)
	demand.TimeoutMs = 100

	start := time.Now()
	res := NewClient().Call(context.Background(), Target{Demand: demand}, []byte("{}"), 250)
	elapsed := time.Since(start)

	if res.Status != StatusTimeout {
		t.Fatalf("status = %q, want timeout", res.Status)
	}
	if elapsed > 300*time.Millisecond {
		t.Errorf("call took %v, want the 100ms demand deadline to cut it off", elapsed)
	}
	if res.ElapsedMS < 90 {
		t.Errorf("ElapsedMS = %d, want at least the deadline span", res.ElapsedMS)
	}
}

func TestCallOversizedBodyIsInvalidResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(make([]byte, config.DSPMaxResponseSize+16))
	}))
	defer srv.Close()

	res := NewClient().Call(context.Background(), Target{Demand: demandFor(srv)}, []byte("{}"), 250)
	if res.Status != StatusInvalidResponse {
		t.Errorf("status = %q, want invalid_response", res.Status)
	}
}

func TestCallConnectionRefusedIsInvalidResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	demand := catalog.Demand{ID: 1, Name: "dead_dsp", URL: url, Status: true}
	res := NewClient().Call(context.Background(), Target{Demand: demand}, []byte("{}"), 250)
	if res.Status != StatusInvalidResponse {
		t.Errorf("status = %q, want invalid_response", res.Status)
	}
}

func TestCallCanceledParentContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(openrtb.BidResponse{ID: "R1"})
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewClient().Call(ctx, Target{Demand: demandFor(srv)}, []byte("{}"), 250)
	if res.Status != StatusInvalidResponse {
		t.Errorf("status = %q, want invalid_response for canceled context", res.Status)
	}
}

func TestTopPrice(t *testing.T) {
	tests := []struct {
		name string
		resp openrtb.BidResponse
		want float64
	}{
		{name: "no seatbid", resp: openrtb.BidResponse{}, want: 0},
		{
			name: "single bid",
			resp: openrtb.BidResponse{SeatBid: []openrtb.SeatBid{{Bid: []openrtb.Bid{{Price: 1.5}}}}},
			want: 1.5,
		},
		{
			name: "highest across seats",
			resp: openrtb.BidResponse{SeatBid: []openrtb.SeatBid{
				{Bid: []openrtb.Bid{{Price: 1.5}, {Price: 0.8}}},
				{Bid: []openrtb.Bid{{Price: 2.2}}},
			}},
			want: 2.2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := topPrice(&tt.resp); got != tt.want {
				t.Errorf("topPrice() = %v, want %v", got, tt.want)
			}
		})
	}
}
