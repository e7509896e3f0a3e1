package openrtb

import "encoding/json"

// BidResponse represents an OpenRTB 2.x bid response. SeatBid deliberately
// has no omitempty: a no-fill response carries an explicit empty array.
type BidResponse struct {
	ID         string          `json:"id"`
	SeatBid    []SeatBid       `json:"seatbid"`
	BidID      string          `json:"bidid,omitempty"`
	Cur        string          `json:"cur,omitempty"`
	CustomData string          `json:"customdata,omitempty"`
	NBR        *NoBidReason    `json:"nbr,omitempty"`
	Ext        json.RawMessage `json:"ext,omitempty"`
}

// SeatBid groups the bids submitted by one seat. Seat and Group are always
// emitted so downstream parsers see explicit values.
type SeatBid struct {
	Bid   []Bid           `json:"bid"`
	Seat  string          `json:"seat"`
	Group int             `json:"group"`
	Ext   json.RawMessage `json:"ext,omitempty"`
}

// Bid represents a single bid on a single impression
type Bid struct {
	ID      string          `json:"id"`
	ImpID   string          `json:"impid"`
	Price   float64         `json:"price"`
	NURL    string          `json:"nurl,omitempty"`
	BURL    string          `json:"burl,omitempty"`
	LURL    string          `json:"lurl,omitempty"`
	AdM     string          `json:"adm,omitempty"`
	AdID    string          `json:"adid,omitempty"`
	ADomain []string        `json:"adomain,omitempty"`
	CID     string          `json:"cid,omitempty"`
	CRID    string          `json:"crid,omitempty"`
	Cat     []string        `json:"cat,omitempty"`
	Attr    []int           `json:"attr,omitempty"`
	DealID  string          `json:"dealid,omitempty"`
	W       int             `json:"w,omitempty"`
	H       int             `json:"h,omitempty"`
	Ext     json.RawMessage `json:"ext,omitempty"`
}

// NoBidReason represents no-bid reason codes per OpenRTB 2.5 Section 5.24
type NoBidReason int

const (
	NoBidUnknown        NoBidReason = 0 // Unknown error
	NoBidTechnicalError NoBidReason = 1 // Technical error
	NoBidInvalidRequest NoBidReason = 2 // Invalid request
	// NoBidUnmatched is what the exchange answers when it cannot fill:
	// unknown SSP, no active demand, or every candidate bid rejected.
	NoBidUnmatched NoBidReason = 3
)

// NBRPtr is a convenience for building responses with a literal reason code.
func NBRPtr(r NoBidReason) *NoBidReason { return &r }
