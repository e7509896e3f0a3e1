// Package openrtb provides the OpenRTB 2.x data model the exchange speaks,
// trimmed to the fields the auction pipeline reads or forwards.
package openrtb

import "encoding/json"

// BidRequest represents an OpenRTB 2.x bid request
type BidRequest struct {
	ID      string          `json:"id"`
	Imp     []Imp           `json:"imp"`
	Site    *Site           `json:"site,omitempty"`
	App     *App            `json:"app,omitempty"`
	Device  *Device         `json:"device,omitempty"`
	User    *User           `json:"user,omitempty"`
	Test    int             `json:"test,omitempty"`
	AT      int             `json:"at,omitempty"`   // Auction type: 1=first price, 2=second price
	TMax    int             `json:"tmax,omitempty"` // Max time in ms for bid response
	WSeat   []string        `json:"wseat,omitempty"`
	BSeat   []string        `json:"bseat,omitempty"`
	AllImps int             `json:"allimps,omitempty"`
	Cur     []string        `json:"cur,omitempty"`
	WLang   []string        `json:"wlang,omitempty"`
	BCat    []string        `json:"bcat,omitempty"`
	BAdv    []string        `json:"badv,omitempty"`
	Source  *Source         `json:"source,omitempty"`
	Regs    *Regs           `json:"regs,omitempty"`
	Ext     json.RawMessage `json:"ext,omitempty"`
}

// Imp represents a single impression being auctioned. Exactly one of
// Banner/Video/Audio/Native is expected to be set.
type Imp struct {
	ID          string          `json:"id"`
	Metric      []Metric        `json:"metric,omitempty"`
	Banner      *Banner         `json:"banner,omitempty"`
	Video       *Video          `json:"video,omitempty"`
	Audio       *Audio          `json:"audio,omitempty"`
	Native      *Native         `json:"native,omitempty"`
	PMP         *PMP            `json:"pmp,omitempty"`
	TagID       string          `json:"tagid,omitempty"`
	BidFloor    float64         `json:"bidfloor,omitempty"`
	BidFloorCur string          `json:"bidfloorcur,omitempty"`
	Ext         json.RawMessage `json:"ext,omitempty"`
}

// Metric carries a viewability or quality signal attached to an impression
type Metric struct {
	Type   string          `json:"type,omitempty"`
	Value  float64         `json:"value,omitempty"`
	Vendor string          `json:"vendor,omitempty"`
	Ext    json.RawMessage `json:"ext,omitempty"`
}

// Banner represents a banner impression
type Banner struct {
	Format []Format        `json:"format,omitempty"`
	W      int             `json:"w,omitempty"`
	H      int             `json:"h,omitempty"`
	Pos    int             `json:"pos,omitempty"`
	Ext    json.RawMessage `json:"ext,omitempty"`
}

// Format represents an allowed banner size
type Format struct {
	W   int             `json:"w,omitempty"`
	H   int             `json:"h,omitempty"`
	Ext json.RawMessage `json:"ext,omitempty"`
}

// Video represents a video impression
type Video struct {
	Mimes       []string        `json:"mimes,omitempty"`
	MinDuration int             `json:"minduration,omitempty"`
	MaxDuration int             `json:"maxduration,omitempty"`
	Protocols   []int           `json:"protocols,omitempty"`
	W           int             `json:"w,omitempty"`
	H           int             `json:"h,omitempty"`
	Ext         json.RawMessage `json:"ext,omitempty"`
}

// Audio represents an audio impression
type Audio struct {
	Mimes       []string        `json:"mimes,omitempty"`
	MinDuration int             `json:"minduration,omitempty"`
	MaxDuration int             `json:"maxduration,omitempty"`
	Protocols   []int           `json:"protocols,omitempty"`
	Ext         json.RawMessage `json:"ext,omitempty"`
}

// Native represents a native impression; Request is the native spec JSON
type Native struct {
	Request string          `json:"request,omitempty"`
	Ver     string          `json:"ver,omitempty"`
	Ext     json.RawMessage `json:"ext,omitempty"`
}

// PMP represents private marketplace terms
type PMP struct {
	PrivateAuction int             `json:"private_auction,omitempty"`
	Deals          []Deal          `json:"deals,omitempty"`
	Ext            json.RawMessage `json:"ext,omitempty"`
}

// Deal represents one private marketplace deal
type Deal struct {
	ID          string          `json:"id"`
	BidFloor    float64         `json:"bidfloor,omitempty"`
	BidFloorCur string          `json:"bidfloorcur,omitempty"`
	Ext         json.RawMessage `json:"ext,omitempty"`
}

// Site describes the website originating the request
type Site struct {
	ID     string          `json:"id,omitempty"`
	Name   string          `json:"name,omitempty"`
	Domain string          `json:"domain,omitempty"`
	Page   string          `json:"page,omitempty"`
	Cat    []string        `json:"cat,omitempty"`
	Ext    json.RawMessage `json:"ext,omitempty"`
}

// App describes the application originating the request
type App struct {
	ID     string          `json:"id,omitempty"`
	Name   string          `json:"name,omitempty"`
	Bundle string          `json:"bundle,omitempty"`
	Ext    json.RawMessage `json:"ext,omitempty"`
}

// Device describes the requesting device
type Device struct {
	UA       string          `json:"ua,omitempty"`
	IP       string          `json:"ip,omitempty"`
	IPv6     string          `json:"ipv6,omitempty"`
	OS       string          `json:"os,omitempty"`
	OSV      string          `json:"osv,omitempty"`
	Language string          `json:"language,omitempty"`
	IFA      string          `json:"ifa,omitempty"`
	Ext      json.RawMessage `json:"ext,omitempty"`
}

// User describes the user of the device
type User struct {
	ID       string          `json:"id,omitempty"`
	BuyerUID string          `json:"buyeruid,omitempty"`
	Ext      json.RawMessage `json:"ext,omitempty"`
}

// Source describes the upstream path of the request
type Source struct {
	FD  int             `json:"fd,omitempty"`
	TID string          `json:"tid,omitempty"`
	Ext json.RawMessage `json:"ext,omitempty"`
}

// Regs carries regulatory flags
type Regs struct {
	COPPA     int             `json:"coppa,omitempty"`
	GDPR      *int            `json:"gdpr,omitempty"`
	USPrivacy string          `json:"us_privacy,omitempty"`
	Ext       json.RawMessage `json:"ext,omitempty"`
}
