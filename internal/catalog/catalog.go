// Package catalog holds the configuration generation the exchange serves
// auctions from: DSP demands, SSP records, and the placement mappings on both
// sides. Readers take per-request snapshots; reloads swap whole generations.
package catalog

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/thenexusengine/tne_adx/internal/config"
)

// AdType enumerates placement ad formats.
type AdType int

const (
	AdTypeNative AdType = 1
	AdTypeBanner AdType = 2
	AdTypeVideo  AdType = 3
)

// Placement status codes as stored in the configuration sources.
const (
	StatusEnabled  = 1
	StatusDisabled = 2
)

// DefaultProfitRate is the revenue share taken when the winning DSP has no
// enabled placement override.
const DefaultProfitRate = 0.20

// Demand is one DSP bid endpoint. A generation of demands is immutable once
// published; reloads replace the whole set.
type Demand struct {
	ID        uint64 `json:"id"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	Status    bool   `json:"status"`
	TimeoutMs int    `json:"timeout,omitempty"` // per-DSP deadline, 0 = unset
}

// Validate reports whether the demand is well-formed enough to call.
func (d Demand) Validate() error {
	if d.ID == 0 {
		return fmt.Errorf("demand id must be positive")
	}
	if d.Name == "" || strings.ContainsAny(d.Name, " \t\n") {
		return fmt.Errorf("demand %d: name must be nonempty without whitespace", d.ID)
	}
	if _, err := url.ParseRequestURI(d.URL); err != nil {
		return fmt.Errorf("demand %d: invalid url %q: %w", d.ID, d.URL, err)
	}
	if d.TimeoutMs != 0 && d.TimeoutMs < config.DSPMinTimeoutMs {
		return fmt.Errorf("demand %d: timeout %dms below %dms floor", d.ID, d.TimeoutMs, config.DSPMinTimeoutMs)
	}
	return nil
}

// SSP identifies one supply partner. QPS is the declared request rate; it
// is informational and not enforced per partner.
type SSP struct {
	ID   uint64 `json:"id"`
	UUID string `json:"uuid"`
	Name string `json:"name"`
	QPS  uint32 `json:"qps"`
}

// SSPPlacement maps a supply-side placement to an ad type.
type SSPPlacement struct {
	SSPID       uint64 `json:"ssp_id"`
	SSPUUID     string `json:"ssp_uuid"`
	PlacementID string `json:"placement_id"`
	AdType      AdType `json:"ad_type"`
	UpdateTime  int64  `json:"update_time"`
	Status      int    `json:"status"`
}

// DSPPlacement maps a demand-side tag to its commercial terms. Auth is an
// optional JSON blob naming the credentials attached to the DSP's calls.
type DSPPlacement struct {
	DSPID        uint64  `json:"dsp_id"`
	DSPUUID      string  `json:"dsp_uuid"`
	TagID        string  `json:"tag_id"`
	CustomAdType string  `json:"custom_ad_type"`
	ProfitRate   float64 `json:"profit_rate"`
	Auth         string  `json:"auth"`
	UpdateTime   int64   `json:"update_time"`
	Status       int     `json:"status"`
}

// Snapshot is one full configuration generation as produced by a Source.
type Snapshot struct {
	Demands       []Demand
	SSPs          []SSP
	SSPPlacements []SSPPlacement
	DSPPlacements []DSPPlacement
}

// Catalog is the live configuration store. All reads copy out under a read
// lock; Update and the setters are the only writers.
type Catalog struct {
	mu            sync.RWMutex
	demands       []Demand
	ssps          []SSP
	sspPlacements []SSPPlacement
	dspPlacements []DSPPlacement
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{}
}

// ActiveDemands returns a snapshot of the enabled demands, in generation order.
func (c *Catalog) ActiveDemands() []Demand {
	c.mu.RLock()
	defer c.mu.RUnlock()
	active := make([]Demand, 0, len(c.demands))
	for _, d := range c.demands {
		if d.Status {
			active = append(active, d)
		}
	}
	return active
}

// Demands returns a snapshot of every demand, enabled or not.
func (c *Catalog) Demands() []Demand {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Demand, len(c.demands))
	copy(out, c.demands)
	return out
}

// SetDemands replaces the demand generation wholesale. Demands that fail
// validation are dropped; the caller is expected to have logged them.
func (c *Catalog) SetDemands(demands []Demand) {
	kept := make([]Demand, 0, len(demands))
	for _, d := range demands {
		if err := d.Validate(); err == nil {
			kept = append(kept, d)
		}
	}
	c.mu.Lock()
	c.demands = kept
	c.mu.Unlock()
}

// SSPInfo returns a snapshot of the known SSPs.
func (c *Catalog) SSPInfo() []SSP {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]SSP, len(c.ssps))
	copy(out, c.ssps)
	return out
}

// SetSSPInfo replaces the SSP set.
func (c *Catalog) SetSSPInfo(ssps []SSP) {
	c.mu.Lock()
	c.ssps = append([]SSP(nil), ssps...)
	c.mu.Unlock()
}

// SSPPlacements returns a snapshot of the supply-side placements.
func (c *Catalog) SSPPlacements() []SSPPlacement {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]SSPPlacement, len(c.sspPlacements))
	copy(out, c.sspPlacements)
	return out
}

// DSPPlacements returns a snapshot of the demand-side placements.
func (c *Catalog) DSPPlacements() []DSPPlacement {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]DSPPlacement, len(c.dspPlacements))
	copy(out, c.dspPlacements)
	return out
}

// Placements returns both placement sets from the same generation.
func (c *Catalog) Placements() ([]SSPPlacement, []DSPPlacement) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ssp := make([]SSPPlacement, len(c.sspPlacements))
	copy(ssp, c.sspPlacements)
	dsp := make([]DSPPlacement, len(c.dspPlacements))
	copy(dsp, c.dspPlacements)
	return ssp, dsp
}

// Update swaps both placement sets atomically. A reader never observes a mix
// of the old and new generations.
func (c *Catalog) Update(sspPlacements []SSPPlacement, dspPlacements []DSPPlacement) {
	ssp := append([]SSPPlacement(nil), sspPlacements...)
	dsp := append([]DSPPlacement(nil), dspPlacements...)
	c.mu.Lock()
	c.sspPlacements = ssp
	c.dspPlacements = dsp
	c.mu.Unlock()
}

// Apply installs a whole snapshot: demands, SSPs, and both placement sets.
func (c *Catalog) Apply(snap Snapshot) {
	c.SetDemands(snap.Demands)
	c.SetSSPInfo(snap.SSPs)
	c.Update(snap.SSPPlacements, snap.DSPPlacements)
}

// SSPByUUID resolves an SSP by its UUID.
func (c *Catalog) SSPByUUID(uuid string) (SSP, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.ssps {
		if s.UUID == uuid {
			return s, true
		}
	}
	return SSP{}, false
}

// PlacementForSSP returns the first enabled supply-side placement registered
// under the given SSP UUID.
func (c *Catalog) PlacementForSSP(uuid string) (SSPPlacement, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.sspPlacements {
		if p.SSPUUID == uuid && p.Status == StatusEnabled {
			return p, true
		}
	}
	return SSPPlacement{}, false
}

// ProfitRateFor returns the revenue share for bids won by the given DSP: the
// rate of its first enabled placement, else DefaultProfitRate.
func (c *Catalog) ProfitRateFor(dspID uint64) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.dspPlacements {
		if p.DSPID == dspID && p.Status == StatusEnabled {
			return p.ProfitRate
		}
	}
	return DefaultProfitRate
}

// AuthFor returns the auth blob of the DSP's first enabled placement,
// or "" when the DSP carries none.
func (c *Catalog) AuthFor(dspID uint64) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.dspPlacements {
		if p.DSPID == dspID && p.Status == StatusEnabled {
			return p.Auth
		}
	}
	return ""
}

// Stats summarizes the current generation for the status endpoint.
type Stats struct {
	Demands       int `json:"demands"`
	ActiveDemands int `json:"active_demands"`
	SSPs          int `json:"ssps"`
	SSPPlacements int `json:"ssp_placements"`
	DSPPlacements int `json:"dsp_placements"`
}

// Snapshot statistics for the current generation.
func (c *Catalog) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := Stats{
		Demands:       len(c.demands),
		SSPs:          len(c.ssps),
		SSPPlacements: len(c.sspPlacements),
		DSPPlacements: len(c.dspPlacements),
	}
	for _, d := range c.demands {
		if d.Status {
			st.ActiveDemands++
		}
	}
	return st
}
