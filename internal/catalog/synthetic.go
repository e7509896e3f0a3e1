package catalog

import (
	"math/rand"

	"github.com/thenexusengine/tne_adx/internal/config"
)

const demandNameLetters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// GenerateDemands builds a synthetic demand generation for running without a
// persistent source: 5-10 demands with sequential ids starting at 1, random
// `_dsp`-suffixed names, and per-DSP timeouts in [100,1000) ms on roughly
// half of them, all pointing at bidURL. At least one demand is enabled.
func GenerateDemands(rng *rand.Rand, bidURL string) []Demand {
	n := 5 + rng.Intn(5)
	demands := make([]Demand, n)
	anyActive := false
	for i := range demands {
		d := Demand{
			ID:     uint64(i + 1),
			Name:   randomDemandName(rng),
			URL:    bidURL,
			Status: rng.Intn(2) == 1,
		}
		if rng.Intn(2) == 1 {
			d.TimeoutMs = config.DSPMinTimeoutMs + rng.Intn(1000-config.DSPMinTimeoutMs)
		}
		if d.Status {
			anyActive = true
		}
		demands[i] = d
	}
	if !anyActive {
		demands[0].Status = true
	}
	return demands
}

func randomDemandName(rng *rand.Rand) string {
	n := 5 + rng.Intn(11)
	b := make([]byte, n)
	for i := range b {
		b[i] = demandNameLetters[rng.Intn(len(demandNameLetters))]
	}
	return string(b) + "_dsp"
}
