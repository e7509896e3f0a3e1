package catalog

import (
	"math/rand"
	"strings"
	"testing"
)

func TestGenerateDemands(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		rng := rand.New(rand.NewSource(seed))
		demands := GenerateDemands(rng, "http://localhost:9001/bid")

		if len(demands) < 5 || len(demands) > 10 {
			t.Fatalf("seed %d: expected 5-10 demands, got %d", seed, len(demands))
		}

		anyActive := false
		for i, d := range demands {
			if d.ID != uint64(i+1) {
				t.Errorf("seed %d: demand %d has id %d, want %d", seed, i, d.ID, i+1)
			}
			if !strings.HasSuffix(d.Name, "_dsp") {
				t.Errorf("seed %d: name %q missing _dsp suffix", seed, d.Name)
			}
			if strings.ContainsAny(d.Name, " \t") {
				t.Errorf("seed %d: name %q contains whitespace", seed, d.Name)
			}
			base := strings.TrimSuffix(d.Name, "_dsp")
			if len(base) < 5 || len(base) > 15 {
				t.Errorf("seed %d: name base %q length %d outside [5,15]", seed, base, len(base))
			}
			if d.URL != "http://localhost:9001/bid" {
				t.Errorf("seed %d: unexpected url %q", seed, d.URL)
			}
			if d.TimeoutMs != 0 && (d.TimeoutMs < 100 || d.TimeoutMs >= 1000) {
				t.Errorf("seed %d: timeout %d outside [100,1000)", seed, d.TimeoutMs)
			}
			if err := d.Validate(); err != nil {
				t.Errorf("seed %d: generated demand fails validation: %v", seed, err)
			}
			anyActive = anyActive || d.Status
		}
		if !anyActive {
			t.Errorf("seed %d: no active demand generated", seed)
		}
	}
}

func TestGenerateDemandsDeterministic(t *testing.T) {
	a := GenerateDemands(rand.New(rand.NewSource(42)), "http://localhost:9001/bid")
	b := GenerateDemands(rand.New(rand.NewSource(42)), "http://localhost:9001/bid")

	if len(a) != len(b) {
		t.Fatalf("same seed produced different counts: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("same seed diverged at %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}
