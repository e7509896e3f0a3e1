package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Static configuration file names under the static directory.
const (
	SSPInfoFile       = "ssp_info.json"
	SSPPlacementsFile = "ssp_placements.json"
	DSPPlacementsFile = "dsp_placements.json"
	DemandsFile       = "demands.json"
)

// FileSource loads the catalog from static JSON files. In non-strict mode a
// missing or malformed file yields an empty collection, matching the behavior
// of the bundled defaults; strict mode turns those into load errors so the
// boot path can refuse to start.
type FileSource struct {
	sspInfoPath       string
	sspPlacementsPath string
	dspPlacementsPath string
	demandsPath       string
	strict            bool
}

// NewFileSource builds a source over the conventional file layout in dir.
func NewFileSource(dir string, strict bool) *FileSource {
	return &FileSource{
		sspInfoPath:       filepath.Join(dir, SSPInfoFile),
		sspPlacementsPath: filepath.Join(dir, SSPPlacementsFile),
		dspPlacementsPath: filepath.Join(dir, DSPPlacementsFile),
		demandsPath:       filepath.Join(dir, DemandsFile),
		strict:            strict,
	}
}

// Name identifies the source in logs.
func (s *FileSource) Name() string { return "file" }

// Load reads all four files. The demands file is optional: when it does not
// exist the snapshot carries nil demands, which leaves the current demand
// generation (synthetic or otherwise) in place.
func (s *FileSource) Load(_ context.Context) (Snapshot, error) {
	var snap Snapshot

	ssps, err := readJSONFile[SSP](s.sspInfoPath, s.strict)
	if err != nil {
		return Snapshot{}, err
	}
	snap.SSPs = ssps

	sspPl, err := readJSONFile[SSPPlacement](s.sspPlacementsPath, s.strict)
	if err != nil {
		return Snapshot{}, err
	}
	snap.SSPPlacements = sspPl

	dspPl, err := readJSONFile[DSPPlacement](s.dspPlacementsPath, s.strict)
	if err != nil {
		return Snapshot{}, err
	}
	snap.DSPPlacements = dspPl

	if _, statErr := os.Stat(s.demandsPath); statErr == nil {
		demands, err := readJSONFile[Demand](s.demandsPath, s.strict)
		if err != nil {
			return Snapshot{}, err
		}
		if demands == nil {
			demands = []Demand{}
		}
		snap.Demands = demands
	}

	return snap, nil
}

func readJSONFile[T any](path string, strict bool) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if strict {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return []T{}, nil
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		if strict {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return []T{}, nil
	}
	return out, nil
}
