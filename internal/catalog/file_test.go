package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeStaticFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestFileSourceLoad(t *testing.T) {
	dir := t.TempDir()
	writeStaticFile(t, dir, SSPInfoFile, `[{"id":1,"uuid":"u-1","name":"ssp-one","qps":100}]`)
	writeStaticFile(t, dir, SSPPlacementsFile, `[{"ssp_id":1,"ssp_uuid":"u-1","placement_id":"p-1","ad_type":2,"update_time":1700000000,"status":1}]`)
	writeStaticFile(t, dir, DSPPlacementsFile, `[{"dsp_id":1,"dsp_uuid":"d-1","tag_id":"t-1","custom_ad_type":"banner","profit_rate":0.2,"auth":"{}","update_time":1700000000,"status":1}]`)

	snap, err := NewFileSource(dir, false).Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(snap.SSPs) != 1 || snap.SSPs[0].UUID != "u-1" {
		t.Errorf("unexpected ssps: %+v", snap.SSPs)
	}
	if len(snap.SSPPlacements) != 1 || snap.SSPPlacements[0].AdType != AdTypeBanner {
		t.Errorf("unexpected ssp placements: %+v", snap.SSPPlacements)
	}
	if len(snap.DSPPlacements) != 1 || snap.DSPPlacements[0].ProfitRate != 0.2 {
		t.Errorf("unexpected dsp placements: %+v", snap.DSPPlacements)
	}
	if snap.Demands != nil {
		t.Errorf("expected nil demands without a demands file, got %+v", snap.Demands)
	}
}

func TestFileSourceOptionalDemands(t *testing.T) {
	dir := t.TempDir()
	writeStaticFile(t, dir, DemandsFile, `[{"id":1,"name":"alpha_dsp","url":"http://dsp.test/bid","status":true,"timeout":300}]`)

	snap, err := NewFileSource(dir, false).Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snap.Demands) != 1 || snap.Demands[0].TimeoutMs != 300 {
		t.Errorf("unexpected demands: %+v", snap.Demands)
	}
}

func TestFileSourceMissingFilesNonStrict(t *testing.T) {
	snap, err := NewFileSource(t.TempDir(), false).Load(context.Background())
	if err != nil {
		t.Fatalf("non-strict load must not fail on missing files: %v", err)
	}
	if len(snap.SSPs) != 0 || len(snap.SSPPlacements) != 0 || len(snap.DSPPlacements) != 0 {
		t.Errorf("expected empty collections, got %+v", snap)
	}
}

func TestFileSourceMissingFilesStrict(t *testing.T) {
	if _, err := NewFileSource(t.TempDir(), true).Load(context.Background()); err == nil {
		t.Fatal("strict load must fail on missing files")
	}
}

func TestFileSourceMalformed(t *testing.T) {
	dir := t.TempDir()
	writeStaticFile(t, dir, SSPInfoFile, `{not json`)
	writeStaticFile(t, dir, SSPPlacementsFile, `[]`)
	writeStaticFile(t, dir, DSPPlacementsFile, `[]`)

	snap, err := NewFileSource(dir, false).Load(context.Background())
	if err != nil {
		t.Fatalf("non-strict load must not fail on malformed json: %v", err)
	}
	if len(snap.SSPs) != 0 {
		t.Errorf("malformed file should load as empty, got %+v", snap.SSPs)
	}

	if _, err := NewFileSource(dir, true).Load(context.Background()); err == nil {
		t.Fatal("strict load must fail on malformed json")
	}
}
