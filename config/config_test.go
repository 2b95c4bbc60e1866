package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig_Documented(t *testing.T) {
	c := DefaultConfig()
	if c.MaxFrameWidth != 640 || c.MaxFeatures != 800 {
		t.Fatalf("unexpected frame defaults: width=%d features=%d", c.MaxFrameWidth, c.MaxFeatures)
	}
	if c.RatioThreshold != 0.8 || c.MinGoodMatches != 8 || c.MinInliers != 8 {
		t.Fatalf("unexpected match defaults: %+v", c)
	}
	if c.StabilityFrames != 3 || c.TickInterval() != 150*time.Millisecond {
		t.Fatalf("unexpected loop defaults: frames=%d tick=%v", c.StabilityFrames, c.TickInterval())
	}
}

func TestValidate_ClampsOutOfRange(t *testing.T) {
	c := &Config{RatioThreshold: 3, MinGoodMatches: 1, MinInliers: 2, StabilityFrames: -1, MaxFrameWidth: 10}
	_ = c.Validate()
	if c.RatioThreshold != 0.8 {
		t.Fatalf("ratio not clamped: %v", c.RatioThreshold)
	}
	if c.MinGoodMatches != 4 || c.MinInliers != 4 {
		t.Fatalf("minimums not clamped: good=%d inliers=%d", c.MinGoodMatches, c.MinInliers)
	}
	if c.StabilityFrames != 3 || c.MaxFrameWidth != 640 {
		t.Fatalf("defaults not restored: frames=%d width=%d", c.StabilityFrames, c.MaxFrameWidth)
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.MaxFeatures != 800 {
		t.Fatalf("expected defaults, got %+v", c)
	}
}

func TestSaveLoad_PreservesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	c := DefaultConfig()
	c.StabilityFrames = 5
	c.TickIntervalMs = 90
	if err := c.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.StabilityFrames != 5 || got.TickIntervalMs != 90 {
		t.Fatalf("overrides lost: %+v", got)
	}
}

func TestLoad_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err == nil {
		t.Fatalf("expected decode error")
	}
	if c == nil || c.MinInliers != 8 {
		t.Fatalf("expected defaults alongside error")
	}
}

func TestApplyFields(t *testing.T) {
	cfg := DefaultConfig()
	values := map[string]string{}
	for _, f := range EditableFields() {
		values[f.Key] = f.Get(cfg)
	}
	same, err := ApplyFields(cfg, values)
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if *same != *cfg {
		t.Fatalf("round trip changed config: %+v", same)
	}

	next, err := ApplyFields(cfg, map[string]string{"stabilityFrames": " 5 ", "ratioThreshold": "0.7", "playerCommand": "mpv"})
	if err != nil {
		t.Fatal(err)
	}
	if next.StabilityFrames != 5 || next.RatioThreshold != 0.7 || next.PlayerCommand != "mpv" {
		t.Fatalf("fields not applied: %+v", next)
	}
	if cfg.StabilityFrames != 3 {
		t.Fatal("ApplyFields modified its input")
	}

	if _, err := ApplyFields(cfg, map[string]string{"minInliers": "many"}); err == nil {
		t.Fatal("expected parse error")
	}
	clamped, err := ApplyFields(cfg, map[string]string{"minInliers": "2"})
	if err != nil || clamped.MinInliers != 4 {
		t.Fatalf("expected clamp to 4, got %v %v", clamped, err)
	}
}
