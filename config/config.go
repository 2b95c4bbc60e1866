package config

import (
	"encoding/json"
	"os"
	"time"
)

// Config holds runtime configuration for recognition, scanning and app behavior.
// Fields may be loaded from a JSON file and overridden by command-line flags.
type Config struct {
	Debug bool `json:"debug"`

	// Frame preprocessing / feature extraction
	MaxFrameWidth  int     `json:"max_frame_width"`
	MaxFeatures    int     `json:"max_features"`
	FastThreshold  int     `json:"fast_threshold"`
	ClaheClipLimit float64 `json:"clahe_clip_limit"`
	ClaheTiles     int     `json:"clahe_tiles"`

	// Matching
	RatioThreshold        float64 `json:"ratio_threshold"`
	MinGoodMatches        int     `json:"min_good_matches"`
	MinInliers            int     `json:"min_inliers"`
	RansacReprojThreshold float64 `json:"ransac_reproj_threshold"`
	RansacMaxIters        int     `json:"ransac_max_iters"`

	// Stabilization and loop cadence
	StabilityFrames int `json:"stability_frames"`
	TickIntervalMs  int `json:"tick_interval_ms"`

	// Assets and overlays
	AssetCacheSize         int     `json:"asset_cache_size"`
	FetchTimeoutSeconds    int     `json:"fetch_timeout_seconds"`
	ModelRotationDegPerSec float64 `json:"model_rotation_deg_per_sec"`
	PlayerCommand          string  `json:"player_command"`

	// Storage
	DatabasePath string `json:"database_path"`
	TargetsPath  string `json:"targets_path"`

	// Capture rectangle (screen coordinates); zero size means full screen.
	SelectionX int `json:"selection_x"`
	SelectionY int `json:"selection_y"`
	SelectionW int `json:"selection_w"`
	SelectionH int `json:"selection_h"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		Debug:                  false,
		MaxFrameWidth:          640,
		MaxFeatures:            800,
		FastThreshold:          20,
		ClaheClipLimit:         2.0,
		ClaheTiles:             8,
		RatioThreshold:         0.80,
		MinGoodMatches:         8,
		MinInliers:             8,
		RansacReprojThreshold:  5.0,
		RansacMaxIters:         2000,
		StabilityFrames:        3,
		TickIntervalMs:         150,
		AssetCacheSize:         32,
		FetchTimeoutSeconds:    30,
		ModelRotationDegPerSec: 20,
		PlayerCommand:          "ffplay",
		DatabasePath:           "markerlens.db",
		TargetsPath:            "",
	}
}

// Validate clamps/normalizes values to safe ranges.
func (c *Config) Validate() error {
	d := DefaultConfig()
	if c.MaxFrameWidth < 64 {
		c.MaxFrameWidth = d.MaxFrameWidth
	}
	if c.MaxFeatures <= 0 {
		c.MaxFeatures = d.MaxFeatures
	}
	if c.FastThreshold <= 0 || c.FastThreshold > 255 {
		c.FastThreshold = d.FastThreshold
	}
	if c.ClaheClipLimit <= 0 {
		c.ClaheClipLimit = d.ClaheClipLimit
	}
	if c.ClaheTiles <= 0 || c.ClaheTiles > 64 {
		c.ClaheTiles = d.ClaheTiles
	}
	if c.RatioThreshold <= 0 || c.RatioThreshold > 1 {
		c.RatioThreshold = d.RatioThreshold
	}
	if c.MinGoodMatches < 4 {
		// a homography needs at least four correspondences
		c.MinGoodMatches = 4
	}
	if c.MinInliers < 4 {
		c.MinInliers = 4
	}
	if c.RansacReprojThreshold <= 0 {
		c.RansacReprojThreshold = d.RansacReprojThreshold
	}
	if c.RansacMaxIters <= 0 {
		c.RansacMaxIters = d.RansacMaxIters
	}
	if c.StabilityFrames <= 0 {
		c.StabilityFrames = d.StabilityFrames
	}
	if c.TickIntervalMs < 0 {
		c.TickIntervalMs = d.TickIntervalMs
	}
	if c.AssetCacheSize <= 0 {
		c.AssetCacheSize = d.AssetCacheSize
	}
	if c.FetchTimeoutSeconds <= 0 {
		c.FetchTimeoutSeconds = d.FetchTimeoutSeconds
	}
	if c.ModelRotationDegPerSec < 0 {
		c.ModelRotationDegPerSec = d.ModelRotationDegPerSec
	}
	if c.PlayerCommand == "" {
		c.PlayerCommand = d.PlayerCommand
	}
	if c.SelectionW < 0 || c.SelectionH < 0 {
		c.SelectionW, c.SelectionH = 0, 0
	}
	return nil
}

// TickInterval returns the minimum interval between processed frames.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMs) * time.Millisecond
}

// FetchTimeout returns the per-request asset fetch timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// Load attempts to read configuration from the given JSON file path. If the file does not
// exist it returns DefaultConfig(). On JSON error it returns defaults with the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return DefaultConfig(), err
	}
	_ = cfg.Validate()
	return cfg, nil
}

// Save writes the configuration to the given path in JSON format.
func (c *Config) Save(path string) error {
	_ = c.Validate()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}
