package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Field describes one user-editable setting as text.
type Field struct {
	Key   string
	Label string
	get   func(*Config) string
	set   func(*Config, string) error
}

// Get formats the field's current value.
func (f Field) Get(c *Config) string { return f.get(c) }

// Set parses s into c.
func (f Field) Set(c *Config, s string) error {
	if err := f.set(c, strings.TrimSpace(s)); err != nil {
		return fmt.Errorf("%s: %w", f.Label, err)
	}
	return nil
}

func intField(key, label string, p func(*Config) *int) Field {
	return Field{Key: key, Label: label,
		get: func(c *Config) string { return strconv.Itoa(*p(c)) },
		set: func(c *Config, s string) error {
			v, err := strconv.Atoi(s)
			if err == nil {
				*p(c) = v
			}
			return err
		},
	}
}

func floatField(key, label string, p func(*Config) *float64) Field {
	return Field{Key: key, Label: label,
		get: func(c *Config) string { return strconv.FormatFloat(*p(c), 'f', -1, 64) },
		set: func(c *Config, s string) error {
			v, err := strconv.ParseFloat(s, 64)
			if err == nil {
				*p(c) = v
			}
			return err
		},
	}
}

// EditableFields lists the settings exposed in the config panel, in display
// order.
func EditableFields() []Field {
	return []Field{
		intField("maxFrameWidth", "Max Frame Width", func(c *Config) *int { return &c.MaxFrameWidth }),
		intField("maxFeatures", "Max Features", func(c *Config) *int { return &c.MaxFeatures }),
		intField("fastThreshold", "FAST Threshold", func(c *Config) *int { return &c.FastThreshold }),
		floatField("claheClipLimit", "CLAHE Clip Limit", func(c *Config) *float64 { return &c.ClaheClipLimit }),
		floatField("ratioThreshold", "Ratio Threshold", func(c *Config) *float64 { return &c.RatioThreshold }),
		intField("minGoodMatches", "Min Good Matches", func(c *Config) *int { return &c.MinGoodMatches }),
		intField("minInliers", "Min Inliers", func(c *Config) *int { return &c.MinInliers }),
		floatField("ransacReproj", "RANSAC Reproj Threshold", func(c *Config) *float64 { return &c.RansacReprojThreshold }),
		intField("stabilityFrames", "Stability Frames", func(c *Config) *int { return &c.StabilityFrames }),
		intField("tickIntervalMs", "Tick Interval (ms)", func(c *Config) *int { return &c.TickIntervalMs }),
		intField("assetCacheSize", "Asset Cache Size", func(c *Config) *int { return &c.AssetCacheSize }),
		intField("fetchTimeout", "Fetch Timeout (s)", func(c *Config) *int { return &c.FetchTimeoutSeconds }),
		floatField("modelRotation", "Model Rotation (deg/s)", func(c *Config) *float64 { return &c.ModelRotationDegPerSec }),
		{Key: "playerCommand", Label: "Player Command",
			get: func(c *Config) string { return c.PlayerCommand },
			set: func(c *Config, s string) error {
				if s == "" {
					return fmt.Errorf("empty command")
				}
				c.PlayerCommand = s
				return nil
			},
		},
	}
}

// ApplyFields copies cfg, sets every field present in values and validates
// the result. Unparseable values are reported and leave cfg untouched.
func ApplyFields(cfg *Config, values map[string]string) (*Config, error) {
	next := *cfg
	for _, f := range EditableFields() {
		s, ok := values[f.Key]
		if !ok {
			continue
		}
		if err := f.Set(&next, s); err != nil {
			return nil, err
		}
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}
	return &next, nil
}
