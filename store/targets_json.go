package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/soocke/marker-lens-go/domain/recognition"
)

type targetFile struct {
	Targets []TargetRecord `json:"targets"`
}

// LoadTargetsJSON reads target records from a JSON file holding either an
// array or an object with a "targets" array. Relative image and content
// paths are resolved against the file's directory.
func LoadTargetsJSON(path string) ([]TargetRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("store: read targets: %w", err)
	}
	return ParseTargetsJSON(data, filepath.Dir(path))
}

// ParseTargetsJSON decodes target records, resolving relative locators
// against baseDir when it is not empty.
func ParseTargetsJSON(data []byte, baseDir string) ([]TargetRecord, error) {
	var recs []TargetRecord
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &recs); err != nil {
			return nil, fmt.Errorf("store: decode targets: %w", err)
		}
	} else {
		var f targetFile
		if err := json.Unmarshal(trimmed, &f); err != nil {
			return nil, fmt.Errorf("store: decode targets: %w", err)
		}
		recs = f.Targets
	}
	for i := range recs {
		r := &recs[i]
		ct, err := recognition.ParseContentType(string(r.ContentType))
		if err != nil {
			return nil, fmt.Errorf("store: target %s: %w", r.ID, err)
		}
		r.ContentType = ct
		if err := r.Validate(); err != nil {
			return nil, err
		}
		r.MarkerImageURL = resolve(baseDir, r.MarkerImageURL)
		if ct.NeedsDownload() {
			r.ContentURL = resolve(baseDir, r.ContentURL)
		}
	}
	return recs, nil
}

func resolve(baseDir, loc string) string {
	if baseDir == "" || loc == "" || filepath.IsAbs(loc) {
		return loc
	}
	// single letter schemes are Windows drive letters
	if u, err := url.Parse(loc); err == nil && len(u.Scheme) > 1 {
		return loc
	}
	return filepath.Join(baseDir, loc)
}
