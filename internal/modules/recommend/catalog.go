package recommend

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/vibelist-backend/internal/clients/search"
	"github.com/yungbote/vibelist-backend/internal/domain/emotion"
	"github.com/yungbote/vibelist-backend/internal/domain/track"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Range is a closed interval.
type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

func (r Range) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

// Profile holds the acceptable interval of every audio feature for one label.
type Profile map[string]Range

// Ranges returns the profile as search filters in track.Features order.
func (p Profile) Ranges() []search.FieldRange {
	out := make([]search.FieldRange, 0, len(track.Features))
	for _, f := range track.Features {
		if r, ok := p[f]; ok {
			out = append(out, search.FieldRange{Field: f, Min: r.Min, Max: r.Max})
		}
	}
	return out
}

// Matches reports whether every feature of c falls inside the profile.
func (p Profile) Matches(c track.Candidate) bool {
	for f, r := range p {
		v, ok := c.Feature(f)
		if !ok || !r.Contains(v) {
			return false
		}
	}
	return true
}

func (p Profile) clone() Profile {
	out := make(Profile, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Catalog maps each emotion label to its feature range profile. It is built
// once at startup and never mutated.
type Catalog struct {
	profiles map[emotion.Label]Profile
}

// LoadCatalog reads the catalog from path, or the embedded default when path
// is empty.
func LoadCatalog(path string) (*Catalog, error) {
	raw := defaultCatalog
	if p := strings.TrimSpace(path); p != "" {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", p, err)
		}
		raw = b
	}
	return ParseCatalog(raw)
}

// ParseCatalog decodes and validates a YAML catalog. Every label must be
// present with all nine features and min <= max.
func ParseCatalog(raw []byte) (*Catalog, error) {
	var doc map[string]map[string]Range
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	profiles := make(map[emotion.Label]Profile, len(doc))
	for name, feats := range doc {
		label, err := emotion.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
		p := make(Profile, len(feats))
		for f, r := range feats {
			if _, ok := (track.Candidate{}).Feature(f); !ok {
				return nil, fmt.Errorf("catalog %s: unknown feature %q", label, f)
			}
			if r.Min > r.Max {
				return nil, fmt.Errorf("catalog %s.%s: min %v > max %v", label, f, r.Min, r.Max)
			}
			p[f] = r
		}
		profiles[label] = p
	}
	for _, label := range emotion.All() {
		p, ok := profiles[label]
		if !ok {
			return nil, fmt.Errorf("catalog: missing label %s", label)
		}
		for _, f := range track.Features {
			if _, ok := p[f]; !ok {
				return nil, fmt.Errorf("catalog %s: missing feature %s", label, f)
			}
		}
	}
	return &Catalog{profiles: profiles}, nil
}

// RangeFor returns a copy of the label's profile.
func (c *Catalog) RangeFor(label emotion.Label) (Profile, error) {
	p, ok := c.profiles[label]
	if !ok {
		return nil, fmt.Errorf("no feature ranges for %q", label)
	}
	return p.clone(), nil
}
