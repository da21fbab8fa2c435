package seasonal

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// defaultUplifts are the category uplift fractions per event type used when
// no catalog file overrides them.
var defaultUplifts = map[string]map[string]float64{
	"black_friday": {
		"electronics": 0.8,
		"fashion":     0.5,
		"home":        0.3,
	},
	"christmas": {
		"toys":        1.0,
		"electronics": 0.6,
		"food":        0.4,
	},
	"summer_sales": {
		"fashion": 0.6,
		"garden":  0.5,
		"sports":  0.4,
	},
	"back_to_school": {
		"stationery":  1.0,
		"electronics": 0.3,
		"fashion":     0.3,
	},
}

// Catalog resolves category uplifts by event type.
type Catalog struct {
	mu      sync.RWMutex
	uplifts map[string]map[string]float64
}

type catalogFile struct {
	Events map[string]map[string]float64 `yaml:"events"`
}

// NewCatalog returns the built-in catalog.
func NewCatalog() *Catalog {
	c := &Catalog{uplifts: make(map[string]map[string]float64, len(defaultUplifts))}
	c.merge(defaultUplifts)
	return c
}

// LoadCatalog starts from the built-in catalog and overlays the YAML file at
// path, event type by event type. An empty path returns the defaults.
func LoadCatalog(path string) (*Catalog, error) {
	c := NewCatalog()
	if path == "" {
		return c, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read uplift catalog: %w", err)
	}
	if err := c.Overlay(raw); err != nil {
		return nil, err
	}
	return c, nil
}

// Overlay replaces the uplifts of every event type present in raw.
func (c *Catalog) Overlay(raw []byte) error {
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse uplift catalog: %w", err)
	}
	for eventType, uplifts := range f.Events {
		for category, uplift := range uplifts {
			if uplift < 0 {
				return fmt.Errorf("uplift catalog: %s/%s has negative uplift %v", eventType, category, uplift)
			}
		}
	}
	c.merge(f.Events)
	return nil
}

func (c *Catalog) merge(events map[string]map[string]float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for eventType, uplifts := range events {
		copied := make(map[string]float64, len(uplifts))
		for category, uplift := range uplifts {
			copied[strings.ToLower(strings.TrimSpace(category))] = uplift
		}
		c.uplifts[normalizeType(eventType)] = copied
	}
}

// UpliftsFor returns a copy of the uplifts for eventType; unknown types
// yield an empty map.
func (c *Catalog) UpliftsFor(eventType string) map[string]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	src := c.uplifts[normalizeType(eventType)]
	out := make(map[string]float64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// Types lists the known event types.
func (c *Catalog) Types() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.uplifts))
	for t := range c.uplifts {
		out = append(out, t)
	}
	return out
}

func normalizeType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(t)
}
