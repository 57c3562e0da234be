// Package routing maps an issue's category and location to the government
// unit responsible for it. Jurisdictions are external configuration, loaded
// from a YAML table of units with a category list and a bounding box; the
// core only owns the lookup contract.
package routing

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"emwananchi-core/models"

	"gopkg.in/yaml.v3"
)

// ErrNoJurisdiction is returned when no configured unit covers the
// location/category combination. Callers surface it to an operator rather
// than dropping the report.
var ErrNoJurisdiction = errors.New("no jurisdiction covers this report")

// Unit is one government unit as configured, e.g. a county department.
type Unit struct {
	ID         string                  `yaml:"id"`
	Name       string                  `yaml:"name"`
	Categories []models.ReportCategory `yaml:"categories"`
	Bounds     Bounds                  `yaml:"bounds"`
}

// Bounds is the unit's jurisdiction rectangle in degrees.
type Bounds struct {
	MinLat float64 `yaml:"minLat"`
	MaxLat float64 `yaml:"maxLat"`
	MinLng float64 `yaml:"minLng"`
	MaxLng float64 `yaml:"maxLng"`
}

func (b Bounds) contains(p models.GeoPoint) bool {
	return p.Latitude >= b.MinLat && p.Latitude <= b.MaxLat &&
		p.Longitude >= b.MinLng && p.Longitude <= b.MaxLng
}

// Resolver answers route lookups against the loaded jurisdiction table.
// The table is load-once with explicit reload, never mutated in place.
type Resolver struct {
	mu    sync.RWMutex
	units []Unit
}

func NewResolver(units []Unit) *Resolver {
	return &Resolver{units: units}
}

// LoadFile builds a resolver from a YAML jurisdiction file.
func LoadFile(path string) (*Resolver, error) {
	r := &Resolver{}
	if err := r.Reload(path); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload replaces the table from the file, keeping the old table on error.
func (r *Resolver) Reload(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading jurisdictions: %w", err)
	}

	var doc struct {
		Units []Unit `yaml:"units"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing jurisdictions: %w", err)
	}
	if len(doc.Units) == 0 {
		return fmt.Errorf("jurisdiction file %s defines no units", path)
	}

	r.mu.Lock()
	r.units = doc.Units
	r.mu.Unlock()
	return nil
}

// Route returns the id of the first configured unit whose bounds contain
// the location and whose category list includes the category.
func (r *Resolver) Route(category models.ReportCategory, loc models.GeoPoint) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.units {
		if !u.Bounds.contains(loc) {
			continue
		}
		for _, c := range u.Categories {
			if c == category {
				return u.ID, nil
			}
		}
	}
	return "", fmt.Errorf("%w: category %s at (%f, %f)", ErrNoJurisdiction, category, loc.Latitude, loc.Longitude)
}
