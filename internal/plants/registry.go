package plants

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/hellas-grid-monitor/internal/common"
	"github.com/i474232898/hellas-grid-monitor/internal/grid"
	"github.com/i474232898/hellas-grid-monitor/internal/weather"
)

//go:embed plants.yaml
var defaultRegistry []byte

// Kind is the plant type as written in the registry file.
type Kind string

const (
	KindLignite         Kind = "lignite"
	KindNaturalGas      Kind = "natural_gas"
	KindHydroReservoir  Kind = "hydro_reservoir"
	KindHydroRunOfRiver Kind = "hydro_run_of_river"
	KindWindOnshore     Kind = "wind_onshore"
	KindSolar           Kind = "solar"
	KindBiomass         Kind = "biomass"
	KindGeothermal      Kind = "geothermal"
)

var kindSources = map[Kind]grid.SourceType{
	KindLignite:         grid.SourceLignite,
	KindNaturalGas:      grid.SourceNaturalGas,
	KindHydroReservoir:  grid.SourceHydroReservoir,
	KindHydroRunOfRiver: grid.SourceHydroRunOfRiver,
	KindWindOnshore:     grid.SourceWindOnshore,
	KindSolar:           grid.SourceSolar,
	KindBiomass:         grid.SourceBiomass,
	KindGeothermal:      grid.SourceGeothermal,
}

// Source returns the generation source type of the kind.
func (k Kind) Source() grid.SourceType {
	return kindSources[k]
}

// Plant is a static power plant record.
type Plant struct {
	Name        string             `yaml:"name" json:"name" validate:"required"`
	Kind        Kind               `yaml:"type" json:"type" validate:"required,oneof=lignite natural_gas hydro_reservoir hydro_run_of_river wind_onshore solar biomass geothermal"`
	Source      grid.SourceType    `yaml:"-" json:"source"`
	Operator    string             `yaml:"operator" json:"operator"`
	CapacityMW  float64            `yaml:"capacityMW" json:"capacityMW" validate:"gt=0"`
	Coordinate  weather.Coordinate `yaml:"coordinate" json:"coordinate"`
	Description string             `yaml:"description" json:"description"`
}

// Site returns the plant as a weather evaluation site.
func (p Plant) Site() weather.Site {
	return weather.Site{Name: p.Name, Source: p.Source, Coordinate: p.Coordinate}
}

// Registry is the immutable set of known plants, in file order.
type Registry struct {
	plants []Plant
	byName map[string]int
}

// Default returns the embedded registry of major Greek plants.
func Default() (*Registry, error) {
	return Load(bytes.NewReader(defaultRegistry))
}

// LoadFile reads a registry from a YAML file.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open plant registry: %v", common.ErrConfiguration, err)
	}
	defer f.Close()

	return Load(f)
}

// Load decodes and validates a YAML registry.
func Load(r io.Reader) (*Registry, error) {
	var doc struct {
		Plants []Plant `yaml:"plants"`
	}
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode plant registry: %v", common.ErrConfiguration, err)
	}
	if len(doc.Plants) == 0 {
		return nil, fmt.Errorf("%w: plant registry is empty", common.ErrConfiguration)
	}

	validate := validator.New()
	reg := &Registry{
		plants: make([]Plant, 0, len(doc.Plants)),
		byName: make(map[string]int, len(doc.Plants)),
	}
	for i, p := range doc.Plants {
		if err := validate.Struct(p); err != nil {
			return nil, fmt.Errorf("%w: plant #%d (%q): %v", common.ErrConfiguration, i+1, p.Name, err)
		}
		if _, dup := reg.byName[p.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate plant %q", common.ErrConfiguration, p.Name)
		}
		p.Source = p.Kind.Source()
		reg.byName[p.Name] = len(reg.plants)
		reg.plants = append(reg.plants, p)
	}
	return reg, nil
}

// All returns a copy of every plant.
func (r *Registry) All() []Plant {
	out := make([]Plant, len(r.plants))
	copy(out, r.plants)
	return out
}

// ByName looks a plant up by its exact name.
func (r *Registry) ByName(name string) (Plant, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Plant{}, false
	}
	return r.plants[i], true
}

// Sites returns every plant as a weather evaluation site.
func (r *Registry) Sites() []weather.Site {
	out := make([]weather.Site, 0, len(r.plants))
	for _, p := range r.plants {
		out = append(out, p.Site())
	}
	return out
}

// Len returns the number of plants.
func (r *Registry) Len() int {
	return len(r.plants)
}
