package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/biter777/countries"
	"gopkg.in/yaml.v3"

	"latencyglobe/internal/model"
	"latencyglobe/internal/validation"
)

//go:embed default.yaml
var defaultYAML []byte

// File is the on-disk catalog layout.
type File struct {
	Exchanges []ExchangeEntry `yaml:"exchanges" validate:"dive"`
	Regions   []RegionEntry   `yaml:"regions" validate:"dive"`
}

// ExchangeEntry is one exchange in the catalog file.
type ExchangeEntry struct {
	ID         string  `yaml:"id" validate:"required"`
	Name       string  `yaml:"name" validate:"required"`
	City       string  `yaml:"city"`
	Country    string  `yaml:"country" validate:"required"`
	Lat        float64 `yaml:"lat" validate:"gte=-90,lte=90"`
	Lng        float64 `yaml:"lng" validate:"gte=-180,lte=180"`
	Provider   string  `yaml:"provider" validate:"required"`
	RegionCode string  `yaml:"region_code" validate:"required"`
}

// RegionEntry is one cloud region in the catalog file.
type RegionEntry struct {
	ID         string  `yaml:"id" validate:"required"`
	Name       string  `yaml:"name" validate:"required"`
	Provider   string  `yaml:"provider" validate:"required"`
	RegionCode string  `yaml:"region_code" validate:"required"`
	Lat        float64 `yaml:"lat" validate:"gte=-90,lte=90"`
	Lng        float64 `yaml:"lng" validate:"gte=-180,lte=180"`
}

// Catalog is the immutable set of exchanges and regions.
type Catalog struct {
	exchanges []model.Exchange
	regions   []model.Region
	providers map[string]model.Provider
}

// Pair is an exchange together with the region it is hosted in.
type Pair struct {
	Exchange model.Exchange
	Region   model.Region
}

// Node is the search view of an exchange or region.
type Node struct {
	ID       string         `json:"id"`
	Kind     string         `json:"kind"` // exchange|region
	Name     string         `json:"name"`
	City     string         `json:"city,omitempty"`
	Country  string         `json:"country,omitempty"`
	Provider model.Provider `json:"provider"`
	Region   string         `json:"regionCode"`
	Lat      float64        `json:"lat"`
	Lng      float64        `json:"lng"`
}

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	return Parse(defaultYAML)
}

// DefaultFile returns the raw built-in catalog.
func DefaultFile() []byte {
	out := make([]byte, len(defaultYAML))
	copy(out, defaultYAML)
	return out
}

// Load reads a catalog from path. An empty path loads the built-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cat, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return cat, nil
}

// Save writes the catalog file to disk.
func Save(path string, f File) error {
	data, err := yaml.Marshal(&f)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	f, err := DecodeFile(data)
	if err != nil {
		return nil, err
	}
	return New(f)
}

// DecodeFile decodes catalog YAML without validating it.
func DecodeFile(data []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, err
	}
	return f, nil
}

// New builds a catalog from a decoded file, normalizing providers and
// countries. Ids must be unique across exchanges and regions.
func New(f File) (*Catalog, error) {
	if err := validation.Struct(f); err != nil {
		return nil, err
	}

	cat := &Catalog{providers: make(map[string]model.Provider)}
	for _, e := range f.Exchanges {
		provider, err := model.ParseProvider(e.Provider)
		if err != nil {
			return nil, fmt.Errorf("exchange %s: %w", e.ID, err)
		}
		country := countries.ByName(e.Country)
		if country == countries.Unknown {
			return nil, fmt.Errorf("exchange %s: unknown country %q", e.ID, e.Country)
		}
		if err := cat.claim(e.ID, provider); err != nil {
			return nil, err
		}
		cat.exchanges = append(cat.exchanges, model.Exchange{
			ID:         e.ID,
			Name:       e.Name,
			City:       e.City,
			Country:    country.Alpha2(),
			Coord:      model.Coord{Lat: e.Lat, Lng: e.Lng},
			Provider:   provider,
			RegionCode: e.RegionCode,
		})
	}
	for _, r := range f.Regions {
		provider, err := model.ParseProvider(r.Provider)
		if err != nil {
			return nil, fmt.Errorf("region %s: %w", r.ID, err)
		}
		if err := cat.claim(r.ID, provider); err != nil {
			return nil, err
		}
		cat.regions = append(cat.regions, model.Region{
			ID:         r.ID,
			Name:       r.Name,
			Provider:   provider,
			RegionCode: r.RegionCode,
			Coord:      model.Coord{Lat: r.Lat, Lng: r.Lng},
		})
	}
	return cat, nil
}

func (c *Catalog) claim(id string, p model.Provider) error {
	if _, dup := c.providers[id]; dup {
		return fmt.Errorf("duplicate node id %q", id)
	}
	c.providers[id] = p
	return nil
}

// Exchanges returns a copy of all exchanges.
func (c *Catalog) Exchanges() []model.Exchange {
	return append([]model.Exchange(nil), c.exchanges...)
}

// Regions returns a copy of all regions.
func (c *Catalog) Regions() []model.Region {
	return append([]model.Region(nil), c.regions...)
}

// ProviderOf returns the provider owning a node id.
func (c *Catalog) ProviderOf(id string) (model.Provider, bool) {
	p, ok := c.providers[id]
	return p, ok
}

// Exchange looks up an exchange by id.
func (c *Catalog) Exchange(id string) (model.Exchange, bool) {
	for _, e := range c.exchanges {
		if e.ID == id {
			return e, true
		}
	}
	return model.Exchange{}, false
}

// Pairs matches every exchange with the first region sharing its region
// code. Exchanges without a matching region are left out.
func (c *Catalog) Pairs() []Pair {
	byCode := make(map[string]model.Region, len(c.regions))
	for _, r := range c.regions {
		if _, seen := byCode[r.RegionCode]; !seen {
			byCode[r.RegionCode] = r
		}
	}
	pairs := make([]Pair, 0, len(c.exchanges))
	for _, e := range c.exchanges {
		r, ok := byCode[e.RegionCode]
		if !ok {
			continue
		}
		pairs = append(pairs, Pair{Exchange: e, Region: r})
	}
	return pairs
}

// Nodes returns exchanges then regions, optionally narrowed by a
// case-insensitive substring match on name, city, country or id.
func (c *Catalog) Nodes(query string) []Node {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]Node, 0, len(c.exchanges)+len(c.regions))
	for _, e := range c.exchanges {
		n := Node{
			ID:       e.ID,
			Kind:     "exchange",
			Name:     e.Name,
			City:     e.City,
			Country:  e.Country,
			Provider: e.Provider,
			Region:   e.RegionCode,
			Lat:      e.Coord.Lat,
			Lng:      e.Coord.Lng,
		}
		if matches(q, n.ID, n.Name, n.City, n.Country, countries.ByName(n.Country).String()) {
			out = append(out, n)
		}
	}
	for _, r := range c.regions {
		n := Node{
			ID:       r.ID,
			Kind:     "region",
			Name:     r.Name,
			Provider: r.Provider,
			Region:   r.RegionCode,
			Lat:      r.Coord.Lat,
			Lng:      r.Coord.Lng,
		}
		if matches(q, n.ID, n.Name, n.Region) {
			out = append(out, n)
		}
	}
	return out
}

func matches(q string, fields ...string) bool {
	if q == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}
