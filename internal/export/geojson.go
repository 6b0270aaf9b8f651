package export

import (
	geojson "github.com/paulmach/go.geojson"

	"latencyglobe/internal/catalog"
	"latencyglobe/internal/model"
)

var providerColor = map[model.Provider]string{
	model.ProviderAWS:   "#22c55e",
	model.ProviderGCP:   "#3b82f6",
	model.ProviderAzure: "#eab308",
}

// LatencyColor buckets a latency into the globe's green/yellow/red scale.
func LatencyColor(ms float64) string {
	switch {
	case ms < 50:
		return "#22c55e"
	case ms < 120:
		return "#eab308"
	default:
		return "#ef4444"
	}
}

// GlobeOptions selects what the globe layer contains.
type GlobeOptions struct {
	Providers   []model.Provider
	ShowRegions bool
}

// Globe renders nodes as Points and links as LineStrings. Exchanges and
// regions are kept when their provider is in opts.Providers; links are
// taken as given, so callers pass the already filtered set.
func Globe(cat *catalog.Catalog, links []model.Link, opts GlobeOptions) *geojson.FeatureCollection {
	active := make(map[model.Provider]bool, len(opts.Providers))
	for _, p := range opts.Providers {
		active[p] = true
	}

	fc := geojson.NewFeatureCollection()
	for _, e := range cat.Exchanges() {
		if !active[e.Provider] {
			continue
		}
		f := geojson.NewPointFeature([]float64{e.Coord.Lng, e.Coord.Lat})
		f.ID = e.ID
		f.SetProperty("kind", "exchange")
		f.SetProperty("name", e.Name)
		f.SetProperty("city", e.City)
		f.SetProperty("country", e.Country)
		f.SetProperty("provider", string(e.Provider))
		f.SetProperty("regionCode", e.RegionCode)
		f.SetProperty("color", providerColor[e.Provider])
		fc.AddFeature(f)
	}
	if opts.ShowRegions {
		for _, r := range cat.Regions() {
			if !active[r.Provider] {
				continue
			}
			f := geojson.NewPointFeature([]float64{r.Coord.Lng, r.Coord.Lat})
			f.ID = r.ID
			f.SetProperty("kind", "region")
			f.SetProperty("name", r.Name)
			f.SetProperty("provider", string(r.Provider))
			f.SetProperty("regionCode", r.RegionCode)
			f.SetProperty("color", providerColor[r.Provider])
			fc.AddFeature(f)
		}
	}
	for _, l := range links {
		f := geojson.NewLineStringFeature([][]float64{
			{l.FromLng, l.FromLat},
			{l.ToLng, l.ToLat},
		})
		f.ID = l.ID
		f.SetProperty("kind", "link")
		f.SetProperty("fromId", l.FromID)
		f.SetProperty("toId", l.ToID)
		f.SetProperty("latencyMs", l.LatencyMs)
		f.SetProperty("color", LatencyColor(l.LatencyMs))
		fc.AddFeature(f)
	}
	return fc
}
