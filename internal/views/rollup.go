package views

import "latencyglobe/internal/model"

// ProviderRollup aggregates link latencies for one provider.
type ProviderRollup struct {
	Provider model.Provider `json:"provider"`
	Count    int            `json:"count"`
	MinMs    float64        `json:"minMs"`
	MaxMs    float64        `json:"maxMs"`
	AvgMs    float64        `json:"avgMs"`
}

// RollupByProvider buckets links by the provider of their exchange, one
// entry per provider in display order. Empty buckets report zeros.
func RollupByProvider(lookup ProviderLookup, links []model.Link, providers []model.Provider) []ProviderRollup {
	buckets := make(map[model.Provider][]float64, len(providers))
	for _, l := range links {
		p, ok := lookup.ProviderOf(l.FromID)
		if !ok {
			continue
		}
		buckets[p] = append(buckets[p], l.LatencyMs)
	}

	out := make([]ProviderRollup, 0, len(providers))
	for _, p := range providers {
		s := Summarize(buckets[p])
		out = append(out, ProviderRollup{
			Provider: p,
			Count:    s.Count,
			MinMs:    s.MinMs,
			MaxMs:    s.MaxMs,
			AvgMs:    s.AvgMs,
		})
	}
	return out
}
