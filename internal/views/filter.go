package views

import "latencyglobe/internal/model"

// DefaultMaxLatencyMs is the dashboard's initial latency threshold.
const DefaultMaxLatencyMs = 250

// ProviderLookup resolves the provider owning a node id.
type ProviderLookup interface {
	ProviderOf(id string) (model.Provider, bool)
}

// Filter selects which links are visible.
type Filter struct {
	// Providers limits links to exchanges hosted on these providers.
	// nil means every provider; an empty non-nil slice hides everything.
	Providers []model.Provider
	// MaxLatencyMs hides links slower than this. Zero disables the threshold.
	MaxLatencyMs float64
	// FocusNodeID keeps only links touching this node when set.
	FocusNodeID string
	// HideLinks hides every link (the dashboard's real-time toggle off).
	HideLinks bool
}

// DefaultFilter is the dashboard's initial filter.
func DefaultFilter() Filter {
	return Filter{MaxLatencyMs: DefaultMaxLatencyMs}
}

// ProviderSet returns the providers the filter admits, in display order.
func (f Filter) ProviderSet() []model.Provider {
	if f.Providers == nil {
		return append([]model.Provider(nil), model.Providers...)
	}
	out := make([]model.Provider, 0, len(f.Providers))
	for _, p := range model.Providers {
		if containsProvider(f.Providers, p) {
			out = append(out, p)
		}
	}
	return out
}

// VisibleLinks applies f to links. A link belongs to the provider of its
// exchange (from) endpoint; links from unknown nodes are never visible.
func VisibleLinks(lookup ProviderLookup, links []model.Link, f Filter) []model.Link {
	if f.HideLinks {
		return []model.Link{}
	}
	allowed := f.ProviderSet()
	out := make([]model.Link, 0, len(links))
	for _, l := range links {
		p, ok := lookup.ProviderOf(l.FromID)
		if !ok || !containsProvider(allowed, p) {
			continue
		}
		if f.MaxLatencyMs > 0 && l.LatencyMs > f.MaxLatencyMs {
			continue
		}
		if f.FocusNodeID != "" && l.FromID != f.FocusNodeID && l.ToID != f.FocusNodeID {
			continue
		}
		out = append(out, l)
	}
	return out
}

func containsProvider(list []model.Provider, p model.Provider) bool {
	for _, v := range list {
		if v == p {
			return true
		}
	}
	return false
}
