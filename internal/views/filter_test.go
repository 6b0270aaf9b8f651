package views

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"latencyglobe/internal/model"
)

type lookup map[string]model.Provider

func (l lookup) ProviderOf(id string) (model.Provider, bool) {
	p, ok := l[id]
	return p, ok
}

var nodes = lookup{
	"ex-aws": model.ProviderAWS,
	"ex-gcp": model.ProviderGCP,
	"ex-az":  model.ProviderAzure,
	"r-aws":  model.ProviderAWS,
	"r-gcp":  model.ProviderGCP,
	"r-az":   model.ProviderAzure,
}

func testLinks() []model.Link {
	return []model.Link{
		{ID: "ex-aws-r-aws", FromID: "ex-aws", ToID: "r-aws", LatencyMs: 15},
		{ID: "ex-gcp-r-gcp", FromID: "ex-gcp", ToID: "r-gcp", LatencyMs: 120},
		{ID: "ex-az-r-az", FromID: "ex-az", ToID: "r-az", LatencyMs: 300},
		{ID: "ghost-r-aws", FromID: "ghost", ToID: "r-aws", LatencyMs: 1},
	}
}

func ids(links []model.Link) []string {
	out := make([]string, 0, len(links))
	for _, l := range links {
		out = append(out, l.ID)
	}
	return out
}

func TestVisibleLinks_DefaultFilter(t *testing.T) {
	t.Parallel()

	got := VisibleLinks(nodes, testLinks(), DefaultFilter())
	assert.Equal(t, []string{"ex-aws-r-aws", "ex-gcp-r-gcp"}, ids(got))
}

func TestVisibleLinks_Providers(t *testing.T) {
	t.Parallel()

	f := Filter{Providers: []model.Provider{model.ProviderAzure}}
	assert.Equal(t, []string{"ex-az-r-az"}, ids(VisibleLinks(nodes, testLinks(), f)))

	f = Filter{Providers: []model.Provider{}}
	assert.Empty(t, VisibleLinks(nodes, testLinks(), f))
}

func TestVisibleLinks_Focus(t *testing.T) {
	t.Parallel()

	f := Filter{FocusNodeID: "r-gcp"}
	assert.Equal(t, []string{"ex-gcp-r-gcp"}, ids(VisibleLinks(nodes, testLinks(), f)))
}

func TestVisibleLinks_HideLinks(t *testing.T) {
	t.Parallel()

	got := VisibleLinks(nodes, testLinks(), Filter{HideLinks: true})
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRollup_EmptyBucketsAreZero(t *testing.T) {
	t.Parallel()

	f := Filter{MaxLatencyMs: 200}
	visible := VisibleLinks(nodes, testLinks(), f)
	rollup := RollupByProvider(nodes, visible, f.ProviderSet())
	require.Len(t, rollup, 3)

	assert.Equal(t, ProviderRollup{Provider: model.ProviderAWS, Count: 1, MinMs: 15, MaxMs: 15, AvgMs: 15}, rollup[0])
	assert.Equal(t, model.ProviderGCP, rollup[1].Provider)
	assert.Equal(t, ProviderRollup{Provider: model.ProviderAzure}, rollup[2])
}

func TestRollup_CountsSumToVisible(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(11))
	from := []string{"ex-aws", "ex-gcp", "ex-az", "ghost"}
	to := []string{"r-aws", "r-gcp", "r-az"}

	for trial := 0; trial < 300; trial++ {
		links := make([]model.Link, rng.Intn(40))
		for i := range links {
			f, d := from[rng.Intn(len(from))], to[rng.Intn(len(to))]
			links[i] = model.Link{ID: model.LinkID(f, d), FromID: f, ToID: d, LatencyMs: float64(rng.Intn(400))}
		}

		var providers []model.Provider
		if rng.Intn(4) > 0 {
			providers = []model.Provider{}
			for _, p := range model.Providers {
				if rng.Intn(2) == 0 {
					providers = append(providers, p)
				}
			}
		}
		filter := Filter{
			Providers:    providers,
			MaxLatencyMs: float64(rng.Intn(400)),
			HideLinks:    rng.Intn(10) == 0,
		}
		if rng.Intn(3) == 0 {
			filter.FocusNodeID = to[rng.Intn(len(to))]
		}

		visible := VisibleLinks(nodes, links, filter)
		total := 0
		for _, r := range RollupByProvider(nodes, visible, filter.ProviderSet()) {
			total += r.Count
		}
		require.Equal(t, len(visible), total, "trial %d filter %+v", trial, filter)
	}
}
