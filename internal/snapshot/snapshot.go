package snapshot

import (
	"context"
	"time"

	"latencyglobe/internal/catalog"
	"latencyglobe/internal/geo"
	"latencyglobe/internal/model"
)

// Builder fabricates the current link set from the static catalog.
type Builder struct {
	cat *catalog.Catalog
	est *geo.Estimator
	now func() time.Time
}

// NewBuilder returns a builder over cat drawing latencies from est.
func NewBuilder(cat *catalog.Catalog, est *geo.Estimator) *Builder {
	return &Builder{
		cat: cat,
		est: est,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Build returns one link per exchange with a known region, all stamped
// with the same time.
func (b *Builder) Build(now time.Time) []model.Link {
	pairs := b.cat.Pairs()
	links := make([]model.Link, 0, len(pairs))
	for _, p := range pairs {
		from, to := p.Exchange.Coord, p.Region.Coord
		links = append(links, model.Link{
			ID:          model.LinkID(p.Exchange.ID, p.Region.ID),
			FromID:      p.Exchange.ID,
			ToID:        p.Region.ID,
			FromLat:     from.Lat,
			FromLng:     from.Lng,
			ToLat:       to.Lat,
			ToLng:       to.Lng,
			LatencyMs:   b.est.LatencyBetween(from, to),
			LastUpdated: now,
		})
	}
	return links
}

// Fetch builds a snapshot at the current time. It lets a Builder stand in
// for the remote endpoint when the poller runs in-process.
func (b *Builder) Fetch(ctx context.Context) ([]model.Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.Build(b.now()), nil
}
