package history

import (
	"math"
	"sort"
	"time"

	"latencyglobe/internal/geo"
	"latencyglobe/internal/model"
)

// DefaultSeedThreshold is the largest history length that still allows seeding.
const DefaultSeedThreshold = 5

const (
	minSeedLatencyMs  = 2
	fallbackLatencyMs = 20
)

// SeedState records whether the one-time backfill has happened.
type SeedState int

const (
	NotSeeded SeedState = iota
	Seeded
)

func (s SeedState) String() string {
	if s == Seeded {
		return "seeded"
	}
	return "not-seeded"
}

// seedWindow is a trailing span of synthetic history, expressed as offsets
// back from now.
type seedWindow struct {
	from, to time.Duration
	step     time.Duration
	jitter   float64
}

var seedWindows = []seedWindow{
	{from: 7 * 24 * time.Hour, to: 24 * time.Hour, step: 3 * time.Hour, jitter: 0.25},
	{from: 24 * time.Hour, to: time.Hour, step: 30 * time.Minute, jitter: 0.4},
	{from: time.Hour, to: 0, step: 5 * time.Minute, jitter: 0.6},
}

// Seeder backfills a plausible demo history once per process.
type Seeder struct {
	state     SeedState
	threshold int
	rand      geo.Jitter
}

// NewSeeder returns a seeder in the NotSeeded state.
func NewSeeder(threshold int, r geo.Jitter) *Seeder {
	if threshold <= 0 {
		threshold = DefaultSeedThreshold
	}
	return &Seeder{threshold: threshold, rand: r}
}

// State returns the current seed state.
func (s *Seeder) State() SeedState { return s.state }

// MaybeSeed backfills buf from the live links if it has not run yet, the
// history is still short, and there is at least one link. It returns the
// number of synthetic samples merged in.
func (s *Seeder) MaybeSeed(buf *Buffer, links []model.Link, now time.Time) int {
	if s.state == Seeded || buf.Len() > s.threshold || len(links) == 0 {
		return 0
	}
	synthetic := s.Generate(links, now)
	buf.Prepend(synthetic...)
	s.state = Seeded
	return len(synthetic)
}

// Generate fabricates the backfill for links, sorted by timestamp.
func (s *Seeder) Generate(links []model.Link, now time.Time) []model.Sample {
	var out []model.Sample
	for _, w := range seedWindows {
		end := now.Add(-w.to)
		for t := now.Add(-w.from); t.Before(end); t = t.Add(w.step) {
			for _, l := range links {
				out = append(out, model.Sample{
					Timestamp: t,
					PairID:    l.ID,
					FromID:    l.FromID,
					ToID:      l.ToID,
					LatencyMs: s.jittered(l.LatencyMs, w.jitter),
				})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func (s *Seeder) jittered(base, factor float64) float64 {
	if base == 0 {
		base = fallbackLatencyMs
	}
	v := math.Round(base * (1 + (s.rand.Float64()-0.5)*factor))
	return math.Max(minSeedLatencyMs, v)
}
