package history

import (
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"latencyglobe/internal/model"
)

type constRand float64

func (c constRand) Float64() float64 { return float64(c) }

// 48 points over 7d..24h, 46 over 24h..1h, 12 over the last hour.
const pointsPerLink = 48 + 46 + 12

func TestMaybeSeed_RunsOnce(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	buf := NewBuffer(DefaultCap)
	s := NewSeeder(DefaultSeedThreshold, rand.New(rand.NewSource(9)))
	links := []model.Link{link("a", 40, now), link("b", 90, now)}
	buf.Record(links)

	added := s.MaybeSeed(buf, links, now)
	require.Equal(t, 2*pointsPerLink, added)
	require.Equal(t, Seeded, s.State())
	require.Equal(t, 2*pointsPerLink+2, buf.Len())

	for i := 0; i < 5; i++ {
		assert.Zero(t, s.MaybeSeed(buf, links, now.Add(time.Duration(i)*time.Minute)))
	}
	assert.Equal(t, 2*pointsPerLink+2, buf.Len())
}

func TestMaybeSeed_EmptyLinksIsRetried(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	buf := NewBuffer(DefaultCap)
	s := NewSeeder(DefaultSeedThreshold, constRand(0.5))

	assert.Zero(t, s.MaybeSeed(buf, nil, now))
	assert.Equal(t, NotSeeded, s.State())

	assert.Equal(t, pointsPerLink, s.MaybeSeed(buf, []model.Link{link("a", 10, now)}, now))
	assert.Equal(t, Seeded, s.State())
}

func TestMaybeSeed_SkipsWhenHistoryAlreadyLong(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	buf := NewBuffer(DefaultCap)
	for i := 0; i < DefaultSeedThreshold+1; i++ {
		buf.Append(model.Sample{PairID: "x"})
	}
	s := NewSeeder(DefaultSeedThreshold, constRand(0.5))

	assert.Zero(t, s.MaybeSeed(buf, []model.Link{link("a", 10, now)}, now))
	assert.Equal(t, NotSeeded, s.State())
}

func TestMaybeSeed_SyntheticPrecedesLiveAndRespectsCap(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	buf := NewBuffer(100)
	live := []model.Link{link("a", 10, now)}
	buf.Record(live)

	s := NewSeeder(DefaultSeedThreshold, constRand(0.5))
	s.MaybeSeed(buf, live, now)

	got := buf.Samples()
	require.Len(t, got, 100)
	assert.Equal(t, now, got[len(got)-1].Timestamp, "live sample stays last")
	assert.True(t, got[0].Timestamp.Before(now))
}

func TestGenerate_SortedWithinWindowsAndBounds(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewSeeder(DefaultSeedThreshold, rand.New(rand.NewSource(1)))
	out := s.Generate([]model.Link{link("a", 100, now), link("b", 0, now)}, now)
	require.Len(t, out, 2*pointsPerLink)

	assert.True(t, sort.SliceIsSorted(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) }))
	assert.True(t, out[0].Timestamp.Equal(now.Add(-7*24*time.Hour)))
	assert.True(t, out[len(out)-1].Timestamp.Before(now))

	for _, sample := range out {
		age := now.Sub(sample.Timestamp)
		base := 100.0
		if sample.PairID == "b" {
			base = 20 // zero latency falls back to 20ms
		}
		var spread float64
		switch {
		case age > 24*time.Hour:
			spread = 0.125
		case age > time.Hour:
			spread = 0.2
		default:
			spread = 0.3
		}
		require.GreaterOrEqual(t, sample.LatencyMs, base*(1-spread)-0.5, "age=%s", age)
		require.LessOrEqual(t, sample.LatencyMs, base*(1+spread)+0.5, "age=%s", age)
	}
}

func TestJittered_FloorsAtTwo(t *testing.T) {
	t.Parallel()

	s := NewSeeder(DefaultSeedThreshold, constRand(0))
	assert.Equal(t, 2.0, s.jittered(1, 0.6))
}

func TestSeedState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "not-seeded", NotSeeded.String())
	assert.Equal(t, "seeded", Seeded.String())
}
