package geo

import (
	"math"
	"math/rand"
	"sync"

	"latencyglobe/internal/model"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

const (
	// MinBaselineMs is the lowest baseline latency before jitter.
	MinBaselineMs = 10.0
	// MsPer100Km is the baseline cost of distance.
	MsPer100Km = 2.0
	// MaxJitterMs bounds the uniform jitter applied to every estimate.
	MaxJitterMs = 10.0
)

// Jitter is a source of uniform values in [0, 1). *rand.Rand satisfies it.
type Jitter interface {
	Float64() float64
}

// DistanceKm returns the haversine distance between a and b.
func DistanceKm(a, b model.Coord) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)
	h := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))*math.Pow(math.Sin(dLng/2), 2)
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// BaselineMs is the jitter-free latency for a distance.
func BaselineMs(km float64) float64 {
	return math.Max(MinBaselineMs, km/100*MsPer100Km)
}

// Estimator turns distances into synthetic latencies.
// It is safe for concurrent use.
type Estimator struct {
	mu     sync.Mutex
	jitter Jitter
}

// NewEstimator returns an estimator drawing jitter from j.
// A nil j uses a time-seeded source.
func NewEstimator(j Jitter) *Estimator {
	if j == nil {
		j = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Estimator{jitter: j}
}

// LatencyForDistance returns baseline plus jitter in [-10, +10] ms,
// rounded to whole milliseconds and never negative.
func (e *Estimator) LatencyForDistance(km float64) float64 {
	e.mu.Lock()
	r := e.jitter.Float64()
	e.mu.Unlock()
	jitter := r*2*MaxJitterMs - MaxJitterMs
	return math.Max(0, math.Round(BaselineMs(km)+jitter))
}

// LatencyBetween is LatencyForDistance(DistanceKm(a, b)).
func (e *Estimator) LatencyBetween(a, b model.Coord) float64 {
	return e.LatencyForDistance(DistanceKm(a, b))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
