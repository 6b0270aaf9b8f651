package views

import (
	"math"
	"sort"
	"time"

	"latencyglobe/internal/model"
)

// Summary is a basic statistics snapshot over latency values.
type Summary struct {
	Count int       `json:"count"`
	From  time.Time `json:"from,omitempty"`
	To    time.Time `json:"to,omitempty"`
	MinMs float64   `json:"minMs"`
	MaxMs float64   `json:"maxMs"`
	AvgMs float64   `json:"avgMs"`
	P95Ms float64   `json:"p95Ms"`
}

// Summarize computes min, max, p95 and the average rounded to one decimal.
// An empty input yields a zero Summary.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	return Summary{
		Count: len(sorted),
		MinMs: sorted[0],
		MaxMs: sorted[len(sorted)-1],
		AvgMs: round1(sum / float64(len(sorted))),
		P95Ms: percentile(sorted, 0.95),
	}
}

// SummarizeLinks summarizes current link latencies.
func SummarizeLinks(links []model.Link) Summary {
	values := make([]float64, 0, len(links))
	for _, l := range links {
		values = append(values, l.LatencyMs)
	}
	return Summarize(values)
}

// SummarizeSamples summarizes samples and records their time span.
func SummarizeSamples(samples []model.Sample) Summary {
	if len(samples) == 0 {
		return Summary{}
	}
	values := make([]float64, 0, len(samples))
	from, to := samples[0].Timestamp, samples[0].Timestamp
	for _, s := range samples {
		values = append(values, s.LatencyMs)
		if s.Timestamp.Before(from) {
			from = s.Timestamp
		}
		if s.Timestamp.After(to) {
			to = s.Timestamp
		}
	}
	sum := Summarize(values)
	sum.From, sum.To = from, to
	return sum
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if p <= 0 {
		return values[0]
	}
	if p >= 1 {
		return values[len(values)-1]
	}
	idx := int(math.Ceil(p*float64(len(values)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(values) {
		idx = len(values) - 1
	}
	return values[idx]
}
