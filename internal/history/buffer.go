package history

import "latencyglobe/internal/model"

// DefaultCap is the number of samples kept for charting.
const DefaultCap = 4000

// Buffer is an insertion-ordered sample history capped at a fixed size.
// When full, the oldest samples are dropped first. Not safe for concurrent
// use; callers serialize access.
type Buffer struct {
	cap     int
	samples []model.Sample
}

// NewBuffer returns an empty buffer. A non-positive cap uses DefaultCap.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return &Buffer{cap: capacity}
}

// Cap is the maximum number of samples retained.
func (b *Buffer) Cap() int { return b.cap }

// Len is the number of samples currently retained.
func (b *Buffer) Len() int { return len(b.samples) }

// Record appends one sample per link as a single batch.
func (b *Buffer) Record(links []model.Link) {
	batch := make([]model.Sample, 0, len(links))
	for _, l := range links {
		batch = append(batch, model.SampleFromLink(l))
	}
	b.Append(batch...)
}

// Append adds samples after the existing history and trims to Cap.
func (b *Buffer) Append(samples ...model.Sample) {
	b.samples = append(b.samples, samples...)
	b.trim()
}

// Prepend places samples ahead of the existing history and trims to Cap.
func (b *Buffer) Prepend(samples ...model.Sample) {
	merged := make([]model.Sample, 0, len(samples)+len(b.samples))
	merged = append(merged, samples...)
	merged = append(merged, b.samples...)
	b.samples = merged
	b.trim()
}

// Samples returns a copy of the history in insertion order.
func (b *Buffer) Samples() []model.Sample {
	out := make([]model.Sample, len(b.samples))
	copy(out, b.samples)
	return out
}

func (b *Buffer) trim() {
	over := len(b.samples) - b.cap
	if over <= 0 {
		return
	}
	n := copy(b.samples, b.samples[over:])
	clear(b.samples[n:])
	b.samples = b.samples[:n]
}
