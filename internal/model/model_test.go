package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProvider(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Provider{"aws": ProviderAWS, " GCP ": ProviderGCP, "Azure": ProviderAzure} {
		got, err := ParseProvider(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseProvider("oracle")
	assert.ErrorContains(t, err, `unknown provider "oracle"`)
}

func TestSampleFromLink(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	l := Link{ID: LinkID("a", "b"), FromID: "a", ToID: "b", LatencyMs: 42, LastUpdated: now}
	assert.Equal(t, Sample{Timestamp: now, PairID: "a-b", FromID: "a", ToID: "b", LatencyMs: 42}, SampleFromLink(l))
}
