package model

import (
	"fmt"
	"strings"
	"time"
)

// Provider is the cloud platform a node belongs to.
type Provider string

const (
	ProviderAWS   Provider = "AWS"
	ProviderGCP   Provider = "GCP"
	ProviderAzure Provider = "AZURE"
)

// Providers lists every known provider in display order.
var Providers = []Provider{ProviderAWS, ProviderGCP, ProviderAzure}

// ParseProvider accepts a provider name in any case.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToUpper(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown provider %q", s)
	}
	return p, nil
}

// Valid reports whether p is one of the known providers.
func (p Provider) Valid() bool {
	for _, known := range Providers {
		if p == known {
			return true
		}
	}
	return false
}

// Coord is a latitude/longitude pair in degrees.
type Coord struct {
	Lat float64
	Lng float64
}

// Exchange is an exchange server location.
type Exchange struct {
	ID         string
	Name       string
	City       string
	Country    string // ISO 3166-1 alpha-2
	Coord      Coord
	Provider   Provider
	RegionCode string
}

// Region is a cloud provider region.
type Region struct {
	ID         string
	Name       string
	Provider   Provider
	RegionCode string
	Coord      Coord
}

// Link is the current latency between an exchange and its region.
type Link struct {
	ID          string    `json:"id"`
	FromID      string    `json:"fromId"`
	ToID        string    `json:"toId"`
	FromLat     float64   `json:"fromLat"`
	FromLng     float64   `json:"fromLng"`
	ToLat       float64   `json:"toLat"`
	ToLng       float64   `json:"toLng"`
	LatencyMs   float64   `json:"latencyMs"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// LinkID joins endpoint ids into a link id.
func LinkID(fromID, toID string) string {
	return fromID + "-" + toID
}

// Sample is a single recorded latency observation.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	PairID    string    `json:"pairId"`
	FromID    string    `json:"fromId"`
	ToID      string    `json:"toId"`
	LatencyMs float64   `json:"latencyMs"`
}

// SampleFromLink records l as observed at its LastUpdated time.
func SampleFromLink(l Link) Sample {
	return Sample{
		Timestamp: l.LastUpdated,
		PairID:    l.ID,
		FromID:    l.FromID,
		ToID:      l.ToID,
		LatencyMs: l.LatencyMs,
	}
}
