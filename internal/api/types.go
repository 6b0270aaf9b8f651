package api

import (
	"time"

	"latencyglobe/internal/catalog"
	"latencyglobe/internal/model"
	"latencyglobe/internal/views"
)

// LatencyResponse is the body of GET /api/latency.
type LatencyResponse struct {
	Links []model.Link `json:"links"`
}

// Status describes the health of the poll loop.
type Status struct {
	LastSuccess         time.Time `json:"lastSuccess,omitempty"`
	LastError           string    `json:"lastError,omitempty"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	Stale               bool      `json:"stale"`
}

// StateResponse is the full read-only view served to dashboards.
type StateResponse struct {
	Session string         `json:"session"`
	Links   []model.Link   `json:"links"`
	History []model.Sample `json:"history"`
	Now     time.Time      `json:"now"`
	Seeded  bool           `json:"seeded"`
	Status  Status         `json:"status"`
}

// LinksResponse is the body of GET /api/links.
type LinksResponse struct {
	Links   []model.Link  `json:"links"`
	Summary views.Summary `json:"summary"`
}

// ProvidersResponse is the body of GET /api/providers.
type ProvidersResponse struct {
	Providers []views.ProviderRollup `json:"providers"`
	Total     int                    `json:"total"`
}

// HistoryResponse is the body of GET /api/history.
type HistoryResponse struct {
	Range   string         `json:"range"`
	PairID  string         `json:"pairId,omitempty"`
	Samples []model.Sample `json:"samples"`
	Points  []views.Point  `json:"points"`
	Summary views.Summary  `json:"summary"`
}

// NodesResponse is the body of GET /api/nodes.
type NodesResponse struct {
	Nodes []catalog.Node `json:"nodes"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	OK      bool      `json:"ok"`
	Stale   bool      `json:"stale"`
	Links   int       `json:"links"`
	History int       `json:"history"`
	Time    time.Time `json:"time"`
}

// ErrorResponse carries a request error.
type ErrorResponse struct {
	Error string `json:"error"`
}
