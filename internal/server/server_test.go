package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	geojson "github.com/paulmach/go.geojson"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"latencyglobe/internal/api"
	"latencyglobe/internal/catalog"
	"latencyglobe/internal/config"
	"latencyglobe/internal/geo"
	"latencyglobe/internal/model"
	"latencyglobe/internal/snapshot"
	"latencyglobe/internal/telemetry"
	"latencyglobe/internal/tracker"
)

type halfRand struct{}

func (halfRand) Float64() float64 { return 0.5 }

type fixture struct {
	srv     *Server
	tracker *tracker.Tracker
	metrics *telemetry.Metrics
	now     time.Time
}

func newFixture(t *testing.T, cfg config.ServerConfig) *fixture {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	tr := tracker.New(tracker.Config{SeedRand: halfRand{}})
	t.Cleanup(tr.Close)

	now := time.Now().UTC().Truncate(time.Second)
	tr.Apply([]model.Link{
		link("okx-singapore", "gcp-singapore", 30, now),
		link("binance-virginia", "aws-virginia", 180, now),
	}, now)

	srv := New(cfg, Deps{
		Catalog:  cat,
		Builder:  snapshot.NewBuilder(cat, geo.NewEstimator(halfRand{})),
		Tracker:  tr,
		Gatherer: reg,
	})
	return &fixture{srv: srv, tracker: tr, metrics: telemetry.New(reg), now: now}
}

func link(from, to string, ms float64, now time.Time) model.Link {
	return model.Link{
		ID:          model.LinkID(from, to),
		FromID:      from,
		ToID:        to,
		LatencyMs:   ms,
		LastUpdated: now,
	}
}

func (f *fixture) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func linkIDs(links []model.Link) []string {
	out := make([]string, 0, len(links))
	for _, l := range links {
		out = append(out, l.ID)
	}
	return out
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.ServerConfig{})
	rec := f.get(t, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[api.HealthResponse](t, rec)
	assert.True(t, body.OK)
	assert.False(t, body.Stale)
	assert.Equal(t, 2, body.Links)
	assert.Greater(t, body.History, 2)
}

func TestLatency_BuildsFreshSnapshot(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.ServerConfig{})
	rec := f.get(t, "/api/latency")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decode[api.LatencyResponse](t, rec)
	assert.ElementsMatch(t,
		[]string{"okx-singapore-gcp-singapore", "binance-virginia-aws-virginia"},
		linkIDs(body.Links))
}

func TestState(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.ServerConfig{})
	body := decode[api.StateResponse](t, f.get(t, "/api/state"))
	assert.Equal(t, f.tracker.Session(), body.Session)
	assert.True(t, body.Seeded)
	assert.Len(t, body.Links, 2)
	assert.True(t, f.now.Equal(body.Now), "now=%s", body.Now)
	assert.True(t, f.now.Equal(body.Status.LastSuccess), "lastSuccess=%s", body.Status.LastSuccess)
}

func TestLinks_Filters(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.ServerConfig{})
	cases := []struct {
		name  string
		query string
		want  []string
	}{
		{"default", "", []string{"okx-singapore-gcp-singapore", "binance-virginia-aws-virginia"}},
		{"max", "?max=100", []string{"okx-singapore-gcp-singapore"}},
		{"no threshold", "?max=0", []string{"okx-singapore-gcp-singapore", "binance-virginia-aws-virginia"}},
		{"one provider", "?providers=gcp", []string{"okx-singapore-gcp-singapore"}},
		{"no providers", "?providers=", []string{}},
		{"focus region", "?focus=aws-virginia", []string{"binance-virginia-aws-virginia"}},
		{"realtime off", "?realtime=false", []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.get(t, "/api/links"+tc.query)
			require.Equal(t, http.StatusOK, rec.Code)
			body := decode[api.LinksResponse](t, rec)
			assert.ElementsMatch(t, tc.want, linkIDs(body.Links))
			assert.Equal(t, len(tc.want), body.Summary.Count)
		})
	}
}

func TestLinks_BadQuery(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.ServerConfig{})
	for _, q := range []string{"?providers=oracle", "?max=-1", "?max=fast", "?realtime=maybe"} {
		rec := f.get(t, "/api/links"+q)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		assert.NotEmpty(t, decode[api.ErrorResponse](t, rec).Error, q)
	}
}

func TestProviders_Rollup(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.ServerConfig{})
	body := decode[api.ProvidersResponse](t, f.get(t, "/api/providers"))
	require.Len(t, body.Providers, 3)
	assert.Equal(t, 2, body.Total)

	counts := map[model.Provider]int{}
	for _, p := range body.Providers {
		counts[p.Provider] = p.Count
	}
	assert.Equal(t, map[model.Provider]int{
		model.ProviderAWS:   1,
		model.ProviderGCP:   1,
		model.ProviderAzure: 0,
	}, counts)
}

func TestHistory_RangeAndPair(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.ServerConfig{})
	rec := f.get(t, "/api/history?range=1h&pair=okx-singapore-gcp-singapore")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[api.HistoryResponse](t, rec)
	assert.Equal(t, "1h", body.Range)
	assert.Equal(t, "okx-singapore-gcp-singapore", body.PairID)
	require.NotEmpty(t, body.Samples)
	assert.Len(t, body.Points, len(body.Samples))
	assert.Equal(t, len(body.Samples), body.Summary.Count)

	cutoff := f.now.Add(-time.Hour)
	for _, s := range body.Samples {
		assert.Equal(t, "okx-singapore-gcp-singapore", s.PairID)
		assert.False(t, s.Timestamp.Before(cutoff))
	}

	week := decode[api.HistoryResponse](t, f.get(t, "/api/history?range=7d"))
	assert.Greater(t, len(week.Samples), len(body.Samples))
}

func TestHistory_UnknownRange(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.ServerConfig{})
	rec := f.get(t, "/api/history?range=30d")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[api.ErrorResponse](t, rec).Error, "unknown range")
}

func TestHistoryCSV(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.ServerConfig{})
	rec := f.get(t, "/api/history.csv?range=24h")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "history-24h.csv")

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Greater(t, len(lines), 1)
	assert.Equal(t, "timestamp,pair_id,from_id,to_id,latency_ms", lines[0])
}

func TestNodes_Search(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.ServerConfig{})
	all := decode[api.NodesResponse](t, f.get(t, "/api/nodes"))
	assert.Len(t, all.Nodes, 12)

	body := decode[api.NodesResponse](t, f.get(t, "/api/nodes?q=frankfurt"))
	ids := make([]string, 0, len(body.Nodes))
	for _, n := range body.Nodes {
		ids = append(ids, n.ID)
	}
	assert.Contains(t, ids, "bybit-frankfurt")
	assert.Contains(t, ids, "aws-frankfurt")
	assert.NotContains(t, ids, "okx-singapore")
}

func TestGlobe(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.ServerConfig{})
	rec := f.get(t, "/api/globe.geojson")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))

	fc, err := geojson.UnmarshalFeatureCollection(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Len(t, fc.Features, 5+7+2)

	rec = f.get(t, "/api/globe.geojson?regions=false&providers=GCP")
	require.Equal(t, http.StatusOK, rec.Code)
	fc, err = geojson.UnmarshalFeatureCollection(rec.Body.Bytes())
	require.NoError(t, err)
	// okx-singapore plus its link.
	assert.Len(t, fc.Features, 2)
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.ServerConfig{})
	f.metrics.ObservePoll(20*time.Millisecond, 2, 10)

	rec := f.get(t, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "latencyglobe_links 2")
	assert.Contains(t, rec.Body.String(), "latencyglobe_polls_total 1")
}

func TestCORS_Preflight(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.ServerConfig{CORSOrigins: []string{"http://dash.example"}})
	req := httptest.NewRequest(http.MethodOptions, "/api/links", nil)
	req.Header.Set("Origin", "http://dash.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "http://dash.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStream_SnapshotThenUpdates(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.ServerConfig{})
	ts := httptest.NewServer(f.srv.Handler())
	t.Cleanup(ts.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/stream", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var first StreamMessage
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "snapshot", first.Type)
	assert.Len(t, first.Data.Links, 2)

	later := f.now.Add(5 * time.Second)
	f.tracker.Apply([]model.Link{link("okx-singapore", "gcp-singapore", 42, later)}, later)

	var next StreamMessage
	require.NoError(t, conn.ReadJSON(&next))
	assert.Equal(t, "state", next.Type)
	require.Len(t, next.Data.Links, 1)
	assert.Equal(t, 42.0, next.Data.Links[0].LatencyMs)
}

func TestStream_RejectsForeignOrigin(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.ServerConfig{CORSOrigins: []string{"http://dash.example"}})
	ts := httptest.NewServer(f.srv.Handler())
	t.Cleanup(ts.Close)

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/stream", header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
