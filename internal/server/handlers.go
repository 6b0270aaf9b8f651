package server

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"latencyglobe/internal/api"
	"latencyglobe/internal/export"
	"latencyglobe/internal/model"
	"latencyglobe/internal/tracker"
	"latencyglobe/internal/views"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.tracker.Snapshot()
	writeJSON(w, http.StatusOK, api.HealthResponse{
		OK:      !st.Status.Stale,
		Stale:   st.Status.Stale,
		Links:   len(st.Links),
		History: len(st.History),
		Time:    st.Now,
	})
}

// handleLatency serves a freshly estimated snapshot, independent of the
// tracker. It is what a remote poller fetches.
func (s *Server) handleLatency(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.LatencyResponse{Links: s.builder.Build(time.Now().UTC())})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, stateResponse(s.tracker.Snapshot()))
}

func (s *Server) handleLinks(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	links := views.VisibleLinks(s.cat, s.tracker.Links(), f)
	writeJSON(w, http.StatusOK, api.LinksResponse{
		Links:   links,
		Summary: views.SummarizeLinks(links),
	})
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	links := views.VisibleLinks(s.cat, s.tracker.Links(), f)
	writeJSON(w, http.StatusOK, api.ProvidersResponse{
		Providers: views.RollupByProvider(s.cat, links, f.ProviderSet()),
		Total:     len(links),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	rng, samples, ok := s.windowed(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, api.HistoryResponse{
		Range:   string(rng),
		PairID:  r.URL.Query().Get("pair"),
		Samples: samples,
		Points:  views.Series(samples),
		Summary: views.SummarizeSamples(samples),
	})
}

func (s *Server) handleHistoryCSV(w http.ResponseWriter, r *http.Request) {
	rng, samples, ok := s.windowed(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="history-`+string(rng)+`.csv"`)
	if err := export.WriteCSV(w, samples); err != nil {
		s.log.Warn("write history csv", zap.Error(err))
	}
}

// windowed resolves the range and pair query parameters against the
// tracker's history and clock.
func (s *Server) windowed(w http.ResponseWriter, r *http.Request) (views.Range, []model.Sample, bool) {
	q := r.URL.Query()
	rng, d, err := views.ParseRange(q.Get("range"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return "", nil, false
	}
	return rng, views.WindowPair(s.tracker.History(), s.tracker.Now(), d, q.Get("pair")), true
}

func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.NodesResponse{Nodes: s.cat.Nodes(r.URL.Query().Get("q"))})
}

func (s *Server) handleGlobe(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := parseFilter(q)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	showRegions, err := parseBool(q, "regions", true)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	links := views.VisibleLinks(s.cat, s.tracker.Links(), f)
	fc := export.Globe(s.cat, links, export.GlobeOptions{
		Providers:   f.ProviderSet(),
		ShowRegions: showRegions,
	})
	body, err := fc.MarshalJSON()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func stateResponse(st tracker.State) api.StateResponse {
	return api.StateResponse{
		Session: st.Session,
		Links:   st.Links,
		History: st.History,
		Now:     st.Now,
		Seeded:  st.Seeded,
		Status: api.Status{
			LastSuccess:         st.Status.LastSuccess,
			LastError:           st.Status.LastError,
			ConsecutiveFailures: st.Status.ConsecutiveFailures,
			Stale:               st.Status.Stale,
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	_ = encoder.Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, api.ErrorResponse{Error: message})
}
