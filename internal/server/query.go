package server

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"latencyglobe/internal/model"
	"latencyglobe/internal/views"
)

// parseFilter reads a views.Filter from the query string.
//
//	providers=AWS,GCP  absent keeps every provider, present but empty keeps none
//	max=120            latency threshold in ms, 0 disables it (default 250)
//	focus=<node id>    keep links touching one node
//	realtime=false     hide all links
func parseFilter(q url.Values) (views.Filter, error) {
	f := views.DefaultFilter()

	if _, ok := q["providers"]; ok {
		f.Providers = []model.Provider{}
		for _, raw := range q["providers"] {
			for _, part := range strings.Split(raw, ",") {
				if strings.TrimSpace(part) == "" {
					continue
				}
				p, err := model.ParseProvider(part)
				if err != nil {
					return views.Filter{}, err
				}
				f.Providers = append(f.Providers, p)
			}
		}
	}

	if raw := q.Get("max"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			return views.Filter{}, fmt.Errorf("invalid max %q", raw)
		}
		f.MaxLatencyMs = v
	}

	f.FocusNodeID = strings.TrimSpace(q.Get("focus"))

	show, err := parseBool(q, "realtime", true)
	if err != nil {
		return views.Filter{}, err
	}
	f.HideLinks = !show
	return f, nil
}

func parseBool(q url.Values, key string, def bool) (bool, error) {
	raw := q.Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q", key, raw)
	}
	return v, nil
}
