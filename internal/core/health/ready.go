package health

import (
	"encoding/json"
	"net/http"
)

// ReadinessReporter says whether the service can serve tiles and which
// maps are available.
type ReadinessReporter interface {
	Readiness() (ready bool, maps []string)
}

func Readiness(rr ReadinessReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		type resp struct {
			Status string   `json:"status"`
			Maps   []string `json:"maps,omitempty"`
		}
		ready, maps := rr.Readiness()
		out := resp{Status: "not_ready"}
		if ready {
			out.Status = "ready"
			out.Maps = maps
		}
		w.Header().Set("Content-Type", "application/json")
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
