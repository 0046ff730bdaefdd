package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLiveness_Handler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()

	Liveness()(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	ct := rr.Header().Get("Content-Type")
	if !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content-type=%q want text/plain", ct)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != "ok" {
		t.Fatalf("body=%q want ok", got)
	}
}

type stubReporter struct {
	ready bool
	maps  []string
}

func (s stubReporter) Readiness() (bool, []string) { return s.ready, s.maps }

func TestReadiness_Handler(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		rr := httptest.NewRecorder()
		Readiness(stubReporter{ready: true, maps: []string{"default"}})(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		if rr.Code != http.StatusOK {
			t.Fatalf("status=%d want 200", rr.Code)
		}
		var out struct {
			Status string   `json:"status"`
			Maps   []string `json:"maps"`
		}
		if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if out.Status != "ready" || len(out.Maps) != 1 || out.Maps[0] != "default" {
			t.Fatalf("body=%+v", out)
		}
	})

	t.Run("not ready", func(t *testing.T) {
		rr := httptest.NewRecorder()
		Readiness(stubReporter{})(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		if rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("status=%d want 503", rr.Code)
		}
	})
}
