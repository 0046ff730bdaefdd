package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func scrape(t *testing.T, p *Provider) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	return rr.Body.String()
}

func TestProvider_ExportsRuntimeAndBuildInfo(t *testing.T) {
	p := NewProvider(BuildInfo{Version: "1.4.0", Revision: "abc123", Built: "2026-08-01"})
	body := scrape(t, p)

	if !strings.Contains(body, "go_goroutines") {
		t.Fatalf("expected go_goroutines in payload; got:\n%s", body)
	}
	if !strings.Contains(body, "process_cpu_seconds_total") && !strings.Contains(body, "process_start_time_seconds") {
		t.Fatalf("expected process_* metrics in payload; got:\n%s", body)
	}
	want := `terrabuild_build_info{built="2026-08-01",revision="abc123",version="1.4.0"} 1`
	if !strings.Contains(body, want) {
		t.Fatalf("expected %q in payload; got:\n%s", want, body)
	}
}

func TestProvider_EmptyVersionFallsBackToDev(t *testing.T) {
	p := NewProvider(BuildInfo{})
	body := scrape(t, p)
	if !strings.Contains(body, `version="dev"`) {
		t.Fatalf("expected version=dev fallback; got:\n%s", body)
	}
	if strings.Count(body, "terrabuild_build_info{") != 1 {
		t.Fatalf("expected exactly one build info series; got:\n%s", body)
	}
}
