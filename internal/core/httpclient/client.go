// Package httpclient builds the HTTP client used to fetch tiles from
// upstream XYZ endpoints.
package httpclient

import (
	"net"
	"net/http"
	"time"
)

// New returns a client tuned for tile fetching: many small GETs against a
// handful of imagery hosts, so the per-host idle pool is kept large and a
// stalled upstream is cut off long before the viewer would give up on the
// tile. The resolver treats fetch errors as absence, so a tight timeout only
// costs a fallback to an ancestor tile.
func New() *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          128,
		MaxIdleConnsPerHost:   64,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   15 * time.Second,
	}
}
