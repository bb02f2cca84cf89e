package common

import (
	_ "embed"
	"net/http"
	"strings"
	"time"
)

//go:embed VERSION
var version string

// Version returns the embedded build version.
func Version() string {
	return strings.TrimSpace(version)
}

// UserAgent is what zonemap identifies as to the price, tariff and grid APIs.
func UserAgent() string {
	return "ZoneMap/" + Version()
}

type uaTransport struct {
	base  http.RoundTripper
	agent string
}

// RoundTrip sends a copy of req carrying our User-Agent; callers may reuse
// req afterwards.
func (t *uaTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.Header.Set("User-Agent", t.agent)
	return t.base.RoundTrip(out)
}

// HTTPClient returns the client used for every remote fetch. A zero timeout
// leaves requests bounded only by their context.
func HTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &uaTransport{
			base:  http.DefaultTransport,
			agent: UserAgent(),
		},
		Timeout: timeout,
	}
}
