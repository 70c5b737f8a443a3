package collyfetcher

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/JakeFAU/sitescope/internal/metrics"
)

// instrumentedTransport records one metrics observation per round trip,
// redirects included.
type instrumentedTransport struct {
	base http.RoundTripper
}

func (t *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("instrumented transport received nil request")
	}
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		metrics.ObserveFetch(req.URL.String(), 0, time.Since(start))
		return nil, fmt.Errorf("fetch roundtrip: %w", err)
	}
	metrics.ObserveFetch(req.URL.String(), resp.StatusCode, time.Since(start))
	return resp, nil
}
