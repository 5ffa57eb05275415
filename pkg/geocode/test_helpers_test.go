package geocode

import (
	"net/http"
	"strings"
	"time"

	"github.com/quietcreep/citysdk/internal/fetcher"
	"github.com/quietcreep/citysdk/internal/resilience"
)

// newTestClient returns a geocoder whose default upstream URLs are
// redirected to the test server.
func newTestClient(testServerURL string, opts ...Option) Resolver {
	f := fetcher.New(fetcher.Options{
		Timeout:   5 * time.Second,
		Policy:    resilience.Policy{Attempts: 1},
		Transport: &rewriteTransport{base: http.DefaultTransport, testServer: testServerURL},
	})
	return NewClient(append([]Option{WithFetcher(f)}, opts...)...)
}

// rewriteTransport sends every request to the test server, keeping the
// original path and query.
type rewriteTransport struct {
	base       http.RoundTripper
	testServer string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	newReq := req.Clone(req.Context())
	parsed, err := req.URL.Parse(strings.TrimRight(t.testServer, "/") + req.URL.RequestURI())
	if err != nil {
		return nil, err
	}
	newReq.URL = parsed
	newReq.Host = parsed.Host
	return t.base.RoundTrip(newReq)
}
