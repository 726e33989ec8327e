package backend

import (
	"net/http"
	"time"
)

// ConnectionOptions tune the HTTP transport of network backends.
// They are process-start settings and never inspected by the reconciler.
type ConnectionOptions struct {
	// ConnectionLimit caps concurrent connections per host (0 keeps the default).
	ConnectionLimit int
	// Expect100Continue toggles waiting for "100 Continue" before sending bodies (nil keeps the default).
	Expect100Continue *bool
}

// Transport returns a copy of the default HTTP transport with the options applied.
func (o *ConnectionOptions) Transport() *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if o == nil {
		return transport
	}

	if o.ConnectionLimit > 0 {
		transport.MaxConnsPerHost = o.ConnectionLimit
		transport.MaxIdleConnsPerHost = o.ConnectionLimit
	}

	if o.Expect100Continue != nil {
		if *o.Expect100Continue {
			transport.ExpectContinueTimeout = time.Second
		} else {
			transport.ExpectContinueTimeout = 0
		}
	}

	return transport
}

// RoundTripper returns Transport wrapped so that requests with a body ask for
// "100 Continue" when Expect100Continue is enabled. The standard client only
// waits for it when the header is already present.
func (o *ConnectionOptions) RoundTripper() http.RoundTripper {
	transport := o.Transport()
	if o == nil || o.Expect100Continue == nil || !*o.Expect100Continue {
		return transport
	}

	return &expectContinueTransport{base: transport}
}

type expectContinueTransport struct {
	base http.RoundTripper
}

func (t *expectContinueTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body == nil || req.Body == http.NoBody || req.Header.Get("Expect") != "" {
		return t.base.RoundTrip(req)
	}

	req = req.Clone(req.Context())
	req.Header.Set("Expect", "100-continue")

	return t.base.RoundTrip(req)
}
