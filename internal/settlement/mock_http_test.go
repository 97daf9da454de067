package settlement

import "net/http"

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestEscrow(fn roundTripFunc) *HTTPEscrow {
	return &HTTPEscrow{baseURL: "https://escrow.example", apiKey: "secret", inner: &http.Client{Transport: fn}}
}
