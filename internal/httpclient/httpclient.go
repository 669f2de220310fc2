// Package httpclient builds the shared HTTP clients used for all remote
// lookups (feed, artwork, playlist).
package httpclient

import (
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	clientTimeout         = 20 * time.Second
	dialTimeout           = 5 * time.Second
	keepAlive             = 30 * time.Second
	tlsHandshakeTimeout   = 5 * time.Second
	responseHeaderTimeout = 10 * time.Second
	expectContinueTimeout = 1 * time.Second
	idleConnTimeout       = 90 * time.Second
)

var transport = &http.Transport{
	Proxy: http.ProxyFromEnvironment,
	DialContext: (&net.Dialer{
		Timeout:   dialTimeout,
		KeepAlive: keepAlive,
	}).DialContext,
	TLSHandshakeTimeout:   tlsHandshakeTimeout,
	ResponseHeaderTimeout: responseHeaderTimeout,
	ExpectContinueTimeout: expectContinueTimeout,
	IdleConnTimeout:       idleConnTimeout,
}

// New returns a plain client over the tuned transport.
func New() *http.Client {
	return &http.Client{
		Timeout:   clientTimeout,
		Transport: transport,
	}
}

// NewRetryable wraps New with bounded retries for transient failures.
func NewRetryable(retryMax int) *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = retryMax
	retryClient.Logger = nil
	retryClient.HTTPClient = New()

	return retryClient.StandardClient()
}
