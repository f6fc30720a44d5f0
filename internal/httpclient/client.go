// Package httpclient builds the tuned *http.Client shared by all fetchers.
package httpclient

import (
	"net"
	"net/http"
	"time"

	"github.com/dainst/marc-authority-harvester/errors"
)

const maxRedirects = 10

// New creates an HTTP client for harvest requests. Per-request deadlines are
// driven by context (the retrying fetcher escalates them per attempt), so the
// client itself carries no global timeout.
func New() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errors.Newf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
		Transport: &http.Transport{
			DialContext:           dialer.DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   20,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}
