package fetch

import (
	"net/http"
	"time"
)

// DefaultTimeout bounds one whole download, body included.
const DefaultTimeout = 30 * time.Minute

// NewClient returns the HTTP client shared by every fetch step of one run.
// A zero timeout selects DefaultTimeout.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
