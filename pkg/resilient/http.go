package resilient

import (
	"errors"
	"fmt"
	"net"
	"net/http"
)

// HTTPStatusError carries a non-2xx response. All such responses are
// permanent: the endpoint is reachable, the request was rejected.
type HTTPStatusError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, truncate(e.Body, 256))
}

// NewHTTPClient builds an http.Client with the config's connect timeout.
// The per-attempt response timeout is applied via context by Client.Do.
func NewHTTPClient(cfg Config) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: cfg.ConnectTimeout,
			}).DialContext,
			MaxIdleConnsPerHost: 4,
		},
	}
}

// ClassifyHTTP treats every error except an HTTPStatusError as transient.
// Connection refusals, resets and timeouts may clear up on retry; a status
// code from the remote endpoint will not.
func ClassifyHTTP(err error) bool {
	var statusErr *HTTPStatusError
	return !errors.As(err, &statusErr)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
