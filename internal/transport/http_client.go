package transport

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/Dagmawialebachew/DigitalAttendanceSystem/internal/config"
)

// NewHTTPClient constructs the http.Client used to pull assets from the origin.
func NewHTTPClient(cfg config.Config) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: cfg.DialTimeout, KeepAlive: 60 * time.Second}).DialContext,
		TLSHandshakeTimeout:   cfg.DialTimeout,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		ForceAttemptHTTP2:     true,
		ExpectContinueTimeout: 150 * time.Millisecond,
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			ClientSessionCache: tls.NewLRUClientSessionCache(64),
		},
	}

	return &http.Client{
		Transport: &userAgentTransport{next: transport, agent: cfg.UserAgent},
		Timeout:   cfg.TransportTimeout,
	}
}

// userAgentTransport stamps a default User-Agent on requests that carry none.
type userAgentTransport struct {
	next  http.RoundTripper
	agent string
}

func (t *userAgentTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if t.agent == "" || r.Header.Get("User-Agent") != "" {
		return t.next.RoundTrip(r)
	}
	clone := r.Clone(r.Context())
	clone.Header.Set("User-Agent", t.agent)
	return t.next.RoundTrip(clone)
}
