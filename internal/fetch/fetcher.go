package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Dagmawialebachew/DigitalAttendanceSystem/internal/cache"
	"github.com/Dagmawialebachew/DigitalAttendanceSystem/internal/upstream"
)

// ErrVaryWildcard marks responses that declare "Vary: *" and so can never be matched.
var ErrVaryWildcard = errors.New("response has Vary: * header")

// StatusError is returned for responses outside the 2xx range.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: bad status %d %s", e.URL, e.Status, http.StatusText(e.Status))
}

// Fetcher pulls assets from the origin and snapshots them as cacheable responses.
type Fetcher struct {
	Client *http.Client
	Origin *upstream.Origin
	Logger *slog.Logger
}

var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Fetch GETs the asset and returns it as a cache.Response. Non-2xx
// responses and responses varying on "*" are rejected.
func (f *Fetcher) Fetch(ctx context.Context, asset string) (cache.Response, error) {
	if f.Client == nil {
		return cache.Response{}, errors.New("fetcher client is nil")
	}
	if f.Origin == nil {
		return cache.Response{}, errors.New("fetcher origin is nil")
	}

	target, err := f.Origin.Resolve(asset)
	if err != nil {
		return cache.Response{}, err
	}

	if f.Logger != nil {
		f.Logger.Debug("fetching asset", slog.String("asset", asset), slog.String("target", target.String()))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return cache.Response{}, err
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return cache.Response{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return cache.Response{}, &StatusError{URL: target.String(), Status: resp.StatusCode}
	}
	if varyWildcard(resp.Header) {
		_, _ = io.Copy(io.Discard, resp.Body)
		return cache.Response{}, fmt.Errorf("fetch %s: %w", target, ErrVaryWildcard)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return cache.Response{}, fmt.Errorf("read %s: %w", target, err)
	}

	header := resp.Header.Clone()
	for _, h := range hopHeaders {
		header.Del(h)
	}

	return cache.Response{
		URL:      target.String(),
		Status:   resp.StatusCode,
		Header:   header,
		Body:     body,
		StoredAt: time.Now().UTC(),
	}, nil
}

func varyWildcard(h http.Header) bool {
	for _, v := range h.Values("Vary") {
		for _, field := range strings.Split(v, ",") {
			if strings.TrimSpace(field) == "*" {
				return true
			}
		}
	}
	return false
}
