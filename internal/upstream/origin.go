package upstream

import (
	"fmt"
	"net/url"
	"strings"
)

// Origin is the base URL assets are resolved against.
type Origin struct {
	base *url.URL
}

// ParseOrigin parses and validates the origin URL.
func ParseOrigin(raw string) (*Origin, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("no origin provided")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse origin %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("origin %q must use http or https scheme", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("origin %q has no host", raw)
	}

	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""

	return &Origin{base: u}, nil
}

// URL returns a cloned url.URL for safe mutation by callers.
func (o *Origin) URL() *url.URL {
	clone := *o.base
	return &clone
}

// String returns the normalised origin.
func (o *Origin) String() string {
	return o.base.String()
}

// Resolve turns an asset reference into the absolute URL to fetch. Absolute
// http(s) references are used as-is; anything else is joined onto the
// origin path.
func (o *Origin) Resolve(asset string) (*url.URL, error) {
	ref, err := url.Parse(asset)
	if err != nil {
		return nil, fmt.Errorf("parse asset %q: %w", asset, err)
	}

	if ref.IsAbs() {
		if ref.Scheme != "http" && ref.Scheme != "https" {
			return nil, fmt.Errorf("asset %q must use http or https scheme", asset)
		}
		ref.Fragment = ""
		return ref, nil
	}
	if ref.Host != "" {
		return nil, fmt.Errorf("asset %q is protocol-relative", asset)
	}

	u := o.URL()
	u.Path = joinURLPath(u.Path, ref.Path)
	u.RawQuery = ref.RawQuery
	return u, nil
}

func joinURLPath(basePath, reqPath string) string {
	switch {
	case basePath == "":
		if reqPath == "" {
			return "/"
		}
		return ensureLeadingSlash(reqPath)
	case reqPath == "":
		return ensureLeadingSlash(basePath)
	default:
		b := ensureLeadingSlash(basePath)
		r := ensureLeadingSlash(reqPath)
		if b[len(b)-1] == '/' {
			return b + r[1:]
		}
		return b + r
	}
}

func ensureLeadingSlash(path string) string {
	if path == "" {
		return "/"
	}
	if path[0] != '/' {
		return "/" + path
	}
	return path
}
