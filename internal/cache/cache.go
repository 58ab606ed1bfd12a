package cache

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// ErrRegionNotFound is returned when a region is looked up without having been opened.
var ErrRegionNotFound = errors.New("cache region not found")

// Response is a stored response snapshot keyed by its request URL.
type Response struct {
	URL      string
	Status   int
	Header   http.Header
	Body     []byte
	StoredAt time.Time
}

// Region is a single named URL to response store.
type Region interface {
	Name() string
	Put(ctx context.Context, key string, resp Response) error
	Match(ctx context.Context, key string) (Response, bool, error)
	Keys(ctx context.Context) ([]string, error)
}

// Storage opens regions by name, creating them on first use.
type Storage interface {
	Open(ctx context.Context, name string) (Region, error)
	Lookup(ctx context.Context, name string) (Region, error)
	Names(ctx context.Context) ([]string, error)
}
