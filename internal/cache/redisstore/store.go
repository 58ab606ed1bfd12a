package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/Dagmawialebachew/DigitalAttendanceSystem/internal/cache"
)

const keyPrefix = "precache:"

// Store implements cache.Storage backed by Redis. Each region is a hash
// keyed by request URL; region names are tracked in a set.
type Store struct {
	client *redis.Client
	opens  singleflight.Group
}

type envelope struct {
	StoredAt time.Time   `json:"stored_at"`
	URL      string      `json:"url"`
	Status   int         `json:"status"`
	Header   http.Header `json:"header,omitempty"`
	Body     []byte      `json:"body"`
}

// New constructs a Redis-backed cache store.
func New(rawURL string) (*Store, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewWithClient(client), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Client returns the underlying redis client.
func (s *Store) Client() *redis.Client {
	return s.client
}

// Close terminates the underlying Redis client connections.
func (s *Store) Close() error {
	return s.client.Close()
}

// Open registers the region name and returns a handle to it.
func (s *Store) Open(ctx context.Context, name string) (cache.Region, error) {
	if name == "" {
		return nil, errors.New("region name must not be empty")
	}

	_, err, _ := s.opens.Do(name, func() (any, error) {
		if err := s.client.SAdd(ctx, registryKey(), name).Err(); err != nil {
			return nil, fmt.Errorf("redis register region %q: %w", name, err)
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	return &region{client: s.client, name: name}, nil
}

// Lookup returns a handle to an already opened region.
func (s *Store) Lookup(ctx context.Context, name string) (cache.Region, error) {
	ok, err := s.client.SIsMember(ctx, registryKey(), name).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lookup region %q: %w", name, err)
	}
	if !ok {
		return nil, cache.ErrRegionNotFound
	}
	return &region{client: s.client, name: name}, nil
}

// Names lists registered regions in lexical order.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	names, err := s.client.SMembers(ctx, registryKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list regions: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

type region struct {
	client *redis.Client
	name   string
}

func (r *region) Name() string {
	return r.name
}

func (r *region) Put(ctx context.Context, key string, resp cache.Response) error {
	storedAt := resp.StoredAt
	if storedAt.IsZero() {
		storedAt = time.Now().UTC()
	}

	data, err := json.Marshal(envelope{
		StoredAt: storedAt,
		URL:      resp.URL,
		Status:   resp.Status,
		Header:   resp.Header,
		Body:     resp.Body,
	})
	if err != nil {
		return fmt.Errorf("encode cached response %q: %w", key, err)
	}

	if err := r.client.HSet(ctx, regionKey(r.name), key, data).Err(); err != nil {
		return fmt.Errorf("redis hset %q: %w", key, err)
	}
	return nil
}

func (r *region) Match(ctx context.Context, key string) (cache.Response, bool, error) {
	data, err := r.client.HGet(ctx, regionKey(r.name), key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return cache.Response{}, false, nil
		}
		return cache.Response{}, false, fmt.Errorf("redis hget %q: %w", key, err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return cache.Response{}, false, fmt.Errorf("decode cached response %q: %w", key, err)
	}

	return cache.Response{
		URL:      env.URL,
		Status:   env.Status,
		Header:   env.Header,
		Body:     env.Body,
		StoredAt: env.StoredAt,
	}, true, nil
}

func (r *region) Keys(ctx context.Context) ([]string, error) {
	keys, err := r.client.HKeys(ctx, regionKey(r.name)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hkeys %q: %w", r.name, err)
	}
	sort.Strings(keys)
	return keys, nil
}

func registryKey() string {
	return keyPrefix + "regions"
}

func regionKey(name string) string {
	return keyPrefix + "region:" + name
}
