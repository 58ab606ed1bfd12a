package redisstore

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/Dagmawialebachew/DigitalAttendanceSystem/internal/cache"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	store, err := New("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store, mr
}

func TestNewRejectsBadURL(t *testing.T) {
	t.Parallel()

	_, err := New("not a url")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse redis url") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOpenRegistersRegion(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, mr := newTestStore(t)

	if _, err := store.Lookup(ctx, "iAttend-v1"); !errors.Is(err, cache.ErrRegionNotFound) {
		t.Fatalf("expected ErrRegionNotFound, got %v", err)
	}

	region, err := store.Open(ctx, "iAttend-v1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if region.Name() != "iAttend-v1" {
		t.Fatalf("name = %q", region.Name())
	}

	ok, err := mr.SIsMember("precache:regions", "iAttend-v1")
	if err != nil || !ok {
		t.Fatalf("expected region in registry set, ok=%v err=%v", ok, err)
	}

	if _, err := store.Open(ctx, "a-first"); err != nil {
		t.Fatalf("open: %v", err)
	}
	names, err := store.Names(ctx)
	if err != nil {
		t.Fatalf("names: %v", err)
	}
	if strings.Join(names, ",") != "a-first,iAttend-v1" {
		t.Fatalf("names = %v", names)
	}

	if _, err := store.Lookup(ctx, "iAttend-v1"); err != nil {
		t.Fatalf("lookup after open: %v", err)
	}
}

func TestOpenRejectsEmptyName(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	if _, err := store.Open(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty region name")
	}
}

func TestRegionPutMatchKeys(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, mr := newTestStore(t)

	region, err := store.Open(ctx, "iAttend-v1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	resp := cache.Response{
		URL:    "http://origin.test/static/css/app.css",
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": {"text/css"}},
		Body:   []byte("body{}"),
	}
	if err := region.Put(ctx, "/static/css/app.css", resp); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := region.Put(ctx, "/static/icons/icon-192x192.png", cache.Response{Status: http.StatusOK, Body: []byte{0x89, 'P'}}); err != nil {
		t.Fatalf("put: %v", err)
	}

	if !mr.Exists("precache:region:iAttend-v1") {
		t.Fatal("expected region hash to exist")
	}

	got, ok, err := region.Match(ctx, "/static/css/app.css")
	if err != nil || !ok {
		t.Fatalf("match: ok=%v err=%v", ok, err)
	}
	if string(got.Body) != "body{}" || got.Status != http.StatusOK || got.URL != resp.URL {
		t.Fatalf("unexpected response: %+v", got)
	}
	if got.Header.Get("Content-Type") != "text/css" {
		t.Fatalf("content type = %q", got.Header.Get("Content-Type"))
	}
	if got.StoredAt.IsZero() {
		t.Fatal("expected StoredAt to be stamped")
	}

	keys, err := region.Keys(ctx)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if strings.Join(keys, ",") != "/static/css/app.css,/static/icons/icon-192x192.png" {
		t.Fatalf("keys = %v", keys)
	}

	if _, ok, err := region.Match(ctx, "/missing"); ok || err != nil {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}
}

func TestRegionMatchCorruptPayload(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, mr := newTestStore(t)

	region, err := store.Open(ctx, "r")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	mr.HSet("precache:region:r", "/bad", "{not json")

	if _, _, err := region.Match(ctx, "/bad"); err == nil {
		t.Fatal("expected decode error")
	}
}
