package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/Dagmawialebachew/DigitalAttendanceSystem/internal/config"
	"github.com/Dagmawialebachew/DigitalAttendanceSystem/internal/lifecycle"
)

func newOrigin(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/static/css/app.css", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/css")
		_, _ = w.Write([]byte("body{}"))
	})
	mux.HandleFunc("/static/icons/icon-192x192.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(origin string, assets ...string) config.Config {
	return config.Config{
		CacheName:           "iAttend-v1",
		Assets:              assets,
		Origin:              origin,
		ListenAddr:          "127.0.0.1:0",
		LogLevel:            "info",
		UserAgent:           "iAttendPrecache/test",
		DialTimeout:         time.Second,
		TransportTimeout:    5 * time.Second,
		IdleConnTimeout:     time.Second,
		MaxIdleConns:        4,
		MaxIdleConnsPerHost: 2,
	}
}

func TestInstallWithMemoryStorage(t *testing.T) {
	t.Parallel()

	origin := newOrigin(t)
	var logs bytes.Buffer
	a, err := NewWithOutput(testConfig(origin.URL, "/static/css/app.css", "/static/icons/icon-192x192.png", "/static/missing.js"), &logs)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })

	report, err := a.Install(context.Background())
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if strings.Join(report.Cached, ",") != "/static/css/app.css,/static/icons/icon-192x192.png" {
		t.Fatalf("cached = %v", report.Cached)
	}
	if len(report.Failed) != 1 || report.Failed[0].URL != "/static/missing.js" {
		t.Fatalf("failed = %+v", report.Failed)
	}
	if a.worker.State() != lifecycle.StateActivated {
		t.Fatalf("state = %s", a.worker.State())
	}

	region, err := a.Storage().Lookup(context.Background(), "iAttend-v1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	resp, ok, err := region.Match(context.Background(), "/static/css/app.css")
	if err != nil || !ok {
		t.Fatalf("match: ok=%v err=%v", ok, err)
	}
	if string(resp.Body) != "body{}" || resp.Header.Get("Content-Type") != "text/css" {
		t.Fatalf("stored response = %+v", resp)
	}

	if !strings.Contains(logs.String(), `"msg":"failed to cache"`) || !strings.Contains(logs.String(), `"level":"WARN"`) {
		t.Fatalf("expected warning log, got %s", logs.String())
	}
}

func TestInstallWithRedisStorage(t *testing.T) {
	t.Parallel()

	origin := newOrigin(t)
	mr := miniredis.RunT(t)

	cfg := testConfig(origin.URL, "/static/css/app.css", "/static/icons/icon-192x192.png")
	cfg.RedisURL = "redis://" + mr.Addr()

	var logs bytes.Buffer
	a, err := NewWithOutput(cfg, &logs)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })

	report, err := a.Install(context.Background())
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if len(report.Cached) != 2 || len(report.Failed) != 0 {
		t.Fatalf("report = %+v", report)
	}

	fields, err := mr.HKeys("precache:region:iAttend-v1")
	if err != nil {
		t.Fatalf("hkeys: %v", err)
	}
	if len(fields) != 2 {
		t.Fatalf("redis fields = %v", fields)
	}
}

func TestNewRejectsBadOrigin(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	if _, err := NewWithOutput(testConfig("ftp://origin"), &logs); err == nil {
		t.Fatal("expected origin error")
	}
}

func TestRunServesUntilCancelled(t *testing.T) {
	t.Parallel()

	origin := newOrigin(t)
	var logs bytes.Buffer
	a, err := NewWithOutput(testConfig(origin.URL, "/static/css/app.css"), &logs)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for a.worker.State() != lifecycle.StateActivated {
		if time.Now().After(deadline) {
			t.Fatal("worker never activated")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
