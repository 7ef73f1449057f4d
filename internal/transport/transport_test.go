package transport_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"habla/internal/services"
	"habla/internal/transport"
)

func TestDownloadWritesBody(t *testing.T) {
	body := strings.Repeat("x", 200*1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Accept-Ranges", "bytes")
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "video.mp4")
	var last transport.Progress
	got, resumable, err := transport.NewHTTP().Download(t.Context(), srv.URL, dest, func(p transport.Progress) {
		last = p
	})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if got != int64(len(body)) {
		t.Fatalf("expected %d bytes, got %d", len(body), got)
	}
	if !resumable {
		t.Fatal("expected resumable with Accept-Ranges header")
	}
	if last.BytesDone != int64(len(body)) || last.BytesTotal != int64(len(body)) {
		t.Fatalf("unexpected final progress: %+v", last)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read destination: %v", err)
	}
	if string(data) != body {
		t.Fatal("destination content mismatch")
	}
}

func TestDownloadResumesPartialFile(t *testing.T) {
	full := "0123456789abcdef"
	var gotRange string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRange = r.Header.Get("Range")
		if gotRange == "bytes=8-" {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes 8-15/%d", len(full)))
			w.WriteHeader(http.StatusPartialContent)
			fmt.Fprint(w, full[8:])
			return
		}
		fmt.Fprint(w, full)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "audio.m4a")
	if err := os.WriteFile(dest, []byte(full[:8]), 0o644); err != nil {
		t.Fatal(err)
	}

	got, resumable, err := transport.NewHTTP().Download(t.Context(), srv.URL, dest, nil)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if gotRange != "bytes=8-" {
		t.Fatalf("expected range request, got %q", gotRange)
	}
	if !resumable {
		t.Fatal("206 response should report resumable")
	}
	if got != int64(len(full)) {
		t.Fatalf("expected %d total bytes, got %d", len(full), got)
	}
	data, _ := os.ReadFile(dest)
	if string(data) != full {
		t.Fatalf("resumed content mismatch: %q", data)
	}
}

func TestDownloadRestartsWhenRangeIgnored(t *testing.T) {
	full := "fresh-content"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Ignore any Range header and serve the whole body.
		fmt.Fprint(w, full)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "video.mp4")
	if err := os.WriteFile(dest, []byte("stale-partial"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, _, err := transport.NewHTTP().Download(t.Context(), srv.URL, dest, nil)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if got != int64(len(full)) {
		t.Fatalf("expected %d bytes, got %d", len(full), got)
	}
	data, _ := os.ReadFile(dest)
	if string(data) != full {
		t.Fatalf("stale bytes survived restart: %q", data)
	}
}

func TestDownloadStatusClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
		notFound  bool
	}{
		{name: "gone is permanent", status: http.StatusGone, notFound: true},
		{name: "not found is permanent", status: http.StatusNotFound, notFound: true},
		{name: "forbidden is permanent", status: http.StatusForbidden},
		{name: "server error is transient", status: http.StatusInternalServerError, transient: true},
		{name: "throttling is transient", status: http.StatusTooManyRequests, transient: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			dest := filepath.Join(t.TempDir(), "stream")
			_, _, err := transport.NewHTTP().Download(t.Context(), srv.URL, dest, nil)
			if err == nil {
				t.Fatal("expected error")
			}
			if services.IsTransient(err) != tt.transient {
				t.Fatalf("transient=%v, want %v (err: %v)", services.IsTransient(err), tt.transient, err)
			}
			if errors.Is(err, services.ErrNotFound) != tt.notFound {
				t.Fatalf("notFound=%v, want %v (err: %v)", errors.Is(err, services.ErrNotFound), tt.notFound, err)
			}
		})
	}
}

func TestDownloadShortReadIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		w.(http.Flusher).Flush()
		fmt.Fprint(w, "only a little")
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "stream")
	_, _, err := transport.NewHTTP().Download(t.Context(), srv.URL, dest, nil)
	if err == nil {
		t.Fatal("expected short-read error")
	}
	if !services.IsTransient(err) {
		t.Fatalf("short read should be transient, got %v", err)
	}
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	if transport.Backoff(1) != 500*time.Millisecond {
		t.Fatalf("attempt 1: %v", transport.Backoff(1))
	}
	if transport.Backoff(2) != time.Second {
		t.Fatalf("attempt 2: %v", transport.Backoff(2))
	}
	if transport.Backoff(20) != 8*time.Second {
		t.Fatalf("attempt 20 should cap: %v", transport.Backoff(20))
	}
}
