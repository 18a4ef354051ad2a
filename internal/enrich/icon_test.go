package enrich

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

var pngData = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

type mockSSRFGuard struct {
	blockAll bool
}

func (m *mockSSRFGuard) NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client {
	return &http.Client{Timeout: timeout}
}

func (m *mockSSRFGuard) ValidateURL(rawURL string) error {
	if m.blockAll {
		return fmt.Errorf("blocked by SSRF guard")
	}
	return nil
}

func TestNormalizeSiteURL(t *testing.T) {
	tests := map[string]string{
		"":                     "",
		"#":                    "",
		" netflix.com ":        "https://netflix.com",
		"http://example.com":   "http://example.com",
		"HTTPS://Example.com/": "HTTPS://Example.com/",
	}
	for in, want := range tests {
		if got := NormalizeSiteURL(in); got != want {
			t.Errorf("NormalizeSiteURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseIconLinks(t *testing.T) {
	page := `<html><head>
<link rel="apple-touch-icon" href="/touch.png">
<link rel="stylesheet" href="/style.css">
<link rel="shortcut icon" href="/static/icon.png">
<link rel="icon" href="https://cdn.example.com/i.svg">
<link rel="icon" href="javascript:alert(1)">
</head><body><link rel="icon" href="/ignored.png"></body></html>`

	got := ParseIconLinks([]byte(page), "https://example.com/app/")
	want := []string{
		"https://example.com/static/icon.png",
		"https://cdn.example.com/i.svg",
		"https://example.com/touch.png",
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("ParseIconLinks() = %v, want %v", got, want)
	}
}

// link要素で指定されたアイコンをdata URLとして取得することを検証
func TestIconFetcher_FetchDataURL_FromLink(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, `<html><head><link rel="icon" href="/assets/logo.png"></head></html>`)
		case "/assets/logo.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(pngData)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	fetcher := NewIconFetcher(&mockSSRFGuard{}, time.Second, 1024)
	got, err := fetcher.FetchDataURL(context.Background(), server.URL+"/")
	if err != nil {
		t.Fatalf("FetchDataURL() error = %v", err)
	}
	want := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngData)
	if got != want {
		t.Errorf("FetchDataURL() = %q, want %q", got, want)
	}
}

// link要素が無い場合に既定のパスへフォールバックすることを検証
func TestIconFetcher_FetchDataURL_Fallback(t *testing.T) {
	var (
		mu        sync.Mutex
		requested []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requested = append(requested, r.URL.Path)
		mu.Unlock()
		switch r.URL.Path {
		case "/":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, `<html><head><title>x</title></head></html>`)
		case "/favicon.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(pngData)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	fetcher := NewIconFetcher(&mockSSRFGuard{}, time.Second, 1024)
	got, err := fetcher.FetchDataURL(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("FetchDataURL() error = %v", err)
	}
	if !strings.HasPrefix(got, "data:image/png;base64,") {
		t.Errorf("FetchDataURL() = %q, want png data URL", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if strings.Join(requested, ",") != "/,/favicon.ico,/favicon.png" {
		t.Errorf("requested = %v", requested)
	}
}

func TestIconFetcher_FetchDataURL_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/favicon.ico" {
			// 画像以外は採用しない
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html></html>"))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := NewIconFetcher(&mockSSRFGuard{}, time.Second, 1024)
	got, err := fetcher.FetchDataURL(context.Background(), server.URL)
	if err != nil || got != "" {
		t.Errorf("FetchDataURL() = %q, %v; want empty, nil", got, err)
	}
}

func TestIconFetcher_FetchDataURL_TooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/favicon.ico" {
			w.Header().Set("Content-Type", "image/x-icon")
			w.Write(make([]byte, 2048))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := NewIconFetcher(&mockSSRFGuard{}, time.Second, 1024)
	got, _ := fetcher.FetchDataURL(context.Background(), server.URL)
	if got != "" {
		t.Error("oversized icon must be rejected")
	}
}

func TestIconFetcher_FetchDataURL_Blocked(t *testing.T) {
	fetcher := NewIconFetcher(&mockSSRFGuard{blockAll: true}, time.Second, 1024)
	_, err := fetcher.FetchDataURL(context.Background(), "http://169.254.169.254/")
	if err != ErrURLRejected {
		t.Errorf("err = %v, want ErrURLRejected", err)
	}
}

func TestNewIconFetcher_Defaults(t *testing.T) {
	f := NewIconFetcher(nil, 0, 0)
	if f.timeout != DefaultFetchTimeout || f.maxSize != DefaultMaxIconSize {
		t.Errorf("defaults = %v / %d", f.timeout, f.maxSize)
	}
}
