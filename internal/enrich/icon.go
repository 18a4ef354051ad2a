// Package enrich はサブスクリプション作成時のアイコンとブランドカラーの補完を提供する。
package enrich

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	// DefaultFetchTimeout はアイコン取得の既定のタイムアウト。
	DefaultFetchTimeout = 5 * time.Second
	// DefaultMaxIconSize はアイコン画像の既定の最大サイズ（2MB）。
	DefaultMaxIconSize = 2 * 1024 * 1024

	maxPageSize = 1024 * 1024
	userAgent   = "Subman/1.0 Icon Fetcher"
)

// fallbackPaths はlink要素が無い場合に試すパス。
var fallbackPaths = []string{"/favicon.ico", "/favicon.png", "/apple-touch-icon.png"}

// ErrURLRejected はSSRF検証でURLが拒否されたことを示す。
var ErrURLRejected = errors.New("url rejected by ssrf guard")

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// IconFetcher はサービスのWebサイトからアイコンを取得する。
type IconFetcher struct {
	ssrfGuard SSRFValidator
	timeout   time.Duration
	maxSize   int64
}

// NewIconFetcher はIconFetcherを生成する。timeoutとmaxSizeが0以下の場合は既定値を使う。
func NewIconFetcher(ssrfGuard SSRFValidator, timeout time.Duration, maxSize int64) *IconFetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxIconSize
	}
	return &IconFetcher{ssrfGuard: ssrfGuard, timeout: timeout, maxSize: maxSize}
}

// NormalizeSiteURL は前後の空白を除去し、スキームが無ければhttps://を補う。
func NormalizeSiteURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "#" {
		return ""
	}
	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		raw = "https://" + raw
	}
	return raw
}

// FetchDataURL はサイトのアイコンを取得してdata URLとして返す。
// 1. ページのlink要素（rel="icon"等）を順に試す
// 2. 見つからなければ/favicon.ico等の既定パスを試す
// 取得できなかった場合は空文字を返す。SSRF検証で拒否された場合はErrURLRejectedを返す。
func (f *IconFetcher) FetchDataURL(ctx context.Context, siteURL string) (string, error) {
	siteURL = NormalizeSiteURL(siteURL)
	if siteURL == "" {
		return "", nil
	}
	base, err := url.Parse(siteURL)
	if err != nil || base.Host == "" {
		return "", nil
	}
	if f.ssrfGuard != nil {
		if err := f.ssrfGuard.ValidateURL(siteURL); err != nil {
			slog.Warn("icon fetch blocked", slog.String("url", siteURL), slog.String("error", err.Error()))
			return "", ErrURLRejected
		}
	}

	candidates := f.iconLinksFromPage(ctx, siteURL)
	for _, p := range fallbackPaths {
		candidates = append(candidates, base.ResolveReference(&url.URL{Path: p}).String())
	}

	for _, c := range candidates {
		data, mimeType := f.fetchImage(ctx, c)
		if data != nil {
			return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
		}
	}
	return "", nil
}

func (f *IconFetcher) httpClient() *http.Client {
	if f.ssrfGuard != nil {
		return f.ssrfGuard.NewSafeClient(f.timeout, f.maxSize)
	}
	return &http.Client{Timeout: f.timeout}
}

func (f *IconFetcher) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	return f.httpClient().Do(req)
}

func (f *IconFetcher) iconLinksFromPage(ctx context.Context, pageURL string) []string {
	resp, err := f.get(ctx, pageURL)
	if err != nil {
		slog.Debug("icon page fetch failed", slog.String("url", pageURL), slog.String("error", err.Error()))
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil
	}
	if !strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "html") {
		return nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return nil
	}
	return ParseIconLinks(body, resp.Request.URL.String())
}

// fetchImage は画像を取得する。取得失敗・サイズ超過・画像以外の場合はnilを返す。
func (f *IconFetcher) fetchImage(ctx context.Context, iconURL string) ([]byte, string) {
	if f.ssrfGuard != nil {
		if err := f.ssrfGuard.ValidateURL(iconURL); err != nil {
			return nil, ""
		}
	}
	resp, err := f.get(ctx, iconURL)
	if err != nil {
		slog.Debug("icon fetch failed", slog.String("url", iconURL), slog.String("error", err.Error()))
		return nil, ""
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, ""
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil || len(body) == 0 {
		return nil, ""
	}
	if int64(len(body)) > f.maxSize {
		slog.Warn("icon too large", slog.String("url", iconURL), slog.Int("size", len(body)))
		return nil, ""
	}

	mimeType := extractMimeType(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, ""
	}
	return body, mimeType
}

// ParseIconLinks はHTMLのheadからアイコンのlink要素を検出する。
// 相対URLはbaseURLを基準に解決する。rel="icon"を含むものをapple-touch-iconより優先する。
func ParseIconLinks(htmlBody []byte, baseURL string) []string {
	baseU, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	var icons, touchIcons []string
	tokenizer := html.NewTokenizer(bytes.NewReader(htmlBody))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return append(icons, touchIcons...)

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			tagName := string(tn)
			if tagName == "body" {
				return append(icons, touchIcons...)
			}
			if tagName != "link" || !hasAttr {
				continue
			}

			var rel, href string
			for {
				key, val, more := tokenizer.TagAttr()
				switch strings.ToLower(string(key)) {
				case "rel":
					rel = strings.ToLower(string(val))
				case "href":
					href = strings.TrimSpace(string(val))
				}
				if !more {
					break
				}
			}
			if href == "" {
				continue
			}
			resolved := resolveURL(baseU, href)
			if resolved == "" {
				continue
			}
			rels := strings.Fields(rel)
			switch {
			case containsWord(rels, "icon"):
				icons = append(icons, resolved)
			case containsWord(rels, "apple-touch-icon"):
				touchIcons = append(touchIcons, resolved)
			}

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "head" {
				return append(icons, touchIcons...)
			}
		}
	}
}

func containsWord(words []string, w string) bool {
	for _, x := range words {
		if x == w {
			return true
		}
	}
	return false
}

func resolveURL(base *url.URL, rawRef string) string {
	ref, err := url.Parse(rawRef)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

// extractMimeType はContent-Typeヘッダーからメディアタイプを抽出する。
func extractMimeType(contentType string) string {
	parts := strings.SplitN(contentType, ";", 2)
	return strings.TrimSpace(strings.ToLower(parts[0]))
}
