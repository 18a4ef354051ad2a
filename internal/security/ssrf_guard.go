// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// 許可するスキームとポート
var (
	allowedSchemes = []string{"http", "https"}
	allowedPorts   = []int{80, 443}
)

// extraBlockedPrefixes はnetipの分類だけでは弾けない範囲。
var extraBlockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),     // カレントネットワーク
	netip.MustParsePrefix("100.64.0.0/10"), // キャリアグレードNAT
	netip.MustParsePrefix("198.18.0.0/15"), // ベンチマーク用
}

// ErrBlockedDestination は宛先が内部ネットワークを指していることを示す。
var ErrBlockedDestination = errors.New("blocked destination")

// URLGuard はアイコン取得で外部に送るリクエストの宛先を制限する。
// ValidateURLはDNS解決前の静的な検証で、名前解決後のIPはNewSafeClientの
// Dialerフックでsafeurlが検証する。
type URLGuard struct{}

// NewURLGuard はURLGuardを生成する。
func NewURLGuard() *URLGuard {
	return &URLGuard{}
}

// NewSafeClient は内部アドレスへの接続を拒否するHTTPクライアントを返す。
// maxResponseSizeが正の場合、レスポンスボディはその長さで打ち切る。
func (g *URLGuard) NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(allowedPorts...).
		Build()

	client := safeurl.Client(config).Client
	if maxResponseSize > 0 {
		next := client.Transport
		if next == nil {
			next = http.DefaultTransport
		}
		client.Transport = &limitedTransport{next: next, max: maxResponseSize}
	}
	return client
}

// limitedTransport はレスポンスボディの読み取り量を制限する。
type limitedTransport struct {
	next http.RoundTripper
	max  int64
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	resp.Body = limitedBody{Reader: io.LimitReader(resp.Body, t.max), Closer: resp.Body}
	return resp, nil
}

type limitedBody struct {
	io.Reader
	io.Closer
}

// ValidateURL はスキーム・ポート・ホストを検証し、内部ネットワークを指すURLを拒否する。
func (g *URLGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !isAllowedScheme(scheme) {
		return fmt.Errorf("disallowed scheme: %q (allowed: %v)", scheme, allowedSchemes)
	}

	host := strings.TrimSuffix(strings.ToLower(parsed.Hostname()), ".")
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	if port := parsed.Port(); port != "" && !isAllowedPort(port) {
		return fmt.Errorf("disallowed port: %s", port)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if isBlockedAddr(addr) {
			return fmt.Errorf("%w: %s", ErrBlockedDestination, addr)
		}
		return nil
	}

	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return fmt.Errorf("%w: %s", ErrBlockedDestination, host)
	}
	return nil
}

func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedSchemes {
		if scheme == allowed {
			return true
		}
	}
	return false
}

func isAllowedPort(port string) bool {
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	for _, allowed := range allowedPorts {
		if n == allowed {
			return true
		}
	}
	return false
}

// isBlockedAddr はグローバルユニキャスト以外とプライベート範囲をtrueにする。
// IPv4射影IPv6アドレスはIPv4として判定する。
func isBlockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	if !addr.IsGlobalUnicast() || addr.IsPrivate() {
		return true
	}
	for _, p := range extraBlockedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
