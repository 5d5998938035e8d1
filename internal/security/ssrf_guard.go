// Package security は外部URLの検証と入力文字列の無害化を提供する。
package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// URLValidator はユーザーや設定から受け取ったURLを事前検証するインターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

var allowedSchemes = []string{"http", "https"}

// 既定で許可する宛先ポート
var defaultAllowedPorts = []int{80, 443}

// 内部ネットワーク宛てとみなすアドレス範囲。
// 起動時に一度だけパースする。
var blockedNetworks = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16", // クラウドのメタデータIPを含む
	"100.64.0.0/10",
	"0.0.0.0/8",
	"::1/128",
	"fe80::/10",
	"fc00::/7",
)

var blockedHostnames = []string{"localhost", "metadata.google.internal"}

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	networks := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR %s: %v", cidr, err))
		}
		networks = append(networks, network)
	}
	return networks
}

// SSRFGuard は通知Webhookやプロフィール画像URLが内部ネットワークを指していないかを検証する。
type SSRFGuard struct {
	allowedPorts []int
}

// NewSSRFGuard はSSRFGuardを生成する。portsが空の場合は80と443のみ許可する。
func NewSSRFGuard(ports ...int) *SSRFGuard {
	if len(ports) == 0 {
		ports = defaultAllowedPorts
	}
	return &SSRFGuard{allowedPorts: slices.Clone(ports)}
}

// NewSafeClient は内部アドレスへの接続を拒否するHTTPクライアントを生成する。
// 宛先IPの検証はDNS解決後にダイアラーで行われるため、DNSリバインディングも防げる。
func (g *SSRFGuard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(g.allowedPorts...).
		Build()

	return safeurl.Client(config).Client
}

// ValidateURL はDNS解決を伴わない静的なURL検証を行う。
func (g *SSRFGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !slices.Contains(allowedSchemes, scheme) {
		return fmt.Errorf("disallowed scheme: %q", parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	if err := g.validatePort(parsed); err != nil {
		return err
	}

	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return fmt.Errorf("blocked IP address: %s", ip)
		}
		return nil
	}

	if slices.Contains(blockedHostnames, strings.ToLower(host)) {
		return fmt.Errorf("blocked host: %s", host)
	}
	return nil
}

func (g *SSRFGuard) validatePort(u *url.URL) error {
	portStr := u.Port()
	if portStr == "" {
		return nil
	}
	var port int
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		return fmt.Errorf("invalid port: %s", portStr)
	}
	if !slices.Contains(g.allowedPorts, port) {
		return fmt.Errorf("disallowed port: %d", port)
	}
	return nil
}

func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// compile-time interface check
var _ URLValidator = (*SSRFGuard)(nil)
