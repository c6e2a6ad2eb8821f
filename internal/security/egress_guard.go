// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// allowedSchemes はバックエンドAPIに許可されるURLスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedNetworks は厳格な送信制御でブロックされるネットワーク範囲。
// パッケージ初期化時に1回だけパースする。
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		// プライベートIPアドレス (RFC 1918)
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		// ループバック
		"127.0.0.0/8",
		// リンクローカル（クラウドメタデータIPを含む）
		"169.254.0.0/16",
		"0.0.0.0/8",
		"::1/128",
		"fe80::/10",
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		blockedNetworks = append(blockedNetworks, *network)
	}
}

// EgressGuard はバックエンドAPIへの送信先を制限する。
// API_STRICT_EGRESS=true のときにAPIクライアントのトランスポートとして使用する。
type EgressGuard struct{}

// NewEgressGuard はEgressGuardを生成する。
func NewEgressGuard() *EgressGuard {
	return &EgressGuard{}
}

// NewSafeClient は送信制御付きのHTTPクライアントを生成する。
// safeurlによりプライベートIP、ループバック、リンクローカル宛ての接続は
// DNS解決後のIPアドレスで拒否される。portsを省略した場合は80と443のみ許可する。
func (g *EgressGuard) NewSafeClient(timeout time.Duration, ports ...int) *http.Client {
	if len(ports) == 0 {
		ports = []int{80, 443}
	}
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(ports...).
		Build()

	return safeurl.Client(config).Client
}

// ValidateOrigin はAPIオリジンを静的に検証し、接続先ポートを返す。
// DNS再バインディングはNewSafeClientのDialer検証で防止される。
func (g *EgressGuard) ValidateOrigin(rawURL string) (int, error) {
	if rawURL == "" {
		return 0, fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return 0, fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !isAllowedScheme(scheme) {
		return 0, fmt.Errorf("disallowed scheme: %s (allowed: %v)", scheme, allowedSchemes)
	}

	host := parsed.Hostname()
	if host == "" {
		return 0, fmt.Errorf("empty host in URL: %s", rawURL)
	}
	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return 0, fmt.Errorf("blocked IP address: %s", ip.String())
		}
	} else if strings.EqualFold(host, "localhost") {
		return 0, fmt.Errorf("blocked host: %s", host)
	}

	return originPort(parsed)
}

func originPort(u *url.URL) (int, error) {
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return 0, fmt.Errorf("invalid port: %s", p)
		}
		return port, nil
	}
	if strings.EqualFold(u.Scheme, "https") {
		return 443, nil
	}
	return 80, nil
}

func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
