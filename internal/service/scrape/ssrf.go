package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
)

// SSRF 校验错误
var (
	ErrInvalidURL    = errors.New("invalid url")
	ErrBlockedTarget = errors.New("target address is not allowed")
)

// Resolver 主机名解析接口，便于测试注入
type Resolver interface {
	LookupIP(ctx context.Context, host string) ([]net.IP, error)
}

// dohResolver 通过 DNS-over-HTTPS 解析主机名
// 仅用于抓取前的 SSRF 检查，不替代系统解析器
type dohResolver struct {
	endpoint string
	client   *http.Client
}

// NewDoHResolver 创建 DoH 解析器
func NewDoHResolver(endpoint string, client *http.Client) Resolver {
	return &dohResolver{endpoint: endpoint, client: client}
}

// LookupIP 解析 A 记录
func (r *dohResolver) LookupIP(ctx context.Context, host string) ([]net.IP, error) {
	query := url.Values{}
	query.Set("name", host)
	query.Set("type", "A")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/dns-json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dns lookup failed with status %d", resp.StatusCode)
	}

	var wire struct {
		Answer []struct {
			Type int    `json:"type"`
			Data string `json:"data"`
		} `json:"Answer"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, err
	}

	var ips []net.IP
	for _, answer := range wire.Answer {
		// type 1 = A 记录
		if answer.Type != 1 {
			continue
		}
		if ip := net.ParseIP(answer.Data); ip != nil {
			ips = append(ips, ip)
		}
	}
	return ips, nil
}

// isBlockedIP 内网、回环、链路本地与未指定地址一律拒绝
func isBlockedIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified()
}

// validateTarget 抓取前的 SSRF 检查
// 先校验 scheme 与 IP 字面量，再通过 DoH 解析主机名并检查每个解析结果。
// 解析失败按拒绝处理（fail-closed）：无法证明目标安全就不抓取
func validateTarget(ctx context.Context, resolver Resolver, raw string) (*url.URL, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, parsed.Scheme)
	}
	host := parsed.Hostname()
	if host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	if host == "localhost" {
		return nil, ErrBlockedTarget
	}

	// IP 字面量直接检查，不经过解析
	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return nil, ErrBlockedTarget
		}
		return parsed, nil
	}

	ips, err := resolver.LookupIP(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("%w: dns check failed: %v", ErrBlockedTarget, err)
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("%w: host did not resolve", ErrBlockedTarget)
	}
	for _, ip := range ips {
		if isBlockedIP(ip) {
			return nil, ErrBlockedTarget
		}
	}

	return parsed, nil
}
