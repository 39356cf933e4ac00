package xrequest

import (
	"net"
	"net/netip"
	"strings"

	"go4.org/netipx"
)

// headerForwardedFor X-Forwarded-For 请求头。
const headerForwardedFor = "X-Forwarded-For"

// ClientIP 返回请求的客户端 IP（解析一次并缓存）。
//
// 默认只使用连接对端地址（RemoteAddr），不信任 X-Forwarded-For——
// 该头可被任意客户端伪造，必须显式声明代理拓扑后才参与解析：
//   - WithNumProxies(n): 取 X-Forwarded-For 右起第 n 个地址
//   - WithTrustedProxies(cidrs): 从对端地址开始右向左回溯，跳过可信地址
//
// 任一环节解析失败都回退到连接对端地址。
func (r *Request) ClientIP() string {
	r.ipOnce.Do(func() {
		r.ip = r.resolveClientIP()
	})
	return r.ip
}

func (r *Request) resolveClientIP() string {
	remote := remoteHost(r.raw.RemoteAddr)

	forwarded := splitForwarded(r.raw.Header.Get(headerForwardedFor))
	if len(forwarded) == 0 {
		return remote
	}

	switch {
	case r.numProxiesSet:
		return clientIPByProxyCount(forwarded, remote, r.numProxies)
	case r.trusted != nil:
		return clientIPByTrustedSet(forwarded, remote, r.trusted)
	default:
		return remote
	}
}

// clientIPByProxyCount 取右起第 count 个转发地址。
// 转发链短于声明的代理数时取最左地址（链路被截断的保守处理）。
func clientIPByProxyCount(forwarded []string, remote string, count int) string {
	if count <= 0 {
		return remote
	}
	idx := len(forwarded) - count
	if idx < 0 {
		idx = 0
	}
	if addr, ok := parseHost(forwarded[idx]); ok {
		return addr.String()
	}
	return remote
}

// clientIPByTrustedSet 从对端地址开始右向左回溯，返回第一个不可信地址。
func clientIPByTrustedSet(forwarded []string, remote string, trusted *netipx.IPSet) string {
	current, ok := parseHost(remote)
	if !ok {
		return remote
	}

	for i := len(forwarded) - 1; i >= 0; i-- {
		if !trusted.Contains(current) {
			break
		}
		hop, ok := parseHost(forwarded[i])
		if !ok {
			// 伪造或损坏的链路条目，停在最后一个合法地址
			break
		}
		current = hop
	}
	return current.String()
}

// remoteHost 从 "host:port" 形式的 RemoteAddr 提取主机部分。
func remoteHost(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}

// parseHost 解析可能带端口的地址字符串。
func parseHost(s string) (netip.Addr, bool) {
	s = strings.TrimSpace(s)
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

// splitForwarded 拆分逗号分隔的转发链，去除空白与空项。
func splitForwarded(header string) []string {
	if header == "" {
		return nil
	}
	parts := strings.Split(header, ",")
	hops := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			hops = append(hops, trimmed)
		}
	}
	return hops
}
