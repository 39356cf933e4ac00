package xrequest

import (
	"fmt"
	"net/netip"

	"go4.org/netipx"
)

// DefaultMaxBodyBytes 请求体默认上限（10 MiB）。
const DefaultMaxBodyBytes = 10 << 20

// config Request 的配置。
type config struct {
	parsers        []Parser
	authenticators []Authenticator
	maxBodyBytes   int64
	numProxies     int
	numProxiesSet  bool
	trustedCIDRs   []string
	err            error
}

// Option 定义 Request 的配置选项。
type Option func(*config)

// WithParsers 设置请求体解析器列表（按声明顺序匹配 Content-Type）。
func WithParsers(parsers ...Parser) Option {
	return func(c *config) {
		c.parsers = parsers
	}
}

// WithAuthenticators 设置认证器列表（按声明顺序尝试）。
func WithAuthenticators(authenticators ...Authenticator) Option {
	return func(c *config) {
		c.authenticators = authenticators
	}
}

// WithMaxBodyBytes 设置请求体上限；0 表示不限制。
func WithMaxBodyBytes(n int64) Option {
	return func(c *config) {
		if n < 0 {
			c.err = ErrInvalidMaxBodyBytes
			return
		}
		c.maxBodyBytes = n
	}
}

// WithNumProxies 声明请求链路上的反向代理数量。
//
// 设置后 ClientIP 取 X-Forwarded-For 右起第 n 个地址；
// n <= 0 等价于不信任 X-Forwarded-For，直接使用连接对端地址。
// 与 WithTrustedProxies 互斥，后设置者生效。
func WithNumProxies(n int) Option {
	return func(c *config) {
		c.numProxies = n
		c.numProxiesSet = true
		c.trustedCIDRs = nil
	}
}

// WithTrustedProxies 声明可信代理网段（CIDR 或单个 IP）。
//
// 设置后 ClientIP 从连接对端开始沿 X-Forwarded-For 右向左回溯，
// 跳过所有可信地址，返回第一个不可信地址。
// 与 WithNumProxies 互斥，后设置者生效。
func WithTrustedProxies(cidrs ...string) Option {
	return func(c *config) {
		c.trustedCIDRs = cidrs
		c.numProxiesSet = false
	}
}

// buildTrustedSet 将 CIDR 列表编译为 IPSet。
func buildTrustedSet(cidrs []string) (*netipx.IPSet, error) {
	if len(cidrs) == 0 {
		return nil, nil
	}

	var builder netipx.IPSetBuilder
	for _, cidr := range cidrs {
		if prefix, err := netip.ParsePrefix(cidr); err == nil {
			builder.AddPrefix(prefix)
			continue
		}
		addr, err := netip.ParseAddr(cidr)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidProxyCIDR, cidr)
		}
		builder.Add(addr)
	}

	set, err := builder.IPSet()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProxyCIDR, err)
	}
	return set, nil
}
