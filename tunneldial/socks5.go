package tunneldial

import (
	"fmt"
	"net"

	"golang.org/x/net/proxy"
)

// SOCKS5 returns a DialFunc that reaches targets through the given
// SOCKS5 proxy. auth may be nil for anonymous proxies.
func SOCKS5(proxyAddr string, auth *proxy.Auth) DialFunc {
	return func(addr string) (net.Conn, error) {
		d, err := proxy.SOCKS5("tcp", proxyAddr, auth, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("cannot create socks5 dialer for %q: %w", proxyAddr, err)
		}
		return d.Dial("tcp", addr)
	}
}
