// Package tunneldial produces transports for http1conn connections
// that must traverse a proxy: HTTP CONNECT tunnels and SOCKS5.
package tunneldial

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/valyala/http1conn"
)

// DialFunc establishes the raw connection to a proxy address.
type DialFunc func(addr string) (net.Conn, error)

// HTTPConnect dials targets through an HTTP proxy using the CONNECT
// method. The CONNECT exchange itself runs on an http1conn connection,
// so the tunnel handshake uses the same protocol engine as the
// requests that will flow through it.
type HTTPConnect struct {
	// ProxyAddr is the host:port of the HTTP proxy.
	ProxyAddr string

	// Username and Password, when set, are sent as a basic
	// Proxy-Authorization credential.
	Username string
	Password string

	// NetDial establishes the raw proxy connection; net.DialTimeout
	// with Timeout is used when nil.
	NetDial DialFunc

	// Timeout bounds the default dial.
	Timeout time.Duration

	// Settings configures the CONNECT exchange; nil means defaults.
	Settings *http1conn.Settings
}

// tunnelPool is the one-shot pool behind a CONNECT exchange: the
// connection never returns to it, it only supplies settings.
type tunnelPool struct {
	settings *http1conn.Settings
}

func (p *tunnelPool) Invalidate(*http1conn.Conn)    {}
func (p *tunnelPool) ReturnConn(*http1conn.Conn)    {}
func (p *tunnelPool) Settings() *http1conn.Settings { return p.settings }
func (p *tunnelPool) HostHeaderBytes() []byte       { return nil }
func (p *tunnelPool) Kind() http1conn.PoolKind      { return http1conn.PoolKindHost }

// DialTunnel opens a tunnel to targetAddr (host:port) through the
// proxy and returns the opaque bidirectional stream. Closing the
// stream closes the proxy connection.
func (d *HTTPConnect) DialTunnel(ctx context.Context, targetAddr string) (io.ReadWriteCloser, error) {
	dial := d.NetDial
	if dial == nil {
		timeout := d.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		dial = func(addr string) (net.Conn, error) {
			return net.DialTimeout("tcp", addr, timeout)
		}
	}
	netConn, err := dial(d.ProxyAddr)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to proxy %q: %w", d.ProxyAddr, err)
	}

	conn := http1conn.NewConn(&tunnelPool{settings: d.Settings}, netConn)
	if !conn.Acquire() {
		netConn.Close()
		return nil, fmt.Errorf("cannot acquire fresh proxy connection")
	}

	req := http1conn.NewRequest("CONNECT", "/")
	req.SetHostHeader(targetAddr)
	if d.Username != "" || d.Password != "" {
		cred := base64.StdEncoding.EncodeToString([]byte(d.Username + ":" + d.Password))
		req.AddHeader("Proxy-Authorization", "Basic "+cred)
	}

	resp, err := conn.SendRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("CONNECT to %q via %q failed: %w", targetAddr, d.ProxyAddr, err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		code := resp.StatusCode()
		reason := string(resp.Reason())
		resp.Body().Close()
		conn.Close()
		return nil, fmt.Errorf("proxy %q refused CONNECT to %q: %d %s", d.ProxyAddr, targetAddr, code, reason)
	}
	tunnel, ok := resp.Tunnel()
	if !ok {
		resp.Body().Close()
		conn.Close()
		return nil, fmt.Errorf("proxy %q returned a framed body for CONNECT", d.ProxyAddr)
	}
	return tunnel, nil
}
