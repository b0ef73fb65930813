package http1conn

import (
	"fmt"
	"io"

	"golang.org/x/net/idna"
)

// Request describes a single HTTP/1.x exchange to be sent over a Conn.
//
// It is forbidden copying Request instances. Create new instances
// instead.
type Request struct {
	method []byte

	// Target authority. host never contains a port or brackets.
	host       []byte
	port       int
	hostIsIPv6 bool
	isTLS      bool

	// Origin-form target, always starting with '/'.
	pathQuery []byte

	// Explicit Host header value, when the caller set one.
	headerHost []byte

	headers []requestHeader

	// bodySize >= 0 means a Content-Length body, bodySizeChunked a
	// chunked body, bodySizeNone no body at all.
	bodyStream io.Reader
	bodySize   int

	useHTTP10      bool
	expectContinue bool
}

const (
	bodySizeNone    = -2
	bodySizeChunked = -1
)

type requestHeader struct {
	desc   *headerDesc
	name   []byte
	values [][]byte
}

// NewRequest returns a request for the given method and origin-form
// target path.
func NewRequest(method, pathQuery string) *Request {
	req := &Request{
		method:   []byte(method),
		bodySize: bodySizeNone,
	}
	req.SetPathQuery(pathQuery)
	return req
}

// NewRequestWithHost returns a request with the target host already
// filled in.
func NewRequestWithHost(method, host, pathQuery string) *Request {
	req := NewRequest(method, pathQuery)
	req.SetHost(host)
	return req
}

// SetHost sets the target host. IPv6 literals are passed without
// brackets; use SetHostIPv6 for those.
func (req *Request) SetHost(host string) {
	req.host = append(req.host[:0], host...)
	req.hostIsIPv6 = false
}

// SetHostIPv6 sets an IPv6 literal target host (without brackets).
func (req *Request) SetHostIPv6(host string) {
	req.host = append(req.host[:0], host...)
	req.hostIsIPv6 = true
}

// SetPort sets the target port. Zero means the scheme default.
func (req *Request) SetPort(port int) {
	req.port = port
}

// SetIsTLS records whether the transport is TLS; it only influences
// the default port elision in synthesized Host headers and
// absolute-form targets.
func (req *Request) SetIsTLS(isTLS bool) {
	req.isTLS = isTLS
}

// SetPathQuery sets the origin-form request target.
func (req *Request) SetPathQuery(pathQuery string) {
	if len(pathQuery) == 0 {
		pathQuery = "/"
	}
	req.pathQuery = append(req.pathQuery[:0], pathQuery...)
}

// SetHostHeader sets an explicit Host header, suppressing synthesis.
func (req *Request) SetHostHeader(host string) {
	req.headerHost = append(req.headerHost[:0], host...)
}

// UseHTTP10 downgrades the serialized request to HTTP/1.0.
func (req *Request) UseHTTP10() {
	req.useHTTP10 = true
}

// SetExpectContinue arms Expect: 100-continue negotiation for the
// request body.
func (req *Request) SetExpectContinue() {
	req.expectContinue = true
}

// SetBodyStream attaches a request body. size >= 0 declares a
// Content-Length body of exactly size bytes; size < 0 selects chunked
// transfer encoding. The serializer emits the framing headers itself;
// callers must not add Content-Length or Transfer-Encoding manually.
func (req *Request) SetBodyStream(body io.Reader, size int) {
	req.bodyStream = body
	if size < 0 {
		size = bodySizeChunked
	}
	req.bodySize = size
}

// AddHeader appends a header value. Repeated names are joined into a
// single line at serialization time using the header's separator.
func (req *Request) AddHeader(name, value string) {
	req.AddHeaderBytes([]byte(name), []byte(value))
}

// AddHeaderBytes appends a header value. The name and value are copied.
func (req *Request) AddHeaderBytes(name, value []byte) {
	if caseInsensitiveCompare(name, strHost) {
		req.headerHost = append(req.headerHost[:0], value...)
		return
	}
	for i := range req.headers {
		h := &req.headers[i]
		if caseInsensitiveCompare(h.name, name) {
			h.values = append(h.values, append([]byte(nil), value...))
			return
		}
	}
	req.headers = append(req.headers, requestHeader{
		desc:   lookupHeader(name),
		name:   append([]byte(nil), name...),
		values: [][]byte{append([]byte(nil), value...)},
	})
}

func (req *Request) isMethod(m []byte) bool {
	return caseInsensitiveCompare(req.method, m)
}

func (req *Request) isConnect() bool { return req.isMethod(strConnect) }
func (req *Request) isHead() bool    { return req.isMethod(strHead) }

func (req *Request) hasBody() bool {
	return req.bodySize != bodySizeNone
}

// methodMandatesBody reports whether the method implies a body, so an
// explicit Content-Length: 0 must be serialized when none is attached.
func (req *Request) methodMandatesBody() bool {
	return req.isMethod(strPost) || req.isMethod(strPut) || req.isMethod(strPatch)
}

func (req *Request) defaultPort() int {
	if req.isTLS {
		return 443
	}
	return 80
}

// writeRequestHead serializes the request line, the Host header, the
// caller headers (with cookie merge), the body framing headers and the
// terminating CRLF into c's write buffer.
func (c *Conn) writeRequestHead(req *Request) error {
	w := c.t
	bw := &c.bw
	s := c.settings()

	if err := bw.writeASCII(w, req.method); err != nil {
		return err
	}
	if err := bw.writeByte(w, ' '); err != nil {
		return err
	}
	if err := c.writeRequestTarget(req); err != nil {
		return err
	}
	if err := bw.writeByte(w, ' '); err != nil {
		return err
	}
	version := strHTTP11
	if req.useHTTP10 {
		version = strHTTP10
	}
	if err := bw.writeBytes(w, version); err != nil {
		return err
	}
	if err := bw.writeCRLF(w); err != nil {
		return err
	}

	if err := c.writeHostHeader(req); err != nil {
		return err
	}

	cookieDone := false
	for i := range req.headers {
		h := &req.headers[i]
		isCookie := caseInsensitiveCompare(h.name, strCookie)
		if isCookie {
			cookieDone = true
		}
		if err := c.writeHeaderLine(req, h, isCookie); err != nil {
			return err
		}
	}
	if !cookieDone {
		if jar := s.cookieJar(); jar != nil {
			if v := jar.Cookies(req.host, req.pathQuery); len(v) > 0 {
				if err := bw.writeBytes(w, strCookie); err != nil {
					return err
				}
				if err := bw.writeBytes(w, strColonSpace); err != nil {
					return err
				}
				if err := bw.writeBytes(w, v); err != nil {
					return err
				}
				if err := bw.writeCRLF(w); err != nil {
					return err
				}
			}
		}
	}

	if req.expectContinue {
		if err := bw.writeBytes(w, strExpect); err != nil {
			return err
		}
		if err := bw.writeBytes(w, strColonSpace); err != nil {
			return err
		}
		if err := bw.writeBytes(w, str100Continue); err != nil {
			return err
		}
		if err := bw.writeCRLF(w); err != nil {
			return err
		}
	}

	switch {
	case req.bodySize >= 0:
		if err := bw.writeBytes(w, strContentLength); err != nil {
			return err
		}
		if err := bw.writeBytes(w, strColonSpace); err != nil {
			return err
		}
		if err := bw.writeDecimal(w, req.bodySize); err != nil {
			return err
		}
		if err := bw.writeCRLF(w); err != nil {
			return err
		}
	case req.bodySize == bodySizeChunked:
		if err := bw.writeBytes(w, strTransferEncoding); err != nil {
			return err
		}
		if err := bw.writeBytes(w, strColonSpace); err != nil {
			return err
		}
		if err := bw.writeBytes(w, strChunked); err != nil {
			return err
		}
		if err := bw.writeCRLF(w); err != nil {
			return err
		}
	case req.methodMandatesBody():
		// No body attached to a body-mandating method: declare zero
		// length explicitly so the server does not wait for one.
		if err := bw.writeBytes(w, strContentLength0); err != nil {
			return err
		}
	}

	return bw.writeCRLF(w)
}

func (c *Conn) writeRequestTarget(req *Request) error {
	w := c.t
	bw := &c.bw

	if req.isConnect() {
		// CONNECT writes the authority literally from the Host header.
		if len(req.headerHost) == 0 {
			return ErrMissingHost
		}
		return bw.writeASCII(w, req.headerHost)
	}

	if c.pool != nil && c.pool.Kind() == PoolKindProxy {
		return c.writeAbsoluteTarget(req)
	}

	return bw.writeASCII(w, req.pathQuery)
}

// writeAbsoluteTarget emits the absolute-form target used on proxied
// connections: scheme, bracketed IPv6 or IDNA host, port when it is
// not the scheme default, then the path and query.
func (c *Conn) writeAbsoluteTarget(req *Request) error {
	w := c.t
	bw := &c.bw

	if len(req.host) == 0 {
		return ErrMissingHost
	}
	if err := bw.writeBytes(w, strSchemeHTTP); err != nil {
		return err
	}
	if req.hostIsIPv6 {
		if err := bw.writeByte(w, '['); err != nil {
			return err
		}
		if err := bw.writeASCII(w, req.host); err != nil {
			return err
		}
		if err := bw.writeByte(w, ']'); err != nil {
			return err
		}
	} else {
		host := req.host
		if !isASCII(host) {
			a, err := idna.ToASCII(string(host))
			if err != nil {
				return fmt.Errorf("cannot convert host %q to ascii: %w", host, err)
			}
			host = []byte(a)
		}
		if err := bw.writeASCII(w, host); err != nil {
			return err
		}
	}
	if req.port != 0 && req.port != req.defaultPort() {
		if err := bw.writeByte(w, ':'); err != nil {
			return err
		}
		if err := bw.writeDecimal(w, req.port); err != nil {
			return err
		}
	}
	return bw.writeASCII(w, req.pathQuery)
}

// writeHostHeader emits Host from the explicit header, the pool's
// pre-rendered host bytes, or the request target, in that order.
func (c *Conn) writeHostHeader(req *Request) error {
	w := c.t
	bw := &c.bw

	if err := bw.writeBytes(w, strHost); err != nil {
		return err
	}
	if err := bw.writeBytes(w, strColonSpace); err != nil {
		return err
	}

	switch {
	case len(req.headerHost) > 0:
		if err := bw.writeASCII(w, req.headerHost); err != nil {
			return err
		}
	default:
		hostBytes := []byte(nil)
		if c.pool != nil {
			hostBytes = c.pool.HostHeaderBytes()
		}
		if len(hostBytes) > 0 {
			if err := bw.writeBytes(w, hostBytes); err != nil {
				return err
			}
		} else {
			if len(req.host) == 0 {
				return ErrMissingHost
			}
			if req.hostIsIPv6 {
				if err := bw.writeByte(w, '['); err != nil {
					return err
				}
				if err := bw.writeASCII(w, req.host); err != nil {
					return err
				}
				if err := bw.writeByte(w, ']'); err != nil {
					return err
				}
			} else {
				host := req.host
				if !isASCII(host) {
					a, err := idna.ToASCII(string(host))
					if err != nil {
						return fmt.Errorf("cannot convert host %q to ascii: %w", host, err)
					}
					host = []byte(a)
				}
				if err := bw.writeASCII(w, host); err != nil {
					return err
				}
			}
			if req.port != 0 && req.port != req.defaultPort() {
				if err := bw.writeByte(w, ':'); err != nil {
					return err
				}
				if err := bw.writeDecimal(w, req.port); err != nil {
					return err
				}
			}
		}
	}
	return bw.writeCRLF(w)
}

// writeHeaderLine serializes one logical header: name, ": ", the
// values joined by the descriptor separator, CRLF. The Cookie header
// additionally receives the jar's cookies joined with "; ".
func (c *Conn) writeHeaderLine(req *Request, h *requestHeader, isCookie bool) error {
	w := c.t
	bw := &c.bw
	s := c.settings()

	if !validateHeaderName(h.name) {
		return fmt.Errorf("%w: %q", ErrInvalidRequestChar, h.name)
	}
	if err := bw.writeBytes(w, h.name); err != nil {
		return err
	}
	if err := bw.writeBytes(w, strColonSpace); err != nil {
		return err
	}

	sep := h.desc.separator()
	enc := s.requestEncoder(h.name)
	for i, v := range h.values {
		if i > 0 {
			if err := bw.writeBytes(w, sep); err != nil {
				return err
			}
		}
		if enc != nil {
			if err := bw.writeEncoded(w, v, enc); err != nil {
				return fmt.Errorf("cannot encode header %q value: %w", h.name, err)
			}
		} else if err := bw.writeASCII(w, v); err != nil {
			return fmt.Errorf("header %q: %w", h.name, err)
		}
	}

	if isCookie {
		if jar := s.cookieJar(); jar != nil {
			if v := jar.Cookies(req.host, req.pathQuery); len(v) > 0 {
				if err := bw.writeBytes(w, sepSemicolonSpace); err != nil {
					return err
				}
				if err := bw.writeBytes(w, v); err != nil {
					return err
				}
			}
		}
	}
	return bw.writeCRLF(w)
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}
