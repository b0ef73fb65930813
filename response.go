package http1conn

import (
	"bytes"
	"fmt"
	"io"

	"golang.org/x/text/encoding/charmap"
)

// Response is the parsed head of an HTTP/1.x response plus its typed
// body stream. It is produced by Conn.SendRequest and stays valid
// until the body stream completes or the connection is disposed.
type Response struct {
	statusCode   int
	minorVersion int
	reason       []byte

	// contentLength: >= 0 explicit, -1 chunked, -2 unknown (read
	// until close).
	contentLength   int
	connectionClose bool

	headers        []argsKV
	contentHeaders []argsKV
	trailers       []argsKV

	body io.ReadCloser
}

type argsKV struct {
	key   []byte
	value []byte
}

// StatusCode returns the final response status code.
func (resp *Response) StatusCode() int { return resp.statusCode }

// MinorVersion returns the HTTP/1.x minor version digit.
func (resp *Response) MinorVersion() int { return resp.minorVersion }

// Reason returns the decoded reason phrase; it may be empty.
func (resp *Response) Reason() []byte { return resp.reason }

// ContentLength returns the declared body size, -1 for chunked bodies
// and -2 when the body length is unknown.
func (resp *Response) ContentLength() int { return resp.contentLength }

// ConnectionClose reports whether the response forbids reusing the
// connection.
func (resp *Response) ConnectionClose() bool { return resp.connectionClose }

// Body returns the response body stream. Reading it to completion (or
// draining it) releases the connection back to the pool; closing it
// early disposes the connection.
func (resp *Response) Body() io.ReadCloser { return resp.body }

// Tunnel returns the bidirectional stream behind a successful CONNECT
// or a 101 Switching Protocols response. ok is false for regular
// framed bodies.
func (resp *Response) Tunnel() (io.ReadWriteCloser, bool) {
	t, ok := resp.body.(io.ReadWriteCloser)
	return t, ok
}

// Header returns the first value of the named response header, or nil.
func (resp *Response) Header(name string) []byte {
	return peekArg(resp.headers, []byte(name))
}

// ContentHeader returns the first value of the named content header
// (Content-Type, Content-Length, Expires, ...), or nil.
func (resp *Response) ContentHeader(name string) []byte {
	return peekArg(resp.contentHeaders, []byte(name))
}

// Trailer returns the first value of the named trailer, or nil.
// Trailers are populated only after a chunked body completes.
func (resp *Response) Trailer(name string) []byte {
	return peekArg(resp.trailers, []byte(name))
}

// VisitHeaders calls f for every response header in receive order.
func (resp *Response) VisitHeaders(f func(key, value []byte)) {
	for i := range resp.headers {
		f(resp.headers[i].key, resp.headers[i].value)
	}
}

func peekArg(kvs []argsKV, key []byte) []byte {
	for i := range kvs {
		if caseInsensitiveCompare(kvs[i].key, key) {
			return kvs[i].value
		}
	}
	return nil
}

func appendArg(kvs []argsKV, key, value []byte) []argsKV {
	return append(kvs, argsKV{
		key:   append([]byte(nil), key...),
		value: append([]byte(nil), value...),
	})
}

var statusLinePrefix = [7]byte{'H', 'T', 'T', 'P', '/', '1', '.'}

// reasonDecoderFactory creates the decoder for reason phrases; servers
// historically emit them
// in a single-byte legacy encoding.
var reasonDecoderFactory = charmap.ISO8859_1.NewDecoder

// parseStatusLine parses "HTTP/1.x NNN [reason]" with the fixed
// offsets the grammar guarantees: the version prefix in bytes 0..7,
// a space at offset 8, three status digits at 9..11 and an optional
// space-separated reason phrase from offset 13.
func parseStatusLine(line []byte) (statusCode, minorVersion int, reason []byte, err error) {
	if len(line) < minStatusLineLen {
		return 0, 0, nil, fmt.Errorf("%w: %q", ErrInvalidStatusLine, line)
	}

	var prefix [7]byte
	copy(prefix[:], line[:7])
	if prefix != statusLinePrefix || !isDigit(line[7]) {
		return 0, 0, nil, fmt.Errorf("%w: %q", ErrInvalidStatusLine, line)
	}
	minorVersion = int(line[7] - '0')

	if line[8] != ' ' {
		return 0, 0, nil, fmt.Errorf("%w: %q", ErrInvalidStatusLine, line)
	}
	if !isDigit(line[9]) || !isDigit(line[10]) || !isDigit(line[11]) {
		return 0, 0, nil, fmt.Errorf("%w: %q", ErrInvalidStatusCode, line[9:12])
	}
	statusCode = 100*int(line[9]-'0') + 10*int(line[10]-'0') + int(line[11]-'0')

	if len(line) == minStatusLineLen {
		return statusCode, minorVersion, nil, nil
	}
	if line[12] != ' ' {
		return 0, 0, nil, fmt.Errorf("%w: %q", ErrInvalidStatusLine, line)
	}

	raw := line[13:]
	if canonical := canonicalReason(statusCode); canonical != nil && bytes.Equal(raw, canonical) {
		return statusCode, minorVersion, canonical, nil
	}
	decoded, derr := reasonDecoderFactory().Bytes(raw)
	if derr != nil {
		return 0, 0, nil, fmt.Errorf("%w: %w", ErrInvalidStatusReason, derr)
	}
	return statusCode, minorVersion, decoded, nil
}

// readStatusLine consumes one status line from the connection,
// charging the shared header budget.
func (c *Conn) readStatusLine(budget *int) (statusCode, minorVersion int, reason []byte, err error) {
	line, consumed, err := c.br.readLine(c.t, *budget, false, ErrHeadersTooLarge)
	if err != nil {
		return 0, 0, nil, err
	}
	*budget -= consumed
	return parseStatusLine(line)
}

// readHeaderBlock consumes header lines up to the empty terminator,
// routing each header by its descriptor. In trailer mode, non-trailing
// headers are silently dropped instead of stored.
func (c *Conn) readHeaderBlock(resp *Response, budget *int, trailerMode bool) error {
	s := c.settings()
	jar := s.cookieJar()

	for {
		line, consumed, err := c.br.readLine(c.t, *budget, true, ErrHeadersTooLarge)
		if err != nil {
			return err
		}
		*budget -= consumed
		if len(line) == 0 {
			return nil
		}

		name, value, err := splitHeaderLine(line)
		if err != nil {
			return err
		}
		desc := lookupHeader(name)
		if desc == nil && !validateHeaderName(name) {
			return fmt.Errorf("%w: %q", ErrInvalidHeaderName, name)
		}

		if dec := s.responseDecoder(name); dec != nil {
			value, err = dec.Bytes(value)
			if err != nil {
				return fmt.Errorf("cannot decode header %q value: %w", name, err)
			}
		}

		if trailerMode {
			if desc.is(hdrNonTrailing) {
				continue
			}
			resp.trailers = appendArg(resp.trailers, name, value)
			continue
		}

		if err := resp.storeHeader(c, desc, name, value, jar); err != nil {
			return err
		}
	}
}

// splitHeaderLine parses `name ":" OWS value`. The name tolerates
// trailing whitespace before the colon; leading OWS of the value is
// stripped, trailing bytes are preserved.
func splitHeaderLine(line []byte) (name, value []byte, err error) {
	i := bytes.IndexByte(line, ':')
	if i < 0 {
		return nil, nil, fmt.Errorf("%w: missing colon in %q", ErrInvalidHeaderLine, line)
	}
	name = line[:i]
	for len(name) > 0 && (name[len(name)-1] == ' ' || name[len(name)-1] == '\t') {
		name = name[:len(name)-1]
	}
	if len(name) == 0 {
		return nil, nil, fmt.Errorf("%w: empty name in %q", ErrInvalidHeaderName, line)
	}
	value = line[i+1:]
	for len(value) > 0 && (value[0] == ' ' || value[0] == '\t') {
		value = value[1:]
	}
	return name, value, nil
}

// storeHeader routes a parsed header into the right collection and
// maintains the framing state (content length, chunking, close).
func (resp *Response) storeHeader(c *Conn, desc *headerDesc, name, value []byte, jar CookieJar) error {
	switch {
	case desc != nil && caseInsensitiveCompare(name, strContentLength):
		if resp.contentLength != -1 {
			v := trimOWS(value)
			n, consumed, err := parseUintBuf(v)
			if err != nil || consumed != len(v) {
				return fmt.Errorf("%w: bad Content-Length %q", ErrInvalidHeaderLine, value)
			}
			resp.contentLength = n
		}
		resp.contentHeaders = appendArg(resp.contentHeaders, name, value)
		return nil
	case desc != nil && caseInsensitiveCompare(name, strTransferEncoding):
		if !caseInsensitiveCompare(trimOWS(value), []byte("identity")) {
			resp.contentLength = -1
		}
		resp.headers = appendArg(resp.headers, name, value)
		return nil
	case desc != nil && caseInsensitiveCompare(name, strConnection):
		if bytes.Contains(bytes.ToLower(value), strClose) {
			resp.connectionClose = true
		}
		resp.headers = appendArg(resp.headers, name, value)
		return nil
	case desc != nil && caseInsensitiveCompare(name, strSetCookie):
		if jar != nil {
			jar.SetCookie(c.requestHost(), value)
		}
		resp.headers = appendArg(resp.headers, name, value)
		return nil
	case desc.is(hdrContent):
		resp.contentHeaders = appendArg(resp.contentHeaders, name, value)
		return nil
	case desc.is(hdrRequest):
		// A request-only header on a response is stored as a custom
		// header: it keeps its bytes but loses special routing.
		resp.headers = appendArg(resp.headers, name, value)
		return nil
	default:
		resp.headers = appendArg(resp.headers, name, value)
		return nil
	}
}

// trimOWS strips leading and trailing SP and HT; used where a header
// value feeds a parser rather than being stored verbatim.
func trimOWS(v []byte) []byte {
	for len(v) > 0 && (v[0] == ' ' || v[0] == '\t') {
		v = v[1:]
	}
	for len(v) > 0 && (v[len(v)-1] == ' ' || v[len(v)-1] == '\t') {
		v = v[:len(v)-1]
	}
	return v
}

// newResponse returns a response with the framing defaults applied.
func newResponse() *Response {
	return &Response{
		contentLength: -2,
	}
}
