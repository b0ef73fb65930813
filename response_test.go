package http1conn

import (
	"errors"
	"io"
	"testing"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

func responseLatin1Selector(name []byte) *encoding.Decoder {
	if caseInsensitiveCompare(name, []byte("X-Latin")) {
		return charmap.ISO8859_1.NewDecoder()
	}
	return nil
}

func parseResponseString(pool Pool, raw string) (*Conn, *Response, error) {
	tr := &bufferTransport{}
	tr.WriteString(raw)
	c := NewConn(pool, tr)
	c.inUse = true
	req := NewRequestWithHost("GET", "x", "/")
	c.currentReq = req
	resp, err := c.receiveResponse(req)
	return c, resp, err
}

func TestParseStatusLine(t *testing.T) {
	code, minor, reason, err := parseStatusLine([]byte("HTTP/1.1 200"))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if code != 200 || minor != 1 || len(reason) != 0 {
		t.Fatalf("unexpected result (%d, %d, %q)", code, minor, reason)
	}

	code, minor, reason, err = parseStatusLine([]byte("HTTP/1.0 404 Not Found"))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if code != 404 || minor != 0 || string(reason) != "Not Found" {
		t.Fatalf("unexpected result (%d, %d, %q)", code, minor, reason)
	}
}

func TestParseStatusLineLegacyReasonEncoding(t *testing.T) {
	_, _, reason, err := parseStatusLine([]byte("HTTP/1.1 500 Caf\xe9 Error"))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if string(reason) != "Café Error" {
		t.Fatalf("unexpected decoded reason %q", reason)
	}
}

func TestParseStatusLineErrors(t *testing.T) {
	for _, tc := range []struct {
		line string
		want error
	}{
		{"HTTP/1.1 20", ErrInvalidStatusLine},
		{"HTTP/2.0 200 OK", ErrInvalidStatusLine},
		{"HTTP/1.x 200 OK", ErrInvalidStatusLine},
		{"HTTP/1.1-200 OK", ErrInvalidStatusLine},
		{"HTTP/1.1 2x0 OK", ErrInvalidStatusCode},
		{"HTTP/1.1 200X", ErrInvalidStatusLine},
	} {
		_, _, _, err := parseStatusLine([]byte(tc.line))
		if !errors.Is(err, tc.want) {
			t.Fatalf("line %q: unexpected error %v. Expected %v", tc.line, err, tc.want)
		}
	}
}

func TestResponseHeaderRouting(t *testing.T) {
	_, resp, err := parseResponseString(&testPool{},
		"HTTP/1.1 200 OK\r\n"+
			"Content-Type: text/plain\r\n"+
			"Expires: 0\r\n"+
			"Server: srv/1\r\n"+
			"Accept: demoted\r\n"+
			"X-Custom: 42\r\n"+
			"Content-Length: 0\r\n\r\n")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if v := resp.ContentHeader("Content-Type"); string(v) != "text/plain" {
		t.Fatalf("Content-Type must be a content header, got %q", v)
	}
	if v := resp.ContentHeader("Expires"); string(v) != "0" {
		t.Fatalf("Expires must be a content header, got %q", v)
	}
	if v := resp.Header("Server"); string(v) != "srv/1" {
		t.Fatalf("unexpected Server header %q", v)
	}
	// Request-only headers on responses are demoted to custom headers.
	if v := resp.Header("Accept"); string(v) != "demoted" {
		t.Fatalf("request-only header wasn't kept as custom, got %q", v)
	}
	if v := resp.Header("X-Custom"); string(v) != "42" {
		t.Fatalf("unexpected custom header %q", v)
	}
	if v := resp.Header("Content-Type"); v != nil {
		t.Fatalf("content header leaked into response headers: %q", v)
	}
}

func TestResponseHeaderErrors(t *testing.T) {
	for _, tc := range []struct {
		raw  string
		want error
	}{
		{"HTTP/1.1 200 OK\r\nNo Colon Here\r\n\r\n", ErrInvalidHeaderLine},
		{"HTTP/1.1 200 OK\r\n: empty\r\n\r\n", ErrInvalidHeaderName},
		{"HTTP/1.1 200 OK\r\nBad\x01Name: 1\r\n\r\n", ErrInvalidHeaderName},
	} {
		_, _, err := parseResponseString(&testPool{}, tc.raw)
		if !errors.Is(err, tc.want) {
			t.Fatalf("raw %q: unexpected error %v. Expected %v", tc.raw, err, tc.want)
		}
	}
}

func TestResponseHeaderNameTrailingWhitespace(t *testing.T) {
	_, resp, err := parseResponseString(&testPool{},
		"HTTP/1.1 200 OK\r\nX-Pad : v\r\nContent-Length: 0\r\n\r\n")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if v := resp.Header("X-Pad"); string(v) != "v" {
		t.Fatalf("whitespace before the colon must be tolerated, got %q", v)
	}
}

func TestResponseConnectionCloseHeader(t *testing.T) {
	c, resp, err := parseResponseString(&testPool{},
		"HTTP/1.1 200 OK\r\nConnection: close\r\nContent-Length: 0\r\n\r\n")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !resp.ConnectionClose() {
		t.Fatalf("Connection: close wasn't honored")
	}
	if !c.connClose {
		t.Fatalf("connClose must be sticky on the connection")
	}
}

func TestResponseHTTP10FramingDefaults(t *testing.T) {
	c, _, err := parseResponseString(&testPool{},
		"HTTP/1.0 200 OK\r\nContent-Length: 0\r\n\r\n")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !c.connClose {
		t.Fatalf("HTTP/1.0 without keep-alive must not be reused")
	}

	c, _, err = parseResponseString(&testPool{},
		"HTTP/1.0 200 OK\r\nConnection: keep-alive\r\nContent-Length: 0\r\n\r\n")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if c.connClose {
		t.Fatalf("HTTP/1.0 with keep-alive must stay reusable")
	}
}

func TestResponseChunkedTrailers(t *testing.T) {
	_, resp, err := parseResponseString(&testPool{},
		"HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n"+
			"3\r\nabc\r\n0\r\nX-T: 1\r\nContent-Length: 9\r\n\r\n")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	body, err := io.ReadAll(resp.Body())
	if err != nil {
		t.Fatalf("unexpected error when reading chunked body: %s", err)
	}
	if string(body) != "abc" {
		t.Fatalf("unexpected body %q", body)
	}
	if v := resp.Trailer("X-T"); string(v) != "1" {
		t.Fatalf("missing trailer, got %q", v)
	}
	// Non-trailing headers are silently discarded from trailers.
	if v := resp.Trailer("Content-Length"); v != nil {
		t.Fatalf("non-trailing header leaked into trailers: %q", v)
	}
}

func TestResponseSetCookieCapture(t *testing.T) {
	jar := &testJar{}
	pool := &testPool{settings: &Settings{UseCookies: true, CookieJar: jar}}
	_, _, err := parseResponseString(pool,
		"HTTP/1.1 200 OK\r\nSet-Cookie: a=b; Path=/\r\nContent-Length: 0\r\n\r\n")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(jar.set) != 1 || jar.set[0][1] != "a=b; Path=/" {
		t.Fatalf("Set-Cookie wasn't captured: %v", jar.set)
	}
	if jar.set[0][0] != "x" {
		t.Fatalf("Set-Cookie captured for wrong host %q", jar.set[0][0])
	}
}

func TestResponseInformationalLoop(t *testing.T) {
	_, resp, err := parseResponseString(&testPool{},
		"HTTP/1.1 102 Processing\r\nX-Skip: 1\r\n\r\n"+
			"HTTP/1.1 103 Early Hints\r\n\r\n"+
			"HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if resp.StatusCode() != 200 {
		t.Fatalf("unexpected final status %d", resp.StatusCode())
	}
	body, _ := io.ReadAll(resp.Body())
	if string(body) != "ok" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestResponseSwitchingProtocolsIsTerminal(t *testing.T) {
	c, resp, err := parseResponseString(&testPool{},
		"HTTP/1.1 101 Switching Protocols\r\nUpgrade: x\r\n\r\nraw-bytes")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if resp.StatusCode() != 101 {
		t.Fatalf("unexpected status %d", resp.StatusCode())
	}
	if _, ok := resp.Tunnel(); !ok {
		t.Fatalf("101 must carry a raw tunnel body")
	}
	if !c.connClose || !c.detached {
		t.Fatalf("101 connection must be detached and non-reusable")
	}
	b := make([]byte, 9)
	if _, err := io.ReadFull(resp.Body(), b); err != nil {
		t.Fatalf("cannot read raw body: %s", err)
	}
	if string(b) != "raw-bytes" {
		t.Fatalf("unexpected raw body %q", b)
	}
}

func TestResponseValueDecoding(t *testing.T) {
	pool := &testPool{settings: &Settings{
		ResponseHeaderEncoding: responseLatin1Selector,
	}}
	_, resp, err := parseResponseString(pool,
		"HTTP/1.1 200 OK\r\nX-Latin: Caf\xe9\r\nContent-Length: 0\r\n\r\n")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if v := resp.Header("X-Latin"); string(v) != "Café" {
		t.Fatalf("unexpected decoded value %q", v)
	}
}
