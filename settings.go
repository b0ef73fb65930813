package http1conn

import (
	"time"

	"golang.org/x/text/encoding"
)

const (
	// defaultBufferSize is the initial size of the per-connection read
	// and write buffers. Tests pass a tiny size (10) to newConnSize in
	// order to exercise buffer-split paths.
	defaultBufferSize = 4096

	// maxChunkLineLen bounds a single chunk size line.
	maxChunkLineLen = 16384

	// expect100ErrorSendThreshold is the largest request body that is
	// still sent after an error (>= 300) final response to an
	// Expect: 100-continue request.
	expect100ErrorSendThreshold = 1024

	// minStatusLineLen is the shortest valid status line,
	// "HTTP/1.1 200" without a reason phrase.
	minStatusLineLen = 12

	defaultMaxResponseHeadersKB = 64
	defaultMaxResponseDrainSize = 64 << 10
	defaultExpect100Timeout     = time.Second
	largeCopyBufferSize         = 64 << 10
)

// Logger is used for observing failures that the protocol requires to
// be swallowed, e.g. a body-send task failing after the server already
// produced a final response.
type Logger interface {
	Printf(format string, args ...interface{})
}

// CookieJar supplies the Cookie request header and captures Set-Cookie
// response headers when Settings.UseCookies is enabled.
type CookieJar interface {
	// Cookies returns the Cookie header value for the given host and
	// path, or an empty slice when there is nothing to send.
	Cookies(host, path []byte) []byte

	// SetCookie records the value of a Set-Cookie header received from
	// the given host. The slices are only valid during the call; make
	// copies to retain them.
	SetCookie(host, setCookie []byte)
}

// Settings carries the connection-level configuration. The pool owns a
// Settings instance and exposes it via Pool.Settings; a nil *Settings
// behaves like the zero value, and zero fields fall back to the
// package defaults.
type Settings struct {
	// MaxResponseHeadersKB caps the total size of the status line plus
	// header block, in kilobytes. Exceeding it fails the request with
	// ErrHeadersTooLarge.
	MaxResponseHeadersKB int

	// MaxResponseDrainSize caps the number of leftover response body
	// bytes DrainResponse consumes while trying to salvage the
	// connection for reuse.
	MaxResponseDrainSize int

	// Expect100ContinueTimeout is the maximum time the request body is
	// held back waiting for a 100 Continue before it is sent anyway.
	Expect100ContinueTimeout time.Duration

	// RequestHeaderEncoding selects an outbound value encoder per
	// header name. Headers without an encoder are restricted to ASCII.
	RequestHeaderEncoding func(headerName []byte) *encoding.Encoder

	// ResponseHeaderEncoding selects an inbound value decoder per
	// header name. Without a decoder, values are taken verbatim.
	ResponseHeaderEncoding func(headerName []byte) *encoding.Decoder

	// UseCookies enables Cookie header synthesis from CookieJar and
	// Set-Cookie capture into it.
	UseCookies bool

	// CookieJar is consulted only when UseCookies is set.
	CookieJar CookieJar

	// Logger receives swallowed-failure reports. Nil disables them.
	Logger Logger
}

var zeroSettings Settings

func (s *Settings) maxResponseHeadersLen() int {
	if s == nil || s.MaxResponseHeadersKB <= 0 {
		return defaultMaxResponseHeadersKB << 10
	}
	return s.MaxResponseHeadersKB << 10
}

func (s *Settings) maxResponseDrainSize() int {
	if s == nil || s.MaxResponseDrainSize <= 0 {
		return defaultMaxResponseDrainSize
	}
	return s.MaxResponseDrainSize
}

func (s *Settings) expect100Timeout() time.Duration {
	if s == nil || s.Expect100ContinueTimeout <= 0 {
		return defaultExpect100Timeout
	}
	return s.Expect100ContinueTimeout
}

func (s *Settings) requestEncoder(name []byte) *encoding.Encoder {
	if s == nil || s.RequestHeaderEncoding == nil {
		return nil
	}
	return s.RequestHeaderEncoding(name)
}

func (s *Settings) responseDecoder(name []byte) *encoding.Decoder {
	if s == nil || s.ResponseHeaderEncoding == nil {
		return nil
	}
	return s.ResponseHeaderEncoding(name)
}

func (s *Settings) cookieJar() CookieJar {
	if s == nil || !s.UseCookies {
		return nil
	}
	return s.CookieJar
}

func (s *Settings) logf(format string, args ...interface{}) {
	if s != nil && s.Logger != nil {
		s.Logger.Printf(format, args...)
	}
}
