package http1conn

type headerFlags uint8

const (
	// hdrRequest marks headers that only make sense on requests; seen
	// on a response they are demoted to custom headers.
	hdrRequest headerFlags = 1 << iota
	hdrResponse
	// hdrContent routes a header into the content header collection.
	hdrContent
	// hdrNonTrailing headers are silently dropped when they appear in
	// a chunked trailer block (RFC 7230, section 4.1.2).
	hdrNonTrailing
	// hdrProductInfo headers join repeated values with a space instead
	// of the default ", ".
	hdrProductInfo
)

var (
	sepCommaSpace     = []byte(", ")
	sepSpace          = []byte(" ")
	sepSemicolonSpace = []byte("; ")
)

// headerDesc describes a known header: its canonical name, routing
// category and the separator used when joining repeated values into a
// single serialized line.
type headerDesc struct {
	name  []byte
	flags headerFlags
	sep   []byte
}

func (d *headerDesc) is(f headerFlags) bool {
	return d != nil && d.flags&f != 0
}

func (d *headerDesc) separator() []byte {
	if d == nil || d.sep == nil {
		return sepCommaSpace
	}
	return d.sep
}

var knownHeaders = []headerDesc{
	{name: []byte("Accept"), flags: hdrRequest},
	{name: []byte("Accept-Charset"), flags: hdrRequest},
	{name: []byte("Accept-Encoding"), flags: hdrRequest},
	{name: []byte("Accept-Language"), flags: hdrRequest},
	{name: []byte("Accept-Ranges"), flags: hdrResponse},
	{name: []byte("Age"), flags: hdrResponse},
	{name: []byte("Allow"), flags: hdrContent},
	{name: []byte("Authorization"), flags: hdrRequest | hdrNonTrailing},
	{name: []byte("Cache-Control")},
	{name: []byte("Connection"), flags: hdrNonTrailing},
	{name: []byte("Content-Disposition"), flags: hdrContent},
	{name: []byte("Content-Encoding"), flags: hdrContent | hdrNonTrailing},
	{name: []byte("Content-Language"), flags: hdrContent},
	{name: []byte("Content-Length"), flags: hdrContent | hdrNonTrailing},
	{name: []byte("Content-Location"), flags: hdrContent},
	{name: []byte("Content-Range"), flags: hdrContent | hdrNonTrailing},
	{name: []byte("Content-Type"), flags: hdrContent | hdrNonTrailing},
	{name: []byte("Cookie"), flags: hdrRequest | hdrNonTrailing, sep: sepSemicolonSpace},
	{name: []byte("Date")},
	{name: []byte("ETag"), flags: hdrResponse},
	{name: []byte("Expect"), flags: hdrRequest | hdrNonTrailing},
	{name: []byte("Expires"), flags: hdrContent},
	{name: []byte("Host"), flags: hdrRequest | hdrNonTrailing},
	{name: []byte("If-Match"), flags: hdrRequest},
	{name: []byte("If-Modified-Since"), flags: hdrRequest},
	{name: []byte("If-None-Match"), flags: hdrRequest},
	{name: []byte("If-Range"), flags: hdrRequest},
	{name: []byte("If-Unmodified-Since"), flags: hdrRequest},
	{name: []byte("Keep-Alive"), flags: hdrNonTrailing},
	{name: []byte("Last-Modified"), flags: hdrContent},
	{name: []byte("Location"), flags: hdrResponse | hdrNonTrailing},
	{name: []byte("Max-Forwards"), flags: hdrRequest | hdrNonTrailing},
	{name: []byte("Pragma")},
	{name: []byte("Proxy-Authenticate"), flags: hdrResponse | hdrNonTrailing},
	{name: []byte("Proxy-Authorization"), flags: hdrRequest | hdrNonTrailing},
	{name: []byte("Proxy-Connection"), flags: hdrNonTrailing},
	{name: []byte("Range"), flags: hdrRequest | hdrNonTrailing},
	{name: []byte("Referer"), flags: hdrRequest},
	{name: []byte("Retry-After"), flags: hdrResponse},
	{name: []byte("Server"), flags: hdrResponse | hdrProductInfo, sep: sepSpace},
	{name: []byte("Set-Cookie"), flags: hdrResponse | hdrNonTrailing},
	{name: []byte("TE"), flags: hdrRequest | hdrNonTrailing},
	{name: []byte("Trailer"), flags: hdrNonTrailing},
	{name: []byte("Transfer-Encoding"), flags: hdrNonTrailing},
	{name: []byte("Upgrade")},
	{name: []byte("User-Agent"), flags: hdrRequest | hdrProductInfo, sep: sepSpace},
	{name: []byte("Vary"), flags: hdrResponse},
	{name: []byte("Via")},
	{name: []byte("Warning")},
	{name: []byte("WWW-Authenticate"), flags: hdrResponse | hdrNonTrailing},
}

// lookupHeader returns the descriptor for name, or nil when the header
// is unknown and must be treated as a custom header.
func lookupHeader(name []byte) *headerDesc {
	if len(name) == 0 {
		return nil
	}
	c := toLowerByte(name[0])
	for i := range knownHeaders {
		d := &knownHeaders[i]
		if toLowerByte(d.name[0]) != c {
			continue
		}
		if caseInsensitiveCompare(d.name, name) {
			return d
		}
	}
	return nil
}

// validateHeaderName reports whether name is a non-empty HTTP token.
func validateHeaderName(name []byte) bool {
	if len(name) == 0 {
		return false
	}
	for _, c := range name {
		if !validHeaderNameByte(c) {
			return false
		}
	}
	return true
}
