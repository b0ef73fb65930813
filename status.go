package http1conn

// Common HTTP status codes seen by the connection core.
const (
	StatusContinue           = 100
	StatusSwitchingProtocols = 101
	StatusOK                 = 200
	StatusNoContent          = 204
	StatusNotModified        = 304
	StatusUnauthorized       = 401
	StatusProxyAuthRequired  = 407
)

var canonicalReasons = map[int][]byte{
	100: []byte("Continue"),
	101: []byte("Switching Protocols"),
	200: []byte("OK"),
	201: []byte("Created"),
	202: []byte("Accepted"),
	204: []byte("No Content"),
	206: []byte("Partial Content"),
	301: []byte("Moved Permanently"),
	302: []byte("Found"),
	303: []byte("See Other"),
	304: []byte("Not Modified"),
	307: []byte("Temporary Redirect"),
	308: []byte("Permanent Redirect"),
	400: []byte("Bad Request"),
	401: []byte("Unauthorized"),
	403: []byte("Forbidden"),
	404: []byte("Not Found"),
	405: []byte("Method Not Allowed"),
	407: []byte("Proxy Authentication Required"),
	408: []byte("Request Timeout"),
	409: []byte("Conflict"),
	410: []byte("Gone"),
	411: []byte("Length Required"),
	412: []byte("Precondition Failed"),
	413: []byte("Request Entity Too Large"),
	416: []byte("Requested Range Not Satisfiable"),
	429: []byte("Too Many Requests"),
	500: []byte("Internal Server Error"),
	501: []byte("Not Implemented"),
	502: []byte("Bad Gateway"),
	503: []byte("Service Unavailable"),
	504: []byte("Gateway Timeout"),
	505: []byte("HTTP Version Not Supported"),
}

// canonicalReason returns the interned reason phrase for statusCode,
// or nil if the code has no canonical phrase.
func canonicalReason(statusCode int) []byte {
	return canonicalReasons[statusCode]
}

// isInformational reports whether statusCode is a 1xx response.
func isInformational(statusCode int) bool {
	return statusCode >= 100 && statusCode <= 199
}

// isSessionAuthChallenge reports whether statusCode demands
// connection-scoped authentication from the client.
func isSessionAuthChallenge(statusCode int) bool {
	return statusCode == StatusUnauthorized || statusCode == StatusProxyAuthRequired
}
