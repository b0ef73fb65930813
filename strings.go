package http1conn

var (
	strColonSpace = []byte(": ")
	strHTTP11     = []byte("HTTP/1.1")
	strHTTP10     = []byte("HTTP/1.0")
	strSchemeHTTP = []byte("http://")

	strHead    = []byte("HEAD")
	strPost    = []byte("POST")
	strPut     = []byte("PUT")
	strPatch   = []byte("PATCH")
	strConnect = []byte("CONNECT")

	strHost             = []byte("Host")
	strConnection       = []byte("Connection")
	strContentLength    = []byte("Content-Length")
	strTransferEncoding = []byte("Transfer-Encoding")
	strCookie           = []byte("Cookie")
	strSetCookie        = []byte("Set-Cookie")
	strExpect           = []byte("Expect")

	strClose          = []byte("close")
	strKeepAlive      = []byte("keep-alive")
	strChunked        = []byte("chunked")
	str100Continue    = []byte("100-continue")
	strContentLength0 = []byte("Content-Length: 0\r\n")

	strGzip    = []byte("gzip")
	strDeflate = []byte("deflate")
	strBrotli  = []byte("br")
	strZstd    = []byte("zstd")
)
