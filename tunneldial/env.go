package tunneldial

import (
	"net/url"

	"golang.org/x/net/http/httpproxy"
)

// ProxyFromEnvironment resolves the proxy URL for the given request
// URL from the standard HTTP_PROXY, HTTPS_PROXY and NO_PROXY
// variables. It returns nil when the target must be dialed directly.
func ProxyFromEnvironment(target *url.URL) (*url.URL, error) {
	return httpproxy.FromEnvironment().ProxyFunc()(target)
}
