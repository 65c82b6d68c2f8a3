package prefetch

import (
	"net/url"
	"strings"
)

// IsPreloadable reports whether link may be prefetched from a document at
// location under cfg. It has no side effects.
func IsPreloadable(link Link, cfg Config, location *url.URL) bool {
	if link == nil || location == nil {
		return false
	}

	u := link.URL()
	if u == nil || u.String() == "" {
		return false
	}

	if cfg.UseWhitelist && !link.Opted() {
		return false
	}

	if !cfg.AllowExternalLinks && Origin(u) != Origin(location) && !link.Opted() {
		return false
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	if u.Scheme == "http" && location.Scheme == "https" {
		return false
	}

	if !cfg.AllowQueryString && u.RawQuery != "" && !link.Opted() {
		return false
	}

	if u.Fragment != "" && pathAndQuery(u) == pathAndQuery(location) {
		return false
	}

	if link.Suppressed() {
		return false
	}

	return true
}

// Origin serializes the scheme, host and non-default port of u. URLs without
// a network origin serialize to "null".
func Origin(u *url.URL) string {
	switch u.Scheme {
	case "http", "https", "ws", "wss", "ftp":
	default:
		return "null"
	}

	host := strings.ToLower(u.Hostname())
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}

	port := u.Port()
	if port != "" && port != defaultPort(u.Scheme) {
		host += ":" + port
	}

	return u.Scheme + "://" + host
}

func defaultPort(scheme string) string {
	switch scheme {
	case "http", "ws":
		return "80"
	case "https", "wss":
		return "443"
	case "ftp":
		return "21"
	}
	return ""
}

func pathAndQuery(u *url.URL) string {
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return path
}
